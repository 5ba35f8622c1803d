package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	accountsFile  = "accounts.json"
	groupsFile    = "groups.json"
	platformsFile = "platforms.json"
	countriesFile = "country_codes.json"
)

// Account is an upstream panel login. Credentials are managed by the CLI
// subcommands; the poller only reads them.
type Account struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Enabled  bool   `json:"enabled"`
}

// Group is a Telegram destination chat.
type Group struct {
	Name    string `json:"name"`
	ChatID  string `json:"chat_id"`
	Enabled bool   `json:"enabled"`
}

// Platform maps a service key to its display label and emoji decoration.
type Platform struct {
	Key     string `json:"key"`
	NameEN  string `json:"name_en,omitempty"`
	NameAR  string `json:"name_ar,omitempty"`
	Short   string `json:"short"`
	Emoji   string `json:"emoji,omitempty"`
	EmojiID string `json:"emoji_id,omitempty"`
}

// Country is a dial-code table row used for number origin detection.
type Country struct {
	NameEN   string `json:"name_en"`
	NameAR   string `json:"name_ar,omitempty"`
	ISO2     string `json:"iso2"`
	DialCode string `json:"dial_code"`
}

// loadJSONList reads a JSON array file, treating a missing file as empty.
func loadJSONList[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

func saveJSONList[T any](path string, rows []T) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadAccounts reads the account list from dataDir.
func LoadAccounts(dataDir string) ([]Account, error) {
	return loadJSONList[Account](filepath.Join(dataDir, accountsFile))
}

// SaveAccounts writes the account list to dataDir.
func SaveAccounts(dataDir string, accounts []Account) error {
	return saveJSONList(filepath.Join(dataDir, accountsFile), accounts)
}

// UpsertAccount adds an account, replacing any existing entry with the same
// email.
func UpsertAccount(dataDir string, acc Account) error {
	accounts, err := LoadAccounts(dataDir)
	if err != nil {
		return err
	}
	out := accounts[:0]
	for _, a := range accounts {
		if !strings.EqualFold(a.Email, acc.Email) {
			out = append(out, a)
		}
	}
	out = append(out, acc)
	return SaveAccounts(dataDir, out)
}

// LoadGroups reads the group list from dataDir.
func LoadGroups(dataDir string) ([]Group, error) {
	return loadJSONList[Group](filepath.Join(dataDir, groupsFile))
}

// SaveGroups writes the group list to dataDir.
func SaveGroups(dataDir string, groups []Group) error {
	return saveJSONList(filepath.Join(dataDir, groupsFile), groups)
}

// UpsertGroup adds a group, replacing any existing entry with the same chat
// id.
func UpsertGroup(dataDir string, grp Group) error {
	groups, err := LoadGroups(dataDir)
	if err != nil {
		return err
	}
	out := groups[:0]
	for _, g := range groups {
		if g.ChatID != grp.ChatID {
			out = append(out, g)
		}
	}
	out = append(out, grp)
	return SaveGroups(dataDir, out)
}

// EnabledGroups filters groups down to the enabled ones, falling back to the
// legacy single-chat setting when the group file is empty.
func EnabledGroups(groups []Group, legacyChatID string) []Group {
	enabled := make([]Group, 0, len(groups))
	for _, g := range groups {
		if g.Enabled && strings.TrimSpace(g.ChatID) != "" {
			enabled = append(enabled, g)
		}
	}
	if len(enabled) == 0 && strings.TrimSpace(legacyChatID) != "" {
		enabled = append(enabled, Group{Name: "default_group", ChatID: legacyChatID, Enabled: true})
	}
	return enabled
}

// EnabledAccounts filters accounts down to enabled entries with usable
// credentials.
func EnabledAccounts(accounts []Account) []Account {
	enabled := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Enabled && strings.TrimSpace(a.Email) != "" && strings.TrimSpace(a.Password) != "" {
			a.Name = strings.TrimSpace(a.Name)
			if a.Name == "" {
				a.Name = a.Email
			}
			enabled = append(enabled, a)
		}
	}
	return enabled
}

// LoadPlatforms reads the platform emoji map from dataDir.
func LoadPlatforms(dataDir string) ([]Platform, error) {
	return loadJSONList[Platform](filepath.Join(dataDir, platformsFile))
}

// SetPlatformEmoji updates the custom emoji id for a platform key, creating
// the row if it does not exist yet.
func SetPlatformEmoji(dataDir string, key, emojiID string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	platforms, err := LoadPlatforms(dataDir)
	if err != nil {
		return err
	}

	updated := false
	for i := range platforms {
		if strings.ToLower(strings.TrimSpace(platforms[i].Key)) == key {
			platforms[i].EmojiID = strings.TrimSpace(emojiID)
			updated = true
			break
		}
	}
	if !updated {
		short := key
		if len(short) > 2 {
			short = short[:2]
		}
		platforms = append(platforms, Platform{
			Key:     key,
			NameEN:  key,
			Short:   strings.ToUpper(short),
			EmojiID: strings.TrimSpace(emojiID),
		})
	}
	return saveJSONList(filepath.Join(dataDir, platformsFile), platforms)
}

// LoadCountries reads the dial-code table from dataDir, sorted longest dial
// code first so prefix matching picks the most specific entry.
func LoadCountries(dataDir string) ([]Country, error) {
	rows, err := loadJSONList[Country](filepath.Join(dataDir, countriesFile))
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, c := range rows {
		if strings.TrimSpace(c.DialCode) != "" {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].DialCode) > len(out[j].DialCode)
	})
	return out, nil
}
