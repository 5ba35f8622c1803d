package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
)

// OutputFormat specifies the output format for list subcommands.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// writeJSON outputs rows as indented JSON.
func writeJSON(w io.Writer, rows any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}

func enabledMark(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// writeAccounts lists accounts sorted by name. Passwords are never printed.
func writeAccounts(w io.Writer, accounts []config.Account, format OutputFormat) error {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })

	switch format {
	case FormatJSON:
		type row struct {
			Name    string `json:"name"`
			Email   string `json:"email"`
			Enabled bool   `json:"enabled"`
		}
		rows := make([]row, 0, len(accounts))
		for _, acc := range accounts {
			rows = append(rows, row{Name: acc.Name, Email: acc.Email, Enabled: acc.Enabled})
		}
		return writeJSON(w, rows)
	case FormatText:
		if len(accounts) == 0 {
			fmt.Fprintln(w, "No accounts configured.")
			return nil
		}
		for _, acc := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\n", acc.Name, acc.Email, enabledMark(acc.Enabled))
		}
		fmt.Fprintf(w, "\nTotal: %d accounts\n", len(accounts))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeGroups lists groups sorted by name.
func writeGroups(w io.Writer, groups []config.Group, format OutputFormat) error {
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	switch format {
	case FormatJSON:
		return writeJSON(w, groups)
	case FormatText:
		if len(groups) == 0 {
			fmt.Fprintln(w, "No groups configured.")
			return nil
		}
		for _, grp := range groups {
			fmt.Fprintf(w, "%s\t%s\t%s\n", grp.Name, grp.ChatID, enabledMark(grp.Enabled))
		}
		fmt.Fprintf(w, "\nTotal: %d groups\n", len(groups))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writePlatforms lists platforms sorted by key.
func writePlatforms(w io.Writer, platforms []config.Platform, format OutputFormat) error {
	sort.Slice(platforms, func(i, j int) bool { return platforms[i].Key < platforms[j].Key })

	switch format {
	case FormatJSON:
		return writeJSON(w, platforms)
	case FormatText:
		if len(platforms) == 0 {
			fmt.Fprintln(w, "No platforms configured.")
			return nil
		}
		for _, p := range platforms {
			emoji := p.Emoji
			if p.EmojiID != "" {
				emoji = "custom:" + p.EmojiID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Key, p.Short, emoji)
		}
		fmt.Fprintf(w, "\nTotal: %d platforms\n", len(platforms))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
