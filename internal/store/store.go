package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/otp"
)

const storeFile = "sent_store.json"

// Store tracks the last delivered record per account.
type Store struct {
	mu           sync.Mutex
	path         string
	defaultStart time.Time
	seededStart  time.Time
	cursors      map[string]otp.Key
}

type storeState struct {
	Accounts    map[string]otp.Key `json:"accounts"`
	SeededStart string             `json:"seeded_start,omitempty"`
	UpdatedAt   string             `json:"updated_at"`
}

// Open loads (or initializes) the store in dataDir. Cursors for accounts
// not present in the file default to a persisted clear seed when one
// exists, else to defaultStart.
func Open(dataDir string, defaultStart time.Time) (*Store, error) {
	s := &Store{
		path:         filepath.Join(dataDir, storeFile),
		defaultStart: defaultStart.UTC(),
		cursors:      make(map[string]otp.Key),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading store: %w", err)
	}

	var state storeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing store: %w", err)
	}
	if state.Accounts != nil {
		s.cursors = state.Accounts
	}
	if state.SeededStart != "" {
		seeded, err := time.Parse(time.RFC3339, state.SeededStart)
		if err != nil {
			return nil, fmt.Errorf("parsing store seed date: %w", err)
		}
		s.seededStart = seeded.UTC()
	}
	return s, nil
}

// startLocked is the position accounts without a stored cursor begin at: a
// persisted clear seed when one was set, else the configured start date.
// Caller holds mu.
func (s *Store) startLocked() otp.Key {
	if !s.seededStart.IsZero() {
		return otp.Key{Timestamp: s.seededStart}
	}
	return otp.Key{Timestamp: s.defaultStart}
}

// Cursor returns the account's current cursor, defaulting to the seeded or
// configured start date when the account has no stored position.
func (s *Store) Cursor(account string) otp.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.cursors[account]; ok {
		return k
	}
	return s.startLocked()
}

// IsNew reports whether the record is strictly after the account's cursor.
func (s *Store) IsNew(account string, rec *otp.Record) bool {
	return rec.Key().After(s.Cursor(account))
}

// Commit advances the account's cursor to the record's position and writes
// the store through to disk. Committing a position at or before the current
// cursor is a no-op; the cursor never regresses.
func (s *Store) Commit(account string, rec *otp.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	cur, ok := s.cursors[account]
	if !ok {
		cur = s.startLocked()
	}
	if !key.After(cur) {
		return nil
	}

	s.cursors[account] = key
	return s.flushLocked()
}

// Clear resets cursors. With account == "" every account is cleared. A
// non-zero seed re-seeds the cleared cursor(s) to that date instead of the
// store's default start date; an all-accounts seed is persisted so accounts
// with no stored cursor yet honor it too. Clearing twice with the same
// arguments is equivalent to clearing once.
func (s *Store) Clear(account string, seed time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account == "" {
		s.cursors = make(map[string]otp.Key)
		s.seededStart = seed.UTC()
	} else if seed.IsZero() {
		delete(s.cursors, account)
	} else {
		s.cursors[account] = otp.Key{Timestamp: seed.UTC()}
	}
	return s.flushLocked()
}

// flushLocked writes the store to disk atomically (temp file + rename) so a
// crash mid-write never corrupts the previous state. Caller holds mu.
func (s *Store) flushLocked() error {
	state := storeState{
		Accounts:  s.cursors,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if !s.seededStart.IsZero() {
		state.SeededStart = s.seededStart.Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}
