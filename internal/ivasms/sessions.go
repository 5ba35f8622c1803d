package ivasms

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/retry"
)

const (
	tokenCacheFile = "token_cache.json"
	tokenTTL       = 2 * time.Hour
	// refreshSkew expires tokens early so a token never dies mid-cycle.
	refreshSkew = 5 * time.Minute
)

type cachedToken struct {
	Token      string `json:"token"`
	ObtainedAt int64  `json:"obtained_at"`
	ExpiresAt  int64  `json:"expires_at"`
}

type tokenCache struct {
	Accounts map[string]cachedToken `json:"accounts"`
}

// Sessions owns the per-account API session cache. It refreshes tokens on
// expiry, persists them across restarts, and remembers which accounts had
// their credentials rejected so they are not retried within the run.
type Sessions struct {
	client        *Client
	cachePath     string
	fallbackToken string

	mu       sync.Mutex
	tokens   map[string]cachedToken
	rejected map[string]bool

	now func() time.Time
}

// NewSessions creates a session manager backed by token_cache.json in
// dataDir. A cache that cannot be read starts empty; the cache is an
// optimization, never a source of truth.
func NewSessions(client *Client, dataDir, fallbackToken string) *Sessions {
	s := &Sessions{
		client:        client,
		cachePath:     filepath.Join(dataDir, tokenCacheFile),
		fallbackToken: fallbackToken,
		tokens:        make(map[string]cachedToken),
		rejected:      make(map[string]bool),
		now:           time.Now,
	}

	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return s
	}
	var cache tokenCache
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Warn().Err(err).Msg("token cache unreadable, starting empty")
		return s
	}
	if cache.Accounts != nil {
		s.tokens = cache.Accounts
	}
	return s
}

// FallbackToken returns the account-independent session token, if
// configured. It is used uninterpreted: never verified, never refreshed.
func (s *Sessions) FallbackToken() string {
	return s.fallbackToken
}

// Acquire returns a usable session token for the account. A cached,
// unexpired token is returned without network I/O; otherwise the login
// exchange runs with bounded retry on transport failures. Credential
// rejection disables the account for the remainder of the run.
func (s *Sessions) Acquire(ctx context.Context, account config.Account) (string, error) {
	if !account.Enabled {
		return "", apperr.Wrap(apperr.CodeAuthRejected, "acquire",
			fmt.Errorf("account %q is disabled", account.Name))
	}

	s.mu.Lock()
	if s.rejected[account.Name] {
		s.mu.Unlock()
		return "", apperr.AuthRejected(account.Name)
	}
	if tok, ok := s.tokens[account.Name]; ok && s.validLocked(tok) {
		s.mu.Unlock()
		return tok.Token, nil
	}
	s.mu.Unlock()

	var token string
	err := retry.Do(ctx, retry.DefaultAttempts, 500*time.Millisecond, func() error {
		var loginErr error
		token, loginErr = s.client.Login(ctx, account.Email, account.Password)
		return loginErr
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeAuthRejected) {
			s.mu.Lock()
			s.rejected[account.Name] = true
			delete(s.tokens, account.Name)
			s.mu.Unlock()
			s.flush()
			log.Warn().Str("account", account.Name).Msg("credentials rejected, account disabled for this run")
		}
		return "", err
	}

	now := s.now().Unix()
	s.mu.Lock()
	s.tokens[account.Name] = cachedToken{
		Token:      token,
		ObtainedAt: now,
		ExpiresAt:  now + int64(tokenTTL.Seconds()),
	}
	s.mu.Unlock()
	s.flush()

	return token, nil
}

func (s *Sessions) validLocked(tok cachedToken) bool {
	if tok.Token == "" {
		return false
	}
	return tok.ExpiresAt > s.now().Add(refreshSkew).Unix()
}

// Invalidate drops the cached token for an account, forcing a fresh login
// on the next Acquire. Called when a fetch comes back unauthorized.
func (s *Sessions) Invalidate(account string) {
	s.mu.Lock()
	delete(s.tokens, account)
	s.mu.Unlock()
	s.flush()
}

// flush persists the cache. Failures are logged, not fatal: losing the
// cache only costs a re-login.
func (s *Sessions) flush() {
	s.mu.Lock()
	cache := tokenCache{Accounts: make(map[string]cachedToken, len(s.tokens))}
	for k, v := range s.tokens {
		cache.Accounts[k] = v
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("encoding token cache failed")
		return
	}
	if err := os.WriteFile(s.cachePath, data, 0o600); err != nil {
		log.Warn().Err(err).Msg("writing token cache failed")
	}
}
