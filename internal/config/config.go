// Package config loads the runtime configuration and the JSON record files
// (accounts, groups, platforms, countries) that the relay reads each cycle.
//
// Runtime settings come from environment variables, overlaid by values
// persisted in runtime_config.json inside the data directory. A value in the
// file wins over the environment, so settings saved by earlier runs keep
// working without re-exporting variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
)

// Delivery policies for partial group failures. PolicyAll withholds the
// dedup commit until every enabled group succeeded; PolicyAny commits as
// soon as at least one group received the record.
const (
	PolicyAll = "all"
	PolicyAny = "any"
)

const runtimeFile = "runtime_config.json"

// Runtime holds the process-wide settings for a run.
type Runtime struct {
	APIBaseURL       string `env:"API_BASE_URL" envDefault:"http://127.0.0.1:8000"`
	APIStartDate     string `env:"API_START_DATE"`
	APISessionToken  string `env:"API_SESSION_TOKEN"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	BotLimit         int    `env:"BOT_LIMIT" envDefault:"30"`
	PollIntervalSecs int    `env:"POLL_INTERVAL_SECONDS" envDefault:"30"`
	Workers          int    `env:"POLL_WORKERS" envDefault:"4"`
	DeliveryPolicy   string `env:"DELIVERY_POLICY" envDefault:"all"`
	UseCustomEmoji   bool   `env:"USE_CUSTOM_EMOJI"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
}

// PollInterval returns the wait between cycles in continuous mode.
func (r *Runtime) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSecs) * time.Second
}

// StartDate parses APIStartDate (YYYY-MM-DD). A missing or malformed value
// falls back to today, matching the original client's normalization.
func (r *Runtime) StartDate() time.Time {
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(r.APIStartDate)); err == nil {
		return t.UTC()
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Validate checks the invariants required to start a run.
func (r *Runtime) Validate() error {
	if strings.TrimSpace(r.APIBaseURL) == "" {
		return apperr.Config("API_BASE_URL is required")
	}
	if strings.TrimSpace(r.TelegramBotToken) == "" {
		return apperr.Config("TELEGRAM_BOT_TOKEN is required")
	}
	if r.BotLimit <= 0 {
		return apperr.Config("BOT_LIMIT must be positive")
	}
	if r.PollIntervalSecs <= 0 {
		return apperr.Config("POLL_INTERVAL_SECONDS must be positive")
	}
	if r.Workers <= 0 {
		return apperr.Config("POLL_WORKERS must be positive")
	}
	if r.DeliveryPolicy != PolicyAll && r.DeliveryPolicy != PolicyAny {
		return apperr.Config(fmt.Sprintf("DELIVERY_POLICY must be %q or %q", PolicyAll, PolicyAny))
	}
	return nil
}

// Load builds the runtime configuration from the environment plus the
// persisted runtime_config.json overlay in dataDir.
func Load(dataDir string) (*Runtime, error) {
	var cfg Runtime
	if err := env.Parse(&cfg); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, "parsing environment", err)
	}

	overlay, err := loadRuntimeOverlay(filepath.Join(dataDir, runtimeFile))
	if err != nil {
		return nil, err
	}
	applyOverlay(&cfg, overlay)

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return &cfg, nil
}

// loadRuntimeOverlay reads the persisted settings file. Missing file means
// no overlay; a malformed file is a config error rather than a silent skip.
func loadRuntimeOverlay(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.CodeConfig, "reading "+runtimeFile, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, "parsing "+runtimeFile, err)
	}
	return raw, nil
}

func applyOverlay(cfg *Runtime, overlay map[string]string) {
	set := func(key string, apply func(string)) {
		if v, ok := overlay[key]; ok && strings.TrimSpace(v) != "" {
			apply(strings.TrimSpace(v))
		}
	}

	set("API_BASE_URL", func(v string) { cfg.APIBaseURL = v })
	set("API_START_DATE", func(v string) { cfg.APIStartDate = v })
	set("API_SESSION_TOKEN", func(v string) { cfg.APISessionToken = v })
	set("TELEGRAM_BOT_TOKEN", func(v string) { cfg.TelegramBotToken = v })
	set("TELEGRAM_CHAT_ID", func(v string) { cfg.TelegramChatID = v })
	set("DELIVERY_POLICY", func(v string) { cfg.DeliveryPolicy = v })
	set("BOT_LIMIT", func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BotLimit = n
		}
	})
	set("POLL_INTERVAL_SECONDS", func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollIntervalSecs = n
		}
	})
}

// ExpandDir expands a leading ~/ in dir and creates it if needed.
func ExpandDir(dir string) (string, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}
