package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/dispatch"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/ivasms"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/poller"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/store"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/telegram"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagDataDir   string
	flagOnce      bool
	flagInterval  time.Duration
	flagStartDate string
	flagFormat    string
)

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// NewRootCmd creates the root command. Running it with no subcommand starts
// the relay loop.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ivasms-otp",
		Short: "Relay OTP notifications from the panel API to Telegram groups",
		Long: `Polls the panel API for new OTP notifications per account and relays
each one exactly once to the enabled Telegram group chats. Accounts, groups
and platform emoji live as JSON tables in the data directory and can be
edited with the subcommands while the relay is stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRelay,
	}

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "~/.local/share/ivasms-otp", "Data directory for tables, caches and the dedup store")
	cmd.Flags().BoolVar(&flagOnce, "once", false, "Run a single cycle and exit")
	cmd.Flags().DurationVar(&flagInterval, "interval", 0, "Override the wait between cycles (e.g. 45s)")
	cmd.Flags().StringVar(&flagStartDate, "start-date", "", "Override the fetch start date (YYYY-MM-DD)")

	cmd.AddCommand(newAccountsCmd())
	cmd.AddCommand(newGroupsCmd())
	cmd.AddCommand(newPlatformsCmd())
	cmd.AddCommand(newClearStoreCmd())

	return cmd
}

func runRelay(cmd *cobra.Command, args []string) error {
	dir, err := config.ExpandDir(flagDataDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if flagInterval > 0 {
		cfg.PollIntervalSecs = int(flagInterval.Seconds())
	}
	if flagStartDate != "" {
		cfg.APIStartDate = flagStartDate
	}
	setupLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	tg, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		return err
	}
	st, err := store.Open(dir, cfg.StartDate())
	if err != nil {
		return err
	}

	client := ivasms.NewClient(cfg.APIBaseURL)
	sessions := ivasms.NewSessions(client, dir, cfg.APISessionToken)
	dispatcher := dispatch.New(tg, dispatch.NewLimiter(cfg.BotLimit, time.Minute), cfg.DeliveryPolicy)
	p := poller.New(cfg, dir, sessions, client, st, dispatcher)

	log.Info().
		Str("api", cfg.APIBaseURL).
		Str("data_dir", dir).
		Bool("once", flagOnce).
		Msg("starting relay")

	if err := p.Run(cmd.Context(), flagOnce); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("shutting down")
			return nil
		}
		return err
	}
	return nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// parseDate parses a YYYY-MM-DD flag value, returning the zero time for an
// empty value.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return t.UTC(), nil
}
