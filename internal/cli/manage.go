package cli

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/store"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage panel accounts",
	}

	var (
		name     string
		email    string
		password string
		disabled bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add or update an account (matched by email)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandDir(flagDataDir)
			if err != nil {
				return err
			}
			acc := config.Account{
				Name:     strings.TrimSpace(name),
				Email:    strings.TrimSpace(email),
				Password: password,
				Enabled:  !disabled,
			}
			if acc.Name == "" {
				acc.Name = acc.Email
			}
			return config.UpsertAccount(dir, acc)
		},
	}
	add.Flags().StringVar(&name, "name", "", "Display name (defaults to the email)")
	add.Flags().StringVar(&email, "email", "", "Panel login email (required)")
	add.Flags().StringVar(&password, "password", "", "Panel login password (required)")
	add.Flags().BoolVar(&disabled, "disabled", false, "Add the account disabled")
	add.MarkFlagRequired("email")
	add.MarkFlagRequired("password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandDir(flagDataDir)
			if err != nil {
				return err
			}
			accounts, err := config.LoadAccounts(dir)
			if err != nil {
				return err
			}
			return writeAccounts(os.Stdout, accounts, OutputFormat(flagFormat))
		},
	}
	list.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(add, list)
	return cmd
}

func newGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage Telegram destination groups",
	}

	var (
		name     string
		chatID   string
		disabled bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add or update a group (matched by chat id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandDir(flagDataDir)
			if err != nil {
				return err
			}
			grp := config.Group{
				Name:    strings.TrimSpace(name),
				ChatID:  strings.TrimSpace(chatID),
				Enabled: !disabled,
			}
			if grp.Name == "" {
				grp.Name = grp.ChatID
			}
			return config.UpsertGroup(dir, grp)
		},
	}
	add.Flags().StringVar(&name, "name", "", "Display name (defaults to the chat id)")
	add.Flags().StringVar(&chatID, "chat-id", "", "Telegram chat id, e.g. -1001234567890 (required)")
	add.Flags().BoolVar(&disabled, "disabled", false, "Add the group disabled")
	add.MarkFlagRequired("chat-id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List configured groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandDir(flagDataDir)
			if err != nil {
				return err
			}
			groups, err := config.LoadGroups(dir)
			if err != nil {
				return err
			}
			return writeGroups(os.Stdout, groups, OutputFormat(flagFormat))
		},
	}
	list.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(add, list)
	return cmd
}

func newPlatformsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "platforms",
		Short: "Manage platform display settings",
	}

	setEmoji := &cobra.Command{
		Use:   "set-emoji <platform-key> <custom-emoji-id>",
		Short: "Attach a Telegram custom emoji id to a platform",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandDir(flagDataDir)
			if err != nil {
				return err
			}
			return config.SetPlatformEmoji(dir, args[0], args[1])
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandDir(flagDataDir)
			if err != nil {
				return err
			}
			platforms, err := config.LoadPlatforms(dir)
			if err != nil {
				return err
			}
			return writePlatforms(os.Stdout, platforms, OutputFormat(flagFormat))
		},
	}
	list.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(setEmoji, list)
	return cmd
}

func newClearStoreCmd() *cobra.Command {
	var (
		account   string
		startDate string
	)
	cmd := &cobra.Command{
		Use:   "clear-store",
		Short: "Reset dedup cursors so messages are refetched",
		Long: `Resets the per-account dedup cursors. Without --account every cursor is
cleared. With --start-date the cleared cursors are re-seeded to that date
instead of falling back to the configured start date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandDir(flagDataDir)
			if err != nil {
				return err
			}
			seed, err := parseDate(startDate)
			if err != nil {
				return err
			}
			st, err := store.Open(dir, time.Time{})
			if err != nil {
				return err
			}
			return st.Clear(strings.TrimSpace(account), seed)
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Only clear this account's cursor")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Re-seed cleared cursors to this date (YYYY-MM-DD)")
	return cmd
}
