// Command ivasms-otp relays OTP notifications from the panel API to
// Telegram group chats.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(cli.Execute(ctx))
}
