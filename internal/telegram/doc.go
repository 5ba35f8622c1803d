// Package telegram is a minimal Telegram Bot API client for sending OTP
// notification messages.
//
// It covers exactly what the relay needs: sendMessage with MarkdownV2 text
// and an inline copy-code keyboard, with a share-URL fallback for servers
// that reject the copy_text button. Rate-limit (429) and server (5xx)
// responses map to typed errors so the dispatcher can schedule retries.
//
// Authentication requires a bot token from @BotFather.
package telegram
