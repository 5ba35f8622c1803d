// Package format renders OTP records into Telegram MarkdownV2 messages.
//
// Rendering is a pure function over the record plus the read-only platform
// and country tables: platform keys map to a short label and an emoji (or a
// Telegram custom emoji id), phone numbers resolve to an ISO2 code and flag
// through the dial-code table. Unknown platforms and unmatched numbers
// degrade to generic decorations; Render never fails.
package format
