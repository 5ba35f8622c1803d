package format

import (
	"fmt"
	"strings"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/otp"
)

const (
	defaultEmoji = "✨"
	unknownISO2  = "UN"
)

// Rendered is the outbound form of a record.
type Rendered struct {
	// Text is the MarkdownV2 message body.
	Text string
	// CopyValue is the extracted OTP code (or the number when no code was
	// found), used for the inline copy button.
	CopyValue string
}

// Renderer turns OTP records into Telegram messages. It holds only
// read-only lookup tables and is safe for concurrent use.
type Renderer struct {
	platforms      map[string]config.Platform
	countries      []config.Country
	useCustomEmoji bool
}

// NewRenderer builds a renderer from the platform and country tables.
// Countries must be sorted longest dial code first (config.LoadCountries
// guarantees this) so prefix matching picks the most specific entry.
func NewRenderer(platforms []config.Platform, countries []config.Country, useCustomEmoji bool) *Renderer {
	byKey := make(map[string]config.Platform, len(platforms))
	for _, p := range platforms {
		key := strings.ToLower(strings.TrimSpace(p.Key))
		if key != "" {
			byKey[key] = p
		}
	}
	return &Renderer{platforms: byKey, countries: countries, useCustomEmoji: useCustomEmoji}
}

// Render produces the outbound message for a record. Total over all
// records: unknown platforms render without custom decoration and numbers
// that match no dial code render with a neutral flag.
func (r *Renderer) Render(rec *otp.Record) Rendered {
	platform, known := r.lookupPlatform(rec.Platform)

	short := shortLabel(rec.Platform, platform, known)
	emoji := r.emojiPrefix(platform, known)
	iso2, flag := r.detectCountry(rec.Number)
	number := numberWithPlus(rec.Number)

	head := escapeMarkdown(strings.TrimSpace(fmt.Sprintf("%s %s %s %s", short, iso2, flag, number)))
	body := escapeCodeBlock(strings.TrimSpace(rec.Message))
	stamp := escapeMarkdown(rec.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))

	var msg strings.Builder
	msg.WriteString("> ")
	msg.WriteString(emoji)
	msg.WriteString("*")
	msg.WriteString(head)
	msg.WriteString("*\n```\n")
	msg.WriteString(body)
	msg.WriteString("\n```\n_")
	msg.WriteString(stamp)
	msg.WriteString("_")

	copyValue := otp.ExtractCode(rec.Message)
	if copyValue == "" {
		copyValue = number
	}

	return Rendered{Text: msg.String(), CopyValue: copyValue}
}

func (r *Renderer) lookupPlatform(name string) (config.Platform, bool) {
	p, ok := r.platforms[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// emojiPrefix returns the emoji decoration including a trailing space. A
// custom emoji id renders as a tg://emoji inline image when enabled.
func (r *Renderer) emojiPrefix(p config.Platform, known bool) string {
	if known && r.useCustomEmoji && strings.TrimSpace(p.EmojiID) != "" {
		alt := strings.TrimSpace(p.Emoji)
		if alt == "" {
			alt = defaultEmoji
		}
		return fmt.Sprintf("![%s](tg://emoji?id=%s) ", alt, strings.TrimSpace(p.EmojiID))
	}
	if known && strings.TrimSpace(p.Emoji) != "" {
		return strings.TrimSpace(p.Emoji) + " "
	}
	return defaultEmoji + " "
}

func shortLabel(name string, p config.Platform, known bool) string {
	if known && strings.TrimSpace(p.Short) != "" {
		return strings.ToUpper(strings.TrimSpace(p.Short))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "NA"
	}
	if runes := []rune(name); len(runes) > 2 {
		name = string(runes[:2])
	}
	return strings.ToUpper(name)
}

// detectCountry matches the number's digits against the dial-code table.
func (r *Renderer) detectCountry(number string) (iso2, flag string) {
	digits := digitsOnly(number)
	digits = strings.TrimPrefix(digits, "00")

	for _, c := range r.countries {
		if c.DialCode != "" && strings.HasPrefix(digits, c.DialCode) {
			return strings.ToUpper(c.ISO2), flagForISO2(c.ISO2)
		}
	}
	return unknownISO2, flagForISO2("")
}

// flagForISO2 maps a two-letter country code onto regional indicator
// symbols. Anything that is not exactly two ASCII letters gets the white
// flag.
func flagForISO2(iso2 string) string {
	code := strings.ToUpper(strings.TrimSpace(iso2))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "🏳️"
	}
	const base = 0x1F1E6
	return string(rune(base+int(code[0]-'A'))) + string(rune(base+int(code[1]-'A')))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func numberWithPlus(raw string) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return raw
	}
	return "+" + digits
}

// escapeMarkdown escapes every MarkdownV2 special character.
func escapeMarkdown(text string) string {
	var b strings.Builder
	for _, ch := range text {
		switch ch {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// escapeCodeBlock keeps a fenced code block valid by defusing backtick runs.
func escapeCodeBlock(text string) string {
	return strings.ReplaceAll(text, "```", "'''")
}
