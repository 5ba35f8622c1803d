// Package telegram implements the Telegram Bot API client used by the
// dispatcher. Messages are sent with MarkdownV2 formatting and an inline
// keyboard carrying the OTP code as a copy-text button; clients that do not
// support copy-text get a share-URL fallback button instead.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
)

const (
	defaultBaseURL = "https://api.telegram.org/bot"
	timeout        = 30 * time.Second
)

// Client represents a Telegram Bot API client.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Telegram client.
func NewClient(botToken string) (*Client, error) {
	if botToken == "" {
		return nil, apperr.Config("bot token is required")
	}
	return &Client{
		botToken: botToken,
		baseURL:  defaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// NewClientWithBaseURL creates a client against a non-default API host.
// Used by tests.
func NewClientWithBaseURL(botToken, baseURL string) (*Client, error) {
	c, err := NewClient(botToken)
	if err != nil {
		return nil, err
	}
	c.baseURL = baseURL
	return c, nil
}

// RateLimited is returned for HTTP 429 responses. It carries the
// server-supplied retry_after hint for the retry helper.
type RateLimited struct {
	After time.Duration
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s", e.After)
}

// RetryAfter returns the server-supplied wait hint.
func (e *RateLimited) RetryAfter() time.Duration { return e.After }

// APIError is a non-ok Telegram API response.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error (status %d): %s", e.StatusCode, e.Description)
}

// Temporary reports whether the failure is worth retrying: server-side
// errors are, client-side rejections (bad chat id, malformed markup) are
// not.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

type inlineKeyboardButton struct {
	Text     string    `json:"text"`
	URL      string    `json:"url,omitempty"`
	CopyText *copyText `json:"copy_text,omitempty"`
}

type copyText struct {
	Text string `json:"text"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendMessage sends text to the given chat with a copy button for
// copyValue. When copyValue is empty no keyboard is attached. Returns the
// sent message id on success.
func (c *Client) SendMessage(ctx context.Context, chatID, text, copyValue string) (int64, error) {
	if text == "" {
		return 0, fmt.Errorf("message text is required")
	}

	resp, err := c.post(ctx, chatID, text, copyKeyboard(copyValue))
	if err != nil {
		return 0, err
	}
	if resp.OK {
		return resp.Result.MessageID, nil
	}

	// Older Bot API servers reject copy_text buttons. Fall back to a
	// share-URL button before giving up.
	if copyValue != "" {
		resp, err = c.post(ctx, chatID, text, shareKeyboard(copyValue))
		if err != nil {
			return 0, err
		}
		if resp.OK {
			return resp.Result.MessageID, nil
		}
	}

	return 0, &APIError{StatusCode: http.StatusBadRequest, Description: resp.Description}
}

func copyKeyboard(copyValue string) *inlineKeyboardMarkup {
	if copyValue == "" {
		return nil
	}
	return &inlineKeyboardMarkup{
		InlineKeyboard: [][]inlineKeyboardButton{
			{{Text: copyValue, CopyText: &copyText{Text: copyValue}}},
		},
	}
}

func shareKeyboard(copyValue string) *inlineKeyboardMarkup {
	return &inlineKeyboardMarkup{
		InlineKeyboard: [][]inlineKeyboardButton{
			{{Text: copyValue, URL: "https://t.me/share/url?url=" + url.QueryEscape(copyValue)}},
		},
	}
}

func (c *Client) post(ctx context.Context, chatID, text string, keyboard *inlineKeyboardMarkup) (*apiResponse, error) {
	endpoint := fmt.Sprintf("%s%s/sendMessage", c.baseURL, c.botToken)

	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Once a send is issued it runs to completion, bounded by the HTTP
	// client timeout. Aborting mid-flight on shutdown would leave a
	// delivered message uncommitted and re-sent on the next run.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Network("sending telegram request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Network("reading telegram response", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing telegram response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		after := time.Duration(result.Parameters.RetryAfter) * time.Second
		if after <= 0 {
			after = time.Second
		}
		return nil, &RateLimited{After: after}
	}
	if resp.StatusCode >= 500 {
		return nil, &APIError{StatusCode: resp.StatusCode, Description: result.Description}
	}

	return &result, nil
}
