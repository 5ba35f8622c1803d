package ivasms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/sling"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/otp"
)

const (
	defaultPageSize = 100
	// maxPages bounds the page walk so a server that keeps answering
	// has_more=true cannot wedge a cycle.
	maxPages = 100
)

// ErrUnauthorized marks a fetch rejected because the session token went
// stale server-side. The orchestrator invalidates the cached token and
// retries with a fresh login once.
var ErrUnauthorized = errors.New("session token rejected")

// Client is a client for the OTP panel API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
}

// NewClient creates a new panel API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		pageSize: defaultPageSize,
	}
}

func (c *Client) sling() *sling.Sling {
	return sling.New().Client(c.httpClient).Base(c.baseURL + "/")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type apiFailure struct {
	Message string `json:"message"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req, err := c.sling().Post("api/v1/auth/login").BodyJSON(&loginRequest{
		Email:    email,
		Password: password,
	}).Request()
	if err != nil {
		return "", apperr.Network("building login request", err)
	}

	var success loginResponse
	var failure apiFailure
	resp, err := c.sling().Do(req.WithContext(ctx), &success, &failure)
	if err != nil {
		return "", apperr.Network("login", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if success.Data.Token == "" {
			return "", apperr.Network("login", fmt.Errorf("empty token in response"))
		}
		return success.Data.Token, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apperr.Wrap(apperr.CodeAuthRejected, "login",
			fmt.Errorf("status %d: %s", resp.StatusCode, failure.Message))
	default:
		return "", apperr.Network("login", fmt.Errorf("status %d: %s", resp.StatusCode, failure.Message))
	}
}

type messagesRequest struct {
	Token     string `json:"token"`
	StartDate string `json:"start_date"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

type wireMessage struct {
	ID          int64     `json:"id"`
	ServiceName string    `json:"service_name"`
	Number      string    `json:"number"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type messagesResponse struct {
	Data struct {
		Messages []wireMessage `json:"messages"`
		HasMore  bool          `json:"has_more"`
	} `json:"data"`
}

// Messages fetches every record strictly after since for the account,
// walking all server pages. Records come back ascending by cursor position.
// An empty window is success; any failed page fails the whole call with a
// fetch error and nothing is returned.
func (c *Client) Messages(ctx context.Context, token, accountName string, since otp.Key) ([]*otp.Record, error) {
	var records []*otp.Record

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, apperr.Fetch("listing messages", fmt.Errorf("page walk exceeded %d pages", maxPages))
		}

		body := &messagesRequest{
			Token:     token,
			StartDate: since.Timestamp.UTC().Format("2006-01-02"),
			Page:      page,
			PerPage:   c.pageSize,
		}
		req, err := c.sling().Post("api/v1/biring/code").BodyJSON(body).Request()
		if err != nil {
			return nil, apperr.Network("building messages request", err)
		}

		var success messagesResponse
		var failure apiFailure
		resp, err := c.sling().Do(req.WithContext(ctx), &success, &failure)
		if err != nil {
			return nil, apperr.Network("listing messages", err)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, apperr.Fetch("listing messages", fmt.Errorf("page %d: %w", page, ErrUnauthorized))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, apperr.Fetch("listing messages",
				fmt.Errorf("page %d: status %d: %s", page, resp.StatusCode, failure.Message))
		}

		for _, m := range success.Data.Messages {
			rec := &otp.Record{
				AccountName: accountName,
				ID:          m.ID,
				Platform:    m.ServiceName,
				Number:      m.Number,
				Message:     m.Message,
				Timestamp:   m.Timestamp.UTC(),
			}
			// The API filters by day; the cursor is finer than that.
			if rec.Key().After(since) {
				records = append(records, rec)
			}
		}

		if !success.Data.HasMore {
			break
		}
	}

	// The server does not guarantee stable ordering across pages.
	otp.SortRecords(records)
	return records, nil
}
