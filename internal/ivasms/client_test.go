package ivasms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/otp"
)

func TestLogin(t *testing.T) {
	t.Run("success returns token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
			var body loginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a@example.com", body.Email)
			_, _ = w.Write([]byte(`{"data":{"token":"tok-1"}}`))
		}))
		defer srv.Close()

		token, err := NewClient(srv.URL).Login(context.Background(), "a@example.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	})

	t.Run("unauthorized is an auth rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Login(context.Background(), "a@example.com", "wrong")
		assert.Equal(t, apperr.CodeAuthRejected, apperr.CodeOf(err))
		assert.False(t, apperr.Retryable(err))
	})

	t.Run("server error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Login(context.Background(), "a@example.com", "pw")
		assert.Equal(t, apperr.CodeNetwork, apperr.CodeOf(err))
		assert.True(t, apperr.Retryable(err))
	})

	t.Run("transport failure is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := NewClient(srv.URL).Login(context.Background(), "a@example.com", "pw")
		assert.Equal(t, apperr.CodeNetwork, apperr.CodeOf(err))
	})

	t.Run("empty token is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{}}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Login(context.Background(), "a@example.com", "pw")
		assert.Error(t, err)
	})
}

func wireMsg(id int64, ts time.Time) wireMessage {
	return wireMessage{
		ID:          id,
		ServiceName: "whatsapp",
		Number:      "+12025550123",
		Message:     fmt.Sprintf("code %d", id),
		Timestamp:   ts,
	}
}

func TestMessagesPagination(t *testing.T) {
	base := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/biring/code", r.URL.Path)
		var body messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-1", body.Token)

		w.Header().Set("Content-Type", "application/json")
		switch body.Page {
		case 1:
			// Descending server order on purpose; client must re-sort.
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"messages": []wireMessage{wireMsg(3, base.Add(2 * time.Hour)), wireMsg(2, base.Add(time.Hour))},
					"has_more": true,
				},
			})
		case 2:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"messages": []wireMessage{wireMsg(1, base)},
					"has_more": false,
				},
			})
		default:
			t.Errorf("unexpected page %d", body.Page)
		}
	}))
	defer srv.Close()

	since := otp.Key{Timestamp: base.Add(-24 * time.Hour)}
	records, err := NewClient(srv.URL).Messages(context.Background(), "tok-1", "demo-account-1", since)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Ascending cursor order across pages.
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
	assert.Equal(t, int64(3), records[2].ID)
	assert.Equal(t, "demo-account-1", records[0].AccountName)
	assert.Equal(t, "whatsapp", records[0].Platform)
}

func TestMessagesFiltersAtOrBeforeCursor(t *testing.T) {
	base := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"messages": []wireMessage{
					wireMsg(1, base.Add(-time.Hour)),
					wireMsg(2, base),
					wireMsg(3, base.Add(time.Hour)),
				},
				"has_more": false,
			},
		})
	}))
	defer srv.Close()

	since := otp.Key{Timestamp: base, ID: 2}
	records, err := NewClient(srv.URL).Messages(context.Background(), "tok", "demo", since)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].ID)
}

func TestMessagesEmptyWindowIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"messages":[],"has_more":false}}`))
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL).Messages(context.Background(), "tok", "demo", otp.Key{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMessagesFailedPageFailsWhole(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"data":{"messages":[{"id":1,"timestamp":"2025-01-02T10:00:00Z"}],"has_more":true}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL).Messages(context.Background(), "tok", "demo", otp.Key{})
	assert.Nil(t, records)
	assert.Equal(t, apperr.CodeFetch, apperr.CodeOf(err))
}

func TestMessagesStaleTokenIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Messages(context.Background(), "stale", "demo", otp.Key{})
	assert.Equal(t, apperr.CodeFetch, apperr.CodeOf(err))
	assert.ErrorIs(t, err, ErrUnauthorized)
}
