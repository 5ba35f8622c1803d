package otp

import (
	"regexp"
	"sort"
	"time"
)

// Record represents a single OTP notification from the upstream API.
type Record struct {
	AccountName string    `json:"account_name"`
	ID          int64     `json:"id"`
	Platform    string    `json:"platform"`
	Number      string    `json:"number"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Key is a record's cursor position. Ordering is by timestamp with the
// numeric id as a tie-break, so records sharing a timestamp still have a
// stable total order.
type Key struct {
	Timestamp time.Time `json:"last_seen_timestamp"`
	ID        int64     `json:"last_seen_id"`
}

// Key returns the record's cursor position.
func (r *Record) Key() Key {
	return Key{Timestamp: r.Timestamp, ID: r.ID}
}

// After reports whether k is strictly after other.
func (k Key) After(other Key) bool {
	if !k.Timestamp.Equal(other.Timestamp) {
		return k.Timestamp.After(other.Timestamp)
	}
	return k.ID > other.ID
}

// IsZero reports whether k is the zero position (no cursor yet).
func (k Key) IsZero() bool {
	return k.Timestamp.IsZero() && k.ID == 0
}

// SortRecords orders records ascending by cursor position. The dispatcher
// processes records in this order so a mid-cycle crash leaves the cursor
// consistent with what was actually sent.
func SortRecords(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[j].Key().After(records[i].Key())
	})
}

var (
	codeDashed = regexp.MustCompile(`\b\d{2,4}-\d{2,4}\b`)
	codePlain  = regexp.MustCompile(`\b\d{4,8}\b`)
)

// ExtractCode pulls the verification code out of a message body. Dashed
// codes like "123-456" are preferred over plain digit runs. Returns "" when
// no code-looking token is present.
func ExtractCode(message string) string {
	if m := codeDashed.FindString(message); m != "" {
		return m
	}
	return codePlain.FindString(message)
}
