package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	// failures maps chat_id to a queue of errors returned before success.
	failures map[string][]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failures: make(map[string][]error)}
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID, text, copyValue string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, chatID)
	if queue := f.failures[chatID]; len(queue) > 0 {
		err := queue[0]
		f.failures[chatID] = queue[1:]
		return 0, err
	}
	return int64(len(f.calls)), nil
}

func (f *fakeSender) callCount(chatID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == chatID {
			n++
		}
	}
	return n
}

var testGroups = []config.Group{
	{Name: "main", ChatID: "-1001", Enabled: true},
	{Name: "backup", ChatID: "-1002", Enabled: true},
}

func testDispatcher(sender Sender, policy string) *Dispatcher {
	d := New(sender, NewLimiter(100, time.Minute), policy)
	d.backoff = time.Millisecond
	return d
}

func TestSendFansOutToAllGroups(t *testing.T) {
	sender := newFakeSender()
	d := testDispatcher(sender, config.PolicyAll)

	results := d.Send(context.Background(), testGroups, "text", "123-456")
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.NotZero(t, res.MessageID)
	}
	assert.Equal(t, 1, sender.callCount("-1001"))
	assert.Equal(t, 1, sender.callCount("-1002"))
}

func TestSendRetriesTransientFailures(t *testing.T) {
	sender := newFakeSender()
	sender.failures["-1001"] = []error{
		apperr.Network("send", errors.New("reset")),
		apperr.Network("send", errors.New("reset")),
	}
	d := testDispatcher(sender, config.PolicyAll)

	results := d.Send(context.Background(), testGroups[:1], "text", "")
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 3, sender.callCount("-1001"))
}

func TestSendIsolatesGroupFailures(t *testing.T) {
	sender := newFakeSender()
	boom := apperr.Network("send", errors.New("down"))
	sender.failures["-1001"] = []error{boom, boom, boom}
	d := testDispatcher(sender, config.PolicyAll)

	results := d.Send(context.Background(), testGroups, "text", "")
	require.Len(t, results, 2)

	assert.Equal(t, apperr.CodeDelivery, apperr.CodeOf(results[0].Err))
	assert.NoError(t, results[1].Err)
	// The failing group burned its attempt budget; the healthy one sent once.
	assert.Equal(t, 3, sender.callCount("-1001"))
	assert.Equal(t, 1, sender.callCount("-1002"))
}

func TestSendStopsRetryingPermanentErrors(t *testing.T) {
	sender := newFakeSender()
	sender.failures["-1001"] = []error{errPermanent{}}
	d := testDispatcher(sender, config.PolicyAll)

	results := d.Send(context.Background(), testGroups[:1], "text", "")
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 1, sender.callCount("-1001"))
}

type errPermanent struct{}

func (errPermanent) Error() string   { return "chat not found" }
func (errPermanent) Temporary() bool { return false }

func TestSendRespectsRateCeiling(t *testing.T) {
	// 2 sends per 100ms against 5 groups: the full fanout needs at least
	// two extra window waits.
	sender := newFakeSender()
	groups := make([]config.Group, 5)
	for i := range groups {
		groups[i] = config.Group{Name: "g", ChatID: string(rune('a' + i)), Enabled: true}
	}
	d := New(sender, NewLimiter(2, 100*time.Millisecond), config.PolicyAll)
	d.backoff = time.Millisecond

	start := time.Now()
	results := d.Send(context.Background(), groups, "text", "")
	elapsed := time.Since(start)

	require.Len(t, results, 5)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}
	assert.GreaterOrEqual(t, elapsed, 180*time.Millisecond)
}

func TestDelivered(t *testing.T) {
	ok := DeliveryResult{}
	failed := DeliveryResult{Err: apperr.Delivery("main", errors.New("down"))}

	tests := []struct {
		name    string
		policy  string
		results []DeliveryResult
		want    bool
	}{
		{"all policy, every group ok", config.PolicyAll, []DeliveryResult{ok, ok}, true},
		{"all policy, one failure withholds", config.PolicyAll, []DeliveryResult{ok, failed}, false},
		{"any policy, one success commits", config.PolicyAny, []DeliveryResult{ok, failed}, true},
		{"any policy, total failure", config.PolicyAny, []DeliveryResult{failed, failed}, false},
		{"no groups never delivered (all)", config.PolicyAll, nil, false},
		{"no groups never delivered (any)", config.PolicyAny, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDispatcher(newFakeSender(), tt.policy)
			assert.Equal(t, tt.want, d.Delivered(tt.results))
		})
	}
}
