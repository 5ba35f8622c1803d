// Package dispatch fans one rendered message out to every enabled Telegram
// group, under a process-wide send-rate ceiling with bounded per-group
// retry. A failed group never blocks delivery to the others.
package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/apperr"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/retry"
)

const initialBackoff = time.Second

// Sender sends one message to one chat. Implemented by telegram.Client.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text, copyValue string) (int64, error)
}

// DeliveryResult records the terminal outcome for one group.
type DeliveryResult struct {
	Group     config.Group
	MessageID int64
	Err       error
}

// Dispatcher delivers rendered messages to groups.
type Dispatcher struct {
	sender  Sender
	limiter *Limiter
	policy  string
	backoff time.Duration
}

// New creates a dispatcher. The limiter is shared state: all dispatchers
// and all concurrent account tasks must use the same instance so no send
// bypasses the ceiling.
func New(sender Sender, limiter *Limiter, policy string) *Dispatcher {
	return &Dispatcher{sender: sender, limiter: limiter, policy: policy, backoff: initialBackoff}
}

// Send delivers text to every group, in order, one result per group. Each
// send attempt (including retries) takes a limiter slot first. Transient
// failures retry with backoff, honoring any server retry-after hint;
// terminal failures are wrapped as delivery errors and isolated to their
// group.
func (d *Dispatcher) Send(ctx context.Context, groups []config.Group, text, copyValue string) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(groups))

	for _, grp := range groups {
		if ctx.Err() != nil {
			results = append(results, DeliveryResult{Group: grp, Err: ctx.Err()})
			continue
		}

		var messageID int64
		err := retry.Do(ctx, retry.DefaultAttempts, d.backoff, func() error {
			if err := d.limiter.Acquire(ctx); err != nil {
				return err
			}
			var sendErr error
			messageID, sendErr = d.sender.SendMessage(ctx, grp.ChatID, text, copyValue)
			return sendErr
		})

		if err != nil {
			err = apperr.Delivery(grp.Name, err)
			log.Warn().Err(err).Str("group", grp.Name).Str("chat_id", grp.ChatID).Msg("send failed")
		} else {
			log.Debug().Str("group", grp.Name).Int64("message_id", messageID).Msg("sent")
		}
		results = append(results, DeliveryResult{Group: grp, MessageID: messageID, Err: err})
	}

	return results
}

// Delivered applies the configured partial-failure policy: with PolicyAll
// every group must have succeeded, with PolicyAny one success is enough.
// No results means not delivered either way; an empty group set must never
// advance the cursor.
func (d *Dispatcher) Delivered(results []DeliveryResult) bool {
	if len(results) == 0 {
		return false
	}

	succeeded := 0
	for _, res := range results {
		if res.Err == nil {
			succeeded++
		}
	}

	if d.policy == config.PolicyAny {
		return succeeded > 0
	}
	return succeeded == len(results)
}
