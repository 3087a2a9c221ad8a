// Package queue holds missed realtime notifications for offline recipients.
// Entries expire after a day; the permanent notification history lives in
// the notification store, not here.
package queue

import (
	"context"
	"time"

	"heavenly-backend/internal/domain"
)

// DefaultTTL is how long a missed notification stays replayable.
const DefaultTTL = 24 * time.Hour

// Mailbox is a per-recipient FIFO of serialized notification payloads.
type Mailbox interface {
	// Append pushes a payload to the recipient's queue and refreshes its TTL.
	Append(ctx context.Context, rec domain.Recipient, payload []byte) error
	// Drain returns all queued payloads in order and clears the queue.
	Drain(ctx context.Context, rec domain.Recipient) ([][]byte, error)
}
