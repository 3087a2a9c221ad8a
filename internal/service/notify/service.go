// Package notify delivers order events to users and admins. Every event is
// persisted first; the live socket push is a latency optimization on top of
// the durable record.
package notify

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	"heavenly-backend/internal/domain"
	"heavenly-backend/internal/queue"
	notifrepo "heavenly-backend/internal/repository/notification"
)

// Event names match what the web client subscribes to.
const (
	EventOrderStatusUpdated = "orderStatusUpdated"
	EventNewOrder           = "newOrder"
)

type notificationRepo interface {
	Create(ctx context.Context, in notifrepo.CreateInput) (*domain.Notification, error)
}

type presence interface {
	IsReachable(rec domain.Recipient) bool
	Push(rec domain.Recipient, event string, payload interface{})
}

// Payload is what gets pushed live, queued for replay, and returned to the
// caller. It mirrors the persisted notification plus any extra fields.
type Payload struct {
	ID          string                 `json:"id"`
	OrderID     string                 `json:"orderId"`
	StatusLabel string                 `json:"newStatus,omitempty"`
	Message     string                 `json:"message"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Dispatcher persists and routes notifications.
type Dispatcher struct {
	repo     notificationRepo
	presence presence
	mailbox  queue.Mailbox
	logger   *log.Logger
}

func New(repo notificationRepo, presence presence, mailbox queue.Mailbox, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Dispatcher{repo: repo, presence: presence, mailbox: mailbox, logger: logger}
}

// Notify persists the event and then delivers it: live push when the
// recipient has a connection, otherwise an append to the offline mailbox.
// Mailbox failures are logged, not returned; the persisted record is the
// source of truth clients can always poll.
func (d *Dispatcher) Notify(ctx context.Context, rec domain.Recipient, orderID, statusLabel, message string, extra map[string]interface{}) (*Payload, error) {
	saved, err := d.repo.Create(ctx, notifrepo.CreateInput{
		Recipient:   rec,
		OrderID:     orderID,
		Message:     message,
		StatusLabel: statusLabel,
	})
	if err != nil {
		return nil, err
	}

	p := &Payload{
		ID:          saved.ID,
		OrderID:     orderID,
		StatusLabel: statusLabel,
		Message:     message,
		Extra:       extra,
		CreatedAt:   saved.CreatedAt,
	}

	if d.presence != nil && d.presence.IsReachable(rec) {
		d.presence.Push(rec, eventFor(rec), *p)
		return p, nil
	}

	if d.mailbox != nil {
		data, err := json.Marshal(p)
		if err == nil {
			err = d.mailbox.Append(ctx, rec, data)
		}
		if err != nil {
			d.logger.Printf("notify: queue for %s failed: %v", rec.Key(), err)
		}
	}
	return p, nil
}

// FlushMissed replays and clears the recipient's offline mailbox; called by
// the realtime layer when a connection is (re)established.
func (d *Dispatcher) FlushMissed(ctx context.Context, rec domain.Recipient) {
	if d.mailbox == nil || d.presence == nil {
		return
	}
	entries, err := d.mailbox.Drain(ctx, rec)
	if err != nil {
		d.logger.Printf("notify: drain mailbox for %s failed: %v", rec.Key(), err)
		return
	}
	for _, raw := range entries {
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			d.logger.Printf("notify: bad mailbox entry for %s: %v", rec.Key(), err)
			continue
		}
		d.presence.Push(rec, eventFor(rec), p)
	}
	if len(entries) > 0 {
		d.logger.Printf("notify: replayed %d missed notifications to %s", len(entries), rec.Key())
	}
}

func eventFor(rec domain.Recipient) string {
	if rec.Kind == domain.RecipientAdmin {
		return EventNewOrder
	}
	return EventOrderStatusUpdated
}
