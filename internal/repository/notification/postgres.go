package notification

import (
	"context"
	"errors"
	"io"
	"log"

	"heavenly-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Notification, error) {
	const q = `
INSERT INTO notifications (recipient, order_id, message, status_label, read)
VALUES ($1, $2, $3, NULLIF($4, ''), FALSE)
RETURNING id::text, created_at
`
	n := domain.Notification{
		Recipient:   in.Recipient,
		OrderID:     in.OrderID,
		Message:     in.Message,
		StatusLabel: in.StatusLabel,
	}
	err := r.pool.QueryRow(ctx, q, in.Recipient.Key(), in.OrderID, in.Message, in.StatusLabel).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.logger.Printf("notification repo: create recipient=%s order=%s error=%v", in.Recipient.Key(), in.OrderID, err)
		return nil, err
	}
	return &n, nil
}

func (r *postgresRepo) ListByRecipient(ctx context.Context, rec domain.Recipient, page, limit int) ([]domain.Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient = $1`, rec.Key()).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `
SELECT id::text, recipient, order_id::text, message, COALESCE(status_label, ''), read, created_at
FROM notifications
WHERE recipient = $1
ORDER BY created_at DESC
OFFSET $2 LIMIT $3
`
	rows, err := r.pool.Query(ctx, q, rec.Key(), (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var key string
		if err := rows.Scan(&n.ID, &key, &n.OrderID, &n.Message, &n.StatusLabel, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		n.Recipient = domain.RecipientFromKey(key)
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *postgresRepo) MarkRead(ctx context.Context, id string, rec domain.Recipient) (*domain.Notification, error) {
	const q = `
UPDATE notifications
SET read = TRUE
WHERE id = $1 AND recipient = $2
RETURNING id::text, recipient, order_id::text, message, COALESCE(status_label, ''), read, created_at
`
	var n domain.Notification
	var key string
	err := r.pool.QueryRow(ctx, q, id, rec.Key()).Scan(&n.ID, &key, &n.OrderID, &n.Message, &n.StatusLabel, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("notification repo: mark read id=%s error=%v", id, err)
		return nil, err
	}
	n.Recipient = domain.RecipientFromKey(key)
	return &n, nil
}

func (r *postgresRepo) MarkAllRead(ctx context.Context, rec domain.Recipient) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE recipient = $1 AND NOT read`, rec.Key())
	if err != nil {
		r.logger.Printf("notification repo: mark all read recipient=%s error=%v", rec.Key(), err)
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
