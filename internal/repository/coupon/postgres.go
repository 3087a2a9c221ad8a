package coupon

import (
	"context"
	"errors"
	"io"
	"log"

	"heavenly-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

func (r *postgresRepo) GetByCodeForUser(ctx context.Context, code, userID string) (*domain.Coupon, error) {
	const q = `
SELECT id::text, code, discount_percentage, expires_at, is_active, user_id::text, created_at
FROM coupons
WHERE code = $1 AND user_id = $2
`
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, q, code, userID).Scan(
		&c.ID, &c.Code, &c.DiscountPercentage, &c.ExpiresAt, &c.IsActive, &c.UserID, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("coupon repo: get code=%s user=%s error=%v", code, userID, err)
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Create(ctx context.Context, in CreateCouponInput) (*domain.Coupon, error) {
	const q = `
INSERT INTO coupons (code, discount_percentage, expires_at, is_active, user_id)
VALUES ($1, $2, $3, TRUE, $4)
RETURNING id::text, created_at
`
	c := domain.Coupon{
		Code:               in.Code,
		DiscountPercentage: in.DiscountPercentage,
		ExpiresAt:          in.ExpiresAt,
		IsActive:           true,
		UserID:             in.UserID,
	}
	err := r.pool.QueryRow(ctx, q, in.Code, in.DiscountPercentage, in.ExpiresAt, in.UserID).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Printf("coupon repo: create code=%s user=%s error=%v", in.Code, in.UserID, err)
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Deactivate(ctx context.Context, code, userID string) error {
	cmd, err := r.pool.Exec(ctx, `
UPDATE coupons SET is_active = FALSE WHERE code = $1 AND user_id = $2
`, code, userID)
	if err != nil {
		r.logger.Printf("coupon repo: deactivate code=%s user=%s error=%v", code, userID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
