package cart

import (
	"context"

	"heavenly-backend/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	const q = `
SELECT id::text, user_id::text, product_id::text, quantity, color, size, created_at
FROM cart_lines
WHERE user_id = $1
ORDER BY created_at ASC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.Color, &line.Size, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) AddLine(ctx context.Context, line domain.CartLine) error {
	const q = `
INSERT INTO cart_lines (user_id, product_id, quantity, color, size)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, product_id, color, size) DO UPDATE SET
    quantity = cart_lines.quantity + EXCLUDED.quantity
`
	_, err := r.pool.Exec(ctx, q, line.UserID, line.ProductID, line.Quantity, line.Color, line.Size)
	return err
}

func (r *postgresRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID)
	return err
}
