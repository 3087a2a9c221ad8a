package product

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

const productColumns = `
id::text, title, category, COALESCE(description, ''), price_cents, currency, stock,
images, colors, sizes, is_sale, discount_percent, sale_start, sale_end, created_at`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	var p domain.Product
	if err := scanProduct(r.pool.QueryRow(ctx, q, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		r.logger.Printf("product repo: get by ids error=%v", err)
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("product repo: get by ids rows error=%v", err)
		return nil, err
	}
	return result, nil
}

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(
		&p.ID,
		&p.Title,
		&p.Category,
		&p.Description,
		&p.PriceCents,
		&p.Currency,
		&p.Stock,
		&p.Images,
		&p.Colors,
		&p.Sizes,
		&p.OnSale,
		&p.DiscountPercent,
		&p.SaleStart,
		&p.SaleEnd,
		&p.CreatedAt,
	)
}
