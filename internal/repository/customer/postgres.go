package customer

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

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Customer, error) {
	const q = `
INSERT INTO customers (email, name, password_hash, role)
VALUES ($1, NULLIF($2, ''), $3, $4)
RETURNING id::text, created_at
`
	c := domain.Customer{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
	}
	err := r.pool.QueryRow(ctx, q, in.Email, in.Name, in.PasswordHash, string(in.Role)).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Printf("customer repo: create email=%s error=%v", in.Email, err)
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.fetchOne(ctx, `
SELECT id::text, email, COALESCE(name, ''), password_hash, role, created_at
FROM customers WHERE email = $1
`, email)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.fetchOne(ctx, `
SELECT id::text, email, COALESCE(name, ''), password_hash, role, created_at
FROM customers WHERE id = $1
`, id)
}

func (r *postgresRepo) fetchOne(ctx context.Context, q string, arg string) (*domain.Customer, error) {
	var c domain.Customer
	var role string
	err := r.pool.QueryRow(ctx, q, arg).Scan(&c.ID, &c.Email, &c.Name, &c.PasswordHash, &role, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c.Role = domain.Role(role)
	return &c, nil
}
