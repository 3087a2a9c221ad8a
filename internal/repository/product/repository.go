package product

import (
	"context"

	"heavenly-backend/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// GetByIDs returns the products matching ids, keyed by id. Absent ids
	// are simply missing from the map; the caller decides whether that is
	// an error.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}
