package cart

import (
	"context"

	"heavenly-backend/internal/domain"
)

type Repository interface {
	// ListByUser returns the user's cart lines, oldest first.
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	// AddLine inserts a line or bumps the quantity of an existing line with
	// the same product/color/size combination.
	AddLine(ctx context.Context, line domain.CartLine) error
	// Clear removes every line from the user's cart.
	Clear(ctx context.Context, userID string) error
}
