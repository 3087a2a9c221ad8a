package customer

import (
	"context"

	"heavenly-backend/internal/domain"
)

type CreateInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         domain.Role
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}
