package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/pitskod/expense-tracker/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, email, name, passwordHash string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// LockByID holds the user's row until the enclosing transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) error
}
