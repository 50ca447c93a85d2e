package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pitskod/expense-tracker/internal/domain"
)

type ResetCodeRepository interface {
	// Create returns ErrConflict when the code value is already taken.
	Create(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) (*domain.ResetCode, error)
	// FindByCode locks the row for the rest of the enclosing transaction.
	FindByCode(ctx context.Context, code string) (*domain.ResetCode, error)
	MarkUsed(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
