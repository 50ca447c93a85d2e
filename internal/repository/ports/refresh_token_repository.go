package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pitskod/expense-tracker/internal/domain"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (*domain.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	// DeleteByToken removes the row and returns it. Of two concurrent callers
	// with the same token only one receives the row; the other gets ErrNotFound.
	DeleteByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// DeleteExpiredBatch removes at most limit rows expired at now.
	DeleteExpiredBatch(ctx context.Context, now time.Time, limit int) (int64, error)
}
