package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is one live session. The row is deleted when the session ends.
type RefreshToken struct {
	ID        int64     `db:"id" json:"id"`
	Token     string    `db:"token" json:"-"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the token is no longer usable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
