package domain

import (
	"time"

	"github.com/google/uuid"
)

type ResetCode struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"-"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Used      bool      `db:"used" json:"used"`
}

func (c *ResetCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
