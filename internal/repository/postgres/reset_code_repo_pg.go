package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
)

type ResetCodeRepository struct {
	db sqlx.ExtContext
}

func NewResetCodeRepo(db sqlx.ExtContext) *ResetCodeRepository {
	return &ResetCodeRepository{db: db}
}

// Create skips the insert on a code collision instead of failing, so the
// enclosing transaction stays usable for a retry.
func (r *ResetCodeRepository) Create(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) (*domain.ResetCode, error) {
	const query = `
        INSERT INTO reset_codes (code, user_id, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (code) DO NOTHING
        RETURNING id, code, user_id, expires_at, created_at, used
    `
	var rc domain.ResetCode
	err := r.db.QueryRowxContext(ctx, query, code, userID, expiresAt).StructScan(&rc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("create reset code: %w", ports.ErrConflict)
	}
	if err != nil {
		return nil, wrapErr("create reset code", err)
	}
	return &rc, nil
}

func (r *ResetCodeRepository) FindByCode(ctx context.Context, code string) (*domain.ResetCode, error) {
	const query = `
        SELECT id, code, user_id, expires_at, created_at, used
        FROM reset_codes
        WHERE code = $1
        FOR UPDATE
    `
	var rc domain.ResetCode
	if err := sqlx.GetContext(ctx, r.db, &rc, query, code); err != nil {
		return nil, wrapErr("find reset code", err)
	}
	return &rc, nil
}

func (r *ResetCodeRepository) MarkUsed(ctx context.Context, id int64) error {
	const query = `UPDATE reset_codes SET used = TRUE WHERE id = $1 AND used = FALSE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return wrapErr("mark reset code used", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapErr("mark reset code used", sql.ErrNoRows)
	}
	return nil
}

func (r *ResetCodeRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM reset_codes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return wrapErr("delete reset code", err)
	}
	return nil
}

func (r *ResetCodeRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `DELETE FROM reset_codes WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, wrapErr("delete user reset codes", err)
	}
	return res.RowsAffected()
}

func (r *ResetCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM reset_codes WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, wrapErr("delete expired reset codes", err)
	}
	return res.RowsAffected()
}

var _ ports.ResetCodeRepository = (*ResetCodeRepository)(nil)
