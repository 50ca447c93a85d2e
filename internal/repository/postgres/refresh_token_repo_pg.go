package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
)

type RefreshTokenRepository struct {
	db sqlx.ExtContext
}

func NewRefreshTokenRepo(db sqlx.ExtContext) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (*domain.RefreshToken, error) {
	const query = `
        INSERT INTO refresh_tokens (token, user_id, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, token, user_id, expires_at, created_at
    `
	var rt domain.RefreshToken
	if err := r.db.QueryRowxContext(ctx, query, token, userID, expiresAt).StructScan(&rt); err != nil {
		return nil, wrapErr("create refresh token", err)
	}
	return &rt, nil
}

func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	const query = `
        SELECT id, token, user_id, expires_at, created_at
        FROM refresh_tokens
        WHERE token = $1
    `
	var rt domain.RefreshToken
	if err := sqlx.GetContext(ctx, r.db, &rt, query, token); err != nil {
		return nil, wrapErr("find refresh token", err)
	}
	return &rt, nil
}

func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	const query = `
        DELETE FROM refresh_tokens
        WHERE token = $1
        RETURNING id, token, user_id, expires_at, created_at
    `
	var rt domain.RefreshToken
	if err := r.db.QueryRowxContext(ctx, query, token).StructScan(&rt); err != nil {
		return nil, wrapErr("delete refresh token", err)
	}
	return &rt, nil
}

func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, wrapErr("delete user refresh tokens", err)
	}
	return res.RowsAffected()
}

// DeleteExpiredBatch locks up to limit expired rows, skipping rows other
// transactions hold, and deletes them.
func (r *RefreshTokenRepository) DeleteExpiredBatch(ctx context.Context, now time.Time, limit int) (int64, error) {
	const selectQuery = `
        SELECT id
        FROM refresh_tokens
        WHERE expires_at <= $1
        ORDER BY id
        LIMIT $2
        FOR UPDATE SKIP LOCKED
    `
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.db, &ids, selectQuery, now, limit); err != nil {
		return 0, wrapErr("select expired refresh tokens", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	const deleteQuery = `DELETE FROM refresh_tokens WHERE id = ANY($1)`
	res, err := r.db.ExecContext(ctx, deleteQuery, pq.Array(ids))
	if err != nil {
		return 0, wrapErr("delete expired refresh tokens", err)
	}
	return res.RowsAffected()
}

var _ ports.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
