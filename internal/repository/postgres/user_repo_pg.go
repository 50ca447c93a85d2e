package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
)

type UserRepository struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, email, name, passwordHash string) (*domain.User, error) {
	const query = `
        INSERT INTO users (email, name, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, email, name, password_hash, created_at, updated_at
    `
	var user domain.User
	if err := r.db.QueryRowxContext(ctx, query, email, name, passwordHash).StructScan(&user); err != nil {
		return nil, wrapErr("create user", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, created_at, updated_at
        FROM users
        WHERE email = $1
    `
	var user domain.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, email); err != nil {
		return nil, wrapErr("find user by email", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const query = `
        SELECT id, email, name, password_hash, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	var user domain.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, id); err != nil {
		return nil, wrapErr("find user by id", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const query = `
        UPDATE users
        SET password_hash = $2,
            updated_at = NOW()
        WHERE id = $1
    `
	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return wrapErr("update password", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrapErr("update password", sql.ErrNoRows)
	}
	return nil
}

func (r *UserRepository) LockByID(ctx context.Context, id uuid.UUID) error {
	const query = `
        SELECT id
        FROM users
        WHERE id = $1
        FOR UPDATE
    `
	var locked uuid.UUID
	if err := sqlx.GetContext(ctx, r.db, &locked, query, id); err != nil {
		return wrapErr("lock user", err)
	}
	return nil
}

var _ ports.UserRepository = (*UserRepository)(nil)
