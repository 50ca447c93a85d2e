package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pitskod/expense-tracker/internal/repository/ports"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repositories() ports.Repositories {
	return repositories(s.db)
}

// WithinTx commits when fn succeeds and rolls back on error or panic.
// Panics are re-raised after the rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
		}
	}()

	return fn(ctx, repositories(tx))
}

func repositories(db sqlx.ExtContext) ports.Repositories {
	return ports.Repositories{
		Users:         NewUserRepo(db),
		RefreshTokens: NewRefreshTokenRepo(db),
		ResetCodes:    NewResetCodeRepo(db),
	}
}

var _ ports.Store = (*Store)(nil)
