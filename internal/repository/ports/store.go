package ports

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Repositories is a set of repositories bound to the same connection or transaction.
type Repositories struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	ResetCodes    ResetCodeRepository
}

type Store interface {
	// Repositories returns repositories running outside of any transaction.
	Repositories() Repositories
	// WithinTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
