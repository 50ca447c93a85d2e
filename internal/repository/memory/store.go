// Package memory is a process-local ports.Store for development and tests.
// Transactions are serialized and roll back by restoring a snapshot.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
)

type state struct {
	users       map[uuid.UUID]domain.User
	tokens      map[string]domain.RefreshToken
	codes       map[string]domain.ResetCode
	nextTokenID int64
	nextCodeID  int64
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[uuid.UUID]domain.User, len(s.users)),
		tokens:      make(map[string]domain.RefreshToken, len(s.tokens)),
		codes:       make(map[string]domain.ResetCode, len(s.codes)),
		nextTokenID: s.nextTokenID,
		nextCodeID:  s.nextCodeID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	return c
}

type Store struct {
	// txMu serializes transactions against each other and against
	// writes made outside of a transaction.
	txMu sync.Mutex
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		data: &state{
			users:  make(map[uuid.UUID]domain.User),
			tokens: make(map[string]domain.RefreshToken),
			codes:  make(map[string]domain.ResetCode),
		},
		now: time.Now,
	}
}

// WithClock sets the clock used for created_at and updated_at columns.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Repositories() ports.Repositories {
	return s.repositories(false)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, s.repositories(true))
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

func (s *Store) repositories(inTx bool) ports.Repositories {
	return ports.Repositories{
		Users:         &userRepo{store: s, inTx: inTx},
		RefreshTokens: &refreshTokenRepo{store: s, inTx: inTx},
		ResetCodes:    &resetCodeRepo{store: s, inTx: inTx},
	}
}

// read runs fn under the data lock.
func (s *Store) read(fn func(d *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// write runs fn under the data lock, and under the transaction lock when
// called outside of a transaction.
func (s *Store) write(inTx bool, fn func(d *state)) {
	if !inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.read(fn)
}

var _ ports.Store = (*Store)(nil)
