package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
	"github.com/pitskod/expense-tracker/internal/util"
)

// AccessTokenIssuer mints short-lived access tokens for a user's email.
type AccessTokenIssuer interface {
	Generate(email string) (string, time.Time, error)
}

// TokenPair is what a successful sign-up, sign-in or refresh hands back.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type RefreshTokenService struct {
	store    ports.Store
	access   AccessTokenIssuer
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

func NewRefreshTokenService(store ports.Store, access AccessTokenIssuer, ttl time.Duration) *RefreshTokenService {
	return &RefreshTokenService{
		store:    store,
		access:   access,
		ttl:      ttl,
		now:      time.Now,
		newToken: util.GenerateRefreshToken,
	}
}

func (s *RefreshTokenService) WithClock(now func() time.Time) *RefreshTokenService {
	s.now = now
	return s
}

func (s *RefreshTokenService) TTL() time.Duration {
	return s.ttl
}

// Create starts a new session for user and returns its token pair.
func (s *RefreshTokenService) Create(ctx context.Context, user *domain.User) (*TokenPair, error) {
	return s.issue(ctx, s.store.Repositories().RefreshTokens, user)
}

func (s *RefreshTokenService) issue(ctx context.Context, repo ports.RefreshTokenRepository, user *domain.User) (*TokenPair, error) {
	value, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	rt, err := repo.Create(ctx, user.ID, value, s.now().Add(s.ttl).UTC())
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	access, accessExp, err := s.access.Generate(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rt.Token,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

// Rotate exchanges a live refresh token for a new pair. The old token is
// deleted whether or not it was still valid; a token can be rotated once.
func (s *RefreshTokenService) Rotate(ctx context.Context, oldToken string) (*TokenPair, error) {
	if strings.TrimSpace(oldToken) == "" {
		return nil, ErrInvalidRefreshToken
	}

	var (
		pair     *TokenPair
		rejected error
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		old, err := repos.RefreshTokens.DeleteByToken(ctx, oldToken)
		if err != nil {
			if isNotFound(err) {
				return ErrInvalidRefreshToken
			}
			return fmt.Errorf("claim refresh token: %w", err)
		}
		if old.Expired(s.now()) {
			// commit the delete, then fail
			rejected = ErrRefreshTokenExpired
			return nil
		}

		user, err := repos.Users.FindByID(ctx, old.UserID)
		if err != nil {
			if isNotFound(err) {
				return ErrInvalidRefreshToken
			}
			return fmt.Errorf("load token owner: %w", err)
		}

		pair, err = s.issue(ctx, repos.RefreshTokens, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return nil, rejected
	}
	return pair, nil
}

// RevokeOne deletes a single session and reports whether it existed.
func (s *RefreshTokenService) RevokeOne(ctx context.Context, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	if _, err := s.store.Repositories().RefreshTokens.DeleteByToken(ctx, token); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return true, nil
}

func (s *RefreshTokenService) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.store.Repositories().RefreshTokens.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return n, nil
}

// Owner returns the stored session for token, expired or not.
func (s *RefreshTokenService) Owner(ctx context.Context, token string) (*domain.RefreshToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidRefreshToken
	}
	rt, err := s.store.Repositories().RefreshTokens.FindByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return rt, nil
}

// SweepExpired deletes expired sessions in batches, one transaction per batch.
func (s *RefreshTokenService) SweepExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be positive")
	}
	now := s.now()
	var total int64
	for {
		var n int64
		err := s.store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
			var err error
			n, err = repos.RefreshTokens.DeleteExpiredBatch(ctx, now, batchSize)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("sweep refresh tokens: %w", err)
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}
