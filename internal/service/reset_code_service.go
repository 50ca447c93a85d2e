package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
	"github.com/pitskod/expense-tracker/internal/util"
)

const (
	restorePasswordPath = "/auth/restore-password"
	maxCodeAttempts     = 3
)

type ResetCodeService struct {
	store       ports.Store
	ttl         time.Duration
	length      int
	frontendURL string
	now         func() time.Time
	generate    func(digits int) (string, error)
}

func NewResetCodeService(store ports.Store, ttl time.Duration, length int, frontendURL string) *ResetCodeService {
	return &ResetCodeService{
		store:       store,
		ttl:         ttl,
		length:      length,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
		generate:    util.GenerateNumericOTP,
	}
}

func (s *ResetCodeService) WithClock(now func() time.Time) *ResetCodeService {
	s.now = now
	return s
}

func (s *ResetCodeService) TTL() time.Duration {
	return s.ttl
}

// Issue replaces every code the user holds with a fresh one. Concurrent
// calls for the same user queue on the user's row lock.
func (s *ResetCodeService) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	var code string
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Users.LockByID(ctx, userID); err != nil {
			if isNotFound(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		if _, err := repos.ResetCodes.DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("delete previous reset codes: %w", err)
		}
		expiresAt := s.now().Add(s.ttl).UTC()
		for attempt := 1; ; attempt++ {
			candidate, err := s.generate(s.length)
			if err != nil {
				return fmt.Errorf("generate reset code: %w", err)
			}
			_, err = repos.ResetCodes.Create(ctx, userID, candidate, expiresAt)
			if err == nil {
				code = candidate
				return nil
			}
			if !isConflict(err) || attempt == maxCodeAttempts {
				return fmt.Errorf("store reset code: %w", err)
			}
		}
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Validate checks a code without consuming it. Expired codes are deleted.
func (s *ResetCodeService) Validate(ctx context.Context, code string) (*domain.ResetCode, error) {
	return s.validate(ctx, s.store.Repositories().ResetCodes, code)
}

func (s *ResetCodeService) validate(ctx context.Context, repo ports.ResetCodeRepository, code string) (*domain.ResetCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidResetCode
	}
	rc, err := repo.FindByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidResetCode
		}
		return nil, fmt.Errorf("find reset code: %w", err)
	}
	if rc.Used {
		return nil, ErrInvalidResetCode
	}
	if rc.Expired(s.now()) {
		if err := repo.Delete(ctx, rc.ID); err != nil {
			return nil, fmt.Errorf("delete expired reset code: %w", err)
		}
		return nil, ErrResetCodeExpired
	}
	return rc, nil
}

// Consume marks the code used and removes it.
func (s *ResetCodeService) Consume(ctx context.Context, rc *domain.ResetCode) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		return s.consume(ctx, repos.ResetCodes, rc)
	})
}

func (s *ResetCodeService) consume(ctx context.Context, repo ports.ResetCodeRepository, rc *domain.ResetCode) error {
	if err := repo.MarkUsed(ctx, rc.ID); err != nil {
		if isNotFound(err) {
			return ErrInvalidResetCode
		}
		return fmt.Errorf("mark reset code used: %w", err)
	}
	if err := repo.Delete(ctx, rc.ID); err != nil {
		return fmt.Errorf("delete used reset code: %w", err)
	}
	return nil
}

func (s *ResetCodeService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.Repositories().ResetCodes.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep reset codes: %w", err)
	}
	return n, nil
}

// ResetLink is the frontend page a user opens to enter a new password.
func (s *ResetCodeService) ResetLink(code string) string {
	return s.frontendURL + restorePasswordPath + "?code=" + url.QueryEscape(code)
}
