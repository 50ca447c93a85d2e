package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
	"github.com/pitskod/expense-tracker/internal/util"
)

// dummyPassword is hashed once and verified against when an email is unknown,
// so sign-in takes the same time whether or not the account exists.
const dummyPassword = "Dummy-Passw0rd"

type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, digest string) bool
	NeedsRehash(digest string) bool
}

type PasswordResetSender interface {
	SendPasswordReset(ctx context.Context, email, name, code, link string) error
}

type AuthService struct {
	store  ports.Store
	hasher PasswordHasher
	tokens *RefreshTokenService
	resets *ResetCodeService
	mailer PasswordResetSender
	logger Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(store ports.Store, hasher PasswordHasher, tokens *RefreshTokenService, resets *ResetCodeService, mailer PasswordResetSender, logger Logger) *AuthService {
	return &AuthService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		resets: resets,
		mailer: mailer,
		logger: logger,
	}
}

func (s *AuthService) SignUp(ctx context.Context, email, name, password string) (*TokenPair, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := util.ValidatePassword(password); err != nil {
		return nil, ErrPasswordTooWeak
	}

	users := s.store.Repositories().Users
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyUsed
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var pair *TokenPair
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		user, err := repos.Users.Create(ctx, email, name, digest)
		if err != nil {
			if isConflict(err) {
				return ErrEmailAlreadyUsed
			}
			return fmt.Errorf("create user: %w", err)
		}
		pair, err = s.tokens.issue(ctx, repos.RefreshTokens, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infof("user signed up: %s", email)
	return pair, nil
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	email = normalizeEmail(email)
	user, err := s.store.Repositories().Users.FindByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		s.hasher.Verify(ctx, password, s.dummyDigest(ctx))
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}
	return s.tokens.Create(ctx, user)
}

// upgradeHash stores a current-scheme digest for a user still on a legacy one.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	digest, err := s.hasher.Hash(ctx, password)
	if err == nil {
		err = s.store.Repositories().Users.UpdatePassword(ctx, user.ID, digest)
	}
	if err != nil {
		s.logger.Warnf("password rehash for %s failed: %v", user.Email, err)
		return
	}
	user.PasswordHash = digest
}

func (s *AuthService) dummyDigest(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(ctx, dummyPassword)
		if err != nil {
			s.logger.Warnf("dummy hash: %v", err)
			return
		}
		s.dummyHash = digest
	})
	return s.dummyHash
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}

// ForgotPassword mails a reset code when the account exists. An unknown
// email is not an error so callers cannot enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.store.Repositories().Users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.logger.Infof("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if s.mailer == nil {
		return fmt.Errorf("%w: mailer not configured", ErrEmailDelivery)
	}
	code, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue reset code: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, code, s.resets.ResetLink(code)); err != nil {
		s.logger.Errorf("send password reset to %s: %v", user.Email, err)
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	s.logger.Infof("password reset code sent to %s", user.Email)
	return nil
}

// RestorePassword sets a new password using a reset code and ends every
// existing session of the user. Expired codes are deleted even though the
// call fails.
func (s *AuthService) RestorePassword(ctx context.Context, code, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return ErrPasswordTooWeak
	}
	digest, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var (
		rejected error
		user     *domain.User
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		rc, err := s.resets.validate(ctx, repos.ResetCodes, code)
		if errors.Is(err, ErrResetCodeExpired) {
			rejected = err
			return nil
		}
		if err != nil {
			return err
		}

		user, err = repos.Users.FindByID(ctx, rc.UserID)
		if err != nil {
			if isNotFound(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if err := repos.Users.UpdatePassword(ctx, user.ID, digest); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := s.resets.consume(ctx, repos.ResetCodes, rc); err != nil {
			return err
		}
		if _, err := repos.RefreshTokens.DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rejected != nil {
		return rejected
	}
	s.logger.Infof("password restored for %s", user.Email)
	return nil
}

// Logout ends the session of token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	return s.tokens.RevokeOne(ctx, refreshToken)
}

// LogoutAll ends every session of the user owning token and returns how many
// were ended. An unknown token ends nothing.
func (s *AuthService) LogoutAll(ctx context.Context, refreshToken string) (int64, error) {
	rt, err := s.tokens.Owner(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return 0, nil
		}
		return 0, err
	}
	user, err := s.store.Repositories().Users.FindByID(ctx, rt.UserID)
	if err != nil {
		if isNotFound(err) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("load user: %w", err)
	}
	n, err := s.tokens.RevokeAll(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Infof("ended %d sessions for %s", n, user.Email)
	return n, nil
}

// Me loads the profile of the authenticated caller.
func (s *AuthService) Me(ctx context.Context, id Identity) (*domain.User, error) {
	if id.Email == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := s.store.Repositories().Users.FindByEmail(ctx, id.Email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
