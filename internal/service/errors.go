package service

import (
	"context"
	"errors"

	"github.com/pitskod/expense-tracker/internal/repository/ports"
	"github.com/pitskod/expense-tracker/internal/util"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailAlreadyUsed    = errors.New("email already registered")
	ErrPasswordTooWeak     = util.ErrPasswordPolicy
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrInvalidResetCode    = errors.New("invalid reset code")
	ErrResetCodeExpired    = errors.New("reset code expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailDelivery       = errors.New("failed to send email")
	ErrNotAuthenticated    = errors.New("not authenticated")
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindConflict
	KindValidation
	KindNotFound
	KindDependency
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Classify maps an error returned by this package onto the kind of failure
// callers report. Unknown errors are KindInternal.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrRefreshTokenExpired),
		errors.Is(err, ErrNotAuthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrEmailAlreadyUsed):
		return KindConflict
	case errors.Is(err, ErrPasswordTooWeak),
		errors.Is(err, ErrInvalidResetCode),
		errors.Is(err, ErrResetCodeExpired):
		return KindValidation
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmailDelivery),
		errors.Is(err, context.DeadlineExceeded):
		return KindDependency
	default:
		return KindInternal
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, ports.ErrConflict)
}
