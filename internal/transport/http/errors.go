package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pitskod/expense-tracker/internal/service"
	"github.com/pitskod/expense-tracker/internal/util"
)

const msgInternal = "internal server error"

var errorMessages = []struct {
	err error
	msg string
}{
	{service.ErrInvalidCredentials, "invalid email or password"},
	{service.ErrInvalidRefreshToken, "invalid or expired refresh token"},
	{service.ErrRefreshTokenExpired, "invalid or expired refresh token"},
	{service.ErrNotAuthenticated, msgNotAuthenticated},
	{service.ErrEmailAlreadyUsed, "email already registered"},
	{service.ErrPasswordTooWeak, service.ErrPasswordTooWeak.Error()},
	{service.ErrInvalidResetCode, "invalid reset code"},
	{service.ErrResetCodeExpired, "reset code expired"},
	{service.ErrUserNotFound, "user not found"},
	{service.ErrEmailDelivery, "unable to process the request, try again later"},
}

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindConflict, service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the status and stable message for err. Unexpected
// errors are logged and reported without detail.
func respondError(c echo.Context, err error) error {
	kind := service.Classify(err)
	status := statusFor(kind)

	for _, known := range errorMessages {
		if errors.Is(err, known.err) {
			if kind == service.KindDependency {
				c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
			}
			return c.JSON(status, util.Error(known.msg))
		}
	}

	c.Logger().Errorf("%s %s: %s: %v", c.Request().Method, c.Request().URL.Path, kind, err)
	return c.JSON(http.StatusInternalServerError, util.Error(msgInternal))
}
