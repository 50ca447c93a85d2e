package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pitskod/expense-tracker/internal/service"
	"github.com/pitskod/expense-tracker/internal/util"
)

type UserHandler struct {
	auth *service.AuthService
}

// RegisterUsers mounts /users. The routes rely on AuthGateway for the bearer
// check and still refuse requests that arrive without an identity.
func RegisterUsers(e *echo.Echo, auth *service.AuthService) {
	handler := &UserHandler{auth: auth}
	g := e.Group("/users")
	g.GET("/me", handler.me)
}

func (h *UserHandler) me(c echo.Context) error {
	id, ok := CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error(msgNotAuthenticated))
	}

	user, err := h.auth.Me(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.UTC(),
	})
}
