package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pitskod/expense-tracker/internal/service"
	"github.com/pitskod/expense-tracker/internal/util"
)

const (
	forgotPasswordMessage = "if the email is registered, a reset code has been sent"
	restoredMessage       = "password updated"
	loggedOutMessage      = "logged out"
	loggedOutAllMessage   = "logged out from all sessions"
)

type AuthHandler struct {
	auth    *service.AuthService
	cookies CookieConfig
}

func RegisterAuth(e *echo.Echo, auth *service.AuthService, cookies CookieConfig, rateLimit echo.MiddlewareFunc) {
	handler := &AuthHandler{auth: auth, cookies: cookies}

	g := e.Group("/auth", rateLimit)
	g.POST("/sign-up", handler.signUp)
	g.POST("/sign-in", handler.signIn)
	g.POST("/token", handler.refresh)
	g.POST("/forgot-password", handler.forgotPassword)
	g.POST("/restore-password", handler.restorePassword)
	g.GET("/logout", handler.logout)
	g.GET("/logoutAll", handler.logoutAll)
}

// bindAndValidate decodes the JSON body into req and validates it. On
// failure it returns the message for the 400 response.
func bindAndValidate(c echo.Context, req interface{}) (string, bool) {
	if err := c.Bind(req); err != nil {
		return "invalid request body", false
	}
	if err := c.Validate(req); err != nil {
		return err.Error(), false
	}
	return "", true
}

func (h *AuthHandler) signUp(c echo.Context) error {
	var req SignUpRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, util.Error(msg))
	}

	pair, err := h.auth.SignUp(c.Request().Context(), req.Email, req.Name, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return h.respondTokens(c, http.StatusCreated, pair)
}

func (h *AuthHandler) signIn(c echo.Context) error {
	var req SignInRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, util.Error(msg))
	}

	pair, err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return h.respondTokens(c, http.StatusOK, pair)
}

func (h *AuthHandler) refresh(c echo.Context) error {
	token, ok := readRefreshCookie(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("refresh token missing"))
	}

	pair, err := h.auth.Refresh(c.Request().Context(), token)
	if err != nil {
		if service.Classify(err) == service.KindUnauthenticated {
			h.cookies.clearRefresh(c)
		}
		return respondError(c, err)
	}
	return h.respondTokens(c, http.StatusOK, pair)
}

func (h *AuthHandler) forgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, util.Error(msg))
	}

	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, util.Message(forgotPasswordMessage))
}

func (h *AuthHandler) restorePassword(c echo.Context) error {
	var req RestorePasswordRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return c.JSON(http.StatusBadRequest, util.Error(msg))
	}

	if err := h.auth.RestorePassword(c.Request().Context(), req.Code, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, util.Message(restoredMessage))
}

func (h *AuthHandler) logout(c echo.Context) error {
	token, ok := readRefreshCookie(c)
	h.cookies.clearRefresh(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, util.Error("refresh token missing"))
	}

	if _, err := h.auth.Logout(c.Request().Context(), token); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, util.Message(loggedOutMessage))
}

func (h *AuthHandler) logoutAll(c echo.Context) error {
	token, ok := readRefreshCookie(c)
	h.cookies.clearRefresh(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, util.Error("refresh token missing"))
	}

	n, err := h.auth.LogoutAll(c.Request().Context(), token)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, LogoutAllResponse{Message: loggedOutAllMessage, SessionsEnded: n})
}

func (h *AuthHandler) respondTokens(c echo.Context, status int, pair *service.TokenPair) error {
	h.cookies.setRefresh(c, pair.RefreshToken)
	return c.JSON(status, AccessTokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   pair.AccessExpiresAt.UTC(),
	})
}
