package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pitskod/expense-tracker/internal/service"
	"github.com/pitskod/expense-tracker/internal/util"
)

const (
	msgNotAuthenticated = "not authenticated"
	msgInvalidToken     = "invalid or expired token"
)

type TokenVerifier interface {
	Parse(token string) (*util.Claims, error)
}

type GatewayConfig struct {
	// ProtectedPrefixes require a bearer token.
	ProtectedPrefixes []string
	// ExcludedPrefixes are never checked, even below a protected prefix.
	ExcludedPrefixes []string
}

// AuthGateway guards every protected path. A verified caller's identity is
// attached to the request context; everything else passes through untouched.
func AuthGateway(verifier TokenVerifier, cfg GatewayConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if matchesAny(path, cfg.ExcludedPrefixes) || !matchesAny(path, cfg.ProtectedPrefixes) {
				return next(c)
			}

			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Logger().Warnf("auth gateway: no bearer token from %s for %s", c.RealIP(), path)
				return c.JSON(http.StatusUnauthorized, util.Error(msgNotAuthenticated))
			}
			claims, err := verifier.Parse(token)
			if err != nil {
				c.Logger().Warnf("auth gateway: rejected token from %s for %s", c.RealIP(), path)
				return c.JSON(http.StatusUnauthorized, util.Error(msgInvalidToken))
			}

			ctx := service.ContextWithIdentity(c.Request().Context(), service.Identity{Email: claims.Email()})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// CurrentIdentity returns the caller established by AuthGateway.
func CurrentIdentity(c echo.Context) (service.Identity, bool) {
	return service.IdentityFromContext(c.Request().Context())
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// matchesAny matches whole path segments: "/users" covers "/users/me" but
// not "/usersettings".
func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
