package http

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/labstack/echo/v4"

	"github.com/pitskod/expense-tracker/internal/util"
)

// RateLimit limits requests per client IP. A non-positive rate disables it.
// Clients are keyed by the connection's address unless trustProxyHeaders is
// set, in which case X-Forwarded-For and X-Real-IP win. Only set it behind a
// proxy that overwrites those headers.
func RateLimit(perSecond float64, trustProxyHeaders bool) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	lookups := []string{"RemoteAddr"}
	if trustProxyHeaders {
		lookups = []string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"}
	}
	lmt := tollbooth.NewLimiter(perSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookups(lookups)
	lmt.SetBurst(int(perSecond) + 1)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if httpErr := tollbooth.LimitByRequest(lmt, c.Response(), c.Request()); httpErr != nil {
				client := c.Request().RemoteAddr
				if trustProxyHeaders {
					client = c.RealIP()
				}
				c.Logger().Warnf("rate limit: %s %s from %s", c.Request().Method, c.Request().URL.Path, client)
				return c.JSON(http.StatusTooManyRequests, util.Error("too many requests"))
			}
			return next(c)
		}
	}
}
