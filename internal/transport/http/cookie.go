package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const refreshCookieName = "refresh_token"

type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
	Path   string
}

func (cc CookieConfig) path() string {
	if cc.Path == "" {
		return "/auth"
	}
	return cc.Path
}

func (cc CookieConfig) setRefresh(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     cc.path(),
		MaxAge:   int(cc.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (cc CookieConfig) clearRefresh(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     cc.path(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func readRefreshCookie(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	return value, value != ""
}
