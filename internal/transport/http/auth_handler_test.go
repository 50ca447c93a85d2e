package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSignUpIssuesTokens(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/auth/sign-up", `{"email":"a@x.com","name":"A","password":"Passw0rd"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeAccessToken(t, rec)
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("unexpected token response %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "refresh") {
		t.Fatalf("refresh token must not appear in the body: %s", rec.Body.String())
	}

	cookie := refreshCookie(t, rec)
	if cookie.Value == "" || !cookie.HttpOnly || !cookie.Secure {
		t.Fatalf("unexpected refresh cookie %+v", cookie)
	}
	if cookie.Path != "/auth" || cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookie scope path=%q samesite=%v", cookie.Path, cookie.SameSite)
	}
	if cookie.MaxAge != 30*24*60*60 {
		t.Fatalf("expected 30 day cookie, got max-age %d", cookie.MaxAge)
	}

	again := srv.do(http.MethodPost, "/auth/sign-up", `{"email":"a@x.com","name":"B","password":"Passw0rd"}`)
	if again.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", again.Code)
	}
	if msg := errorMessage(t, again); msg != "email already registered" {
		t.Fatalf("unexpected duplicate message %q", msg)
	}
}

func TestSignUpRejectsInvalidInput(t *testing.T) {
	srv := newTestServer(t)

	cases := map[string]struct {
		body string
		want string
	}{
		"missing email":   {`{"name":"A","password":"Passw0rd"}`, "email is required"},
		"malformed email": {`{"email":"nope","name":"A","password":"Passw0rd"}`, "email must be a valid email address"},
		"weak password":   {`{"email":"a@x.com","name":"A","password":"password"}`, "password must be 8-12 characters"},
		"long password":   {`{"email":"a@x.com","name":"A","password":"Passw0rdPassw0rd"}`, "password must be 8-12 characters"},
		"broken json":     {`{"email":`, "invalid request body"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/auth/sign-up", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if msg := errorMessage(t, rec); !strings.Contains(msg, tc.want) {
				t.Fatalf("expected message containing %q, got %q", tc.want, msg)
			}
		})
	}
}

func TestSignInFailuresLookTheSame(t *testing.T) {
	srv := newTestServer(t)
	srv.signUp(t, "a@x.com")

	wrong := srv.do(http.MethodPost, "/auth/sign-in", `{"email":"a@x.com","password":"Wr0ngPass"}`)
	unknown := srv.do(http.MethodPost, "/auth/sign-in", `{"email":"b@x.com","password":"Passw0rd"}`)

	for _, rec := range []*httptest.ResponseRecorder{wrong, unknown} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
	if len(wrong.Result().Cookies()) != 0 {
		t.Fatalf("failed sign-in must not set cookies")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	srv := newTestServer(t)
	_, original := srv.signUp(t, "a@x.com")

	rec := srv.do(http.MethodPost, "/auth/token", "", withRefreshCookie(original))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rotated := refreshCookie(t, rec).Value
	if rotated == "" || rotated == original {
		t.Fatalf("expected a new refresh token, got %q", rotated)
	}
	if decodeAccessToken(t, rec).AccessToken == "" {
		t.Fatalf("expected an access token")
	}

	replay := srv.do(http.MethodPost, "/auth/token", "", withRefreshCookie(original))
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replay, got %d", replay.Code)
	}
	if cleared := refreshCookie(t, replay); cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("expected the cookie to be cleared, got %+v", cleared)
	}

	if next := srv.do(http.MethodPost, "/auth/token", "", withRefreshCookie(rotated)); next.Code != http.StatusOK {
		t.Fatalf("rotated token should still work, got %d", next.Code)
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/auth/token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "refresh token missing" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	srv := newTestServer(t)
	srv.signUp(t, "a@x.com")

	known := srv.do(http.MethodPost, "/auth/forgot-password", `{"email":"a@x.com"}`)
	unknown := srv.do(http.MethodPost, "/auth/forgot-password", `{"email":"ghost@x.com"}`)

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("expected 200 for both, got %d and %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", known.Body.String(), unknown.Body.String())
	}
	if srv.mailer.sent() != 1 {
		t.Fatalf("expected exactly one email, got %d", srv.mailer.sent())
	}
	if code := srv.mailer.lastCode(t, "a@x.com"); len(code) != 6 {
		t.Fatalf("expected a 6 digit code, got %q", code)
	}
}

func TestRestorePasswordFlow(t *testing.T) {
	srv := newTestServer(t)
	_, session := srv.signUp(t, "a@x.com")

	if rec := srv.do(http.MethodPost, "/auth/forgot-password", `{"email":"a@x.com"}`); rec.Code != http.StatusOK {
		t.Fatalf("forgot-password: expected 200, got %d", rec.Code)
	}
	code := srv.mailer.lastCode(t, "a@x.com")

	weak := srv.do(http.MethodPost, "/auth/restore-password", `{"code":"`+code+`","new_password":"weak"}`)
	if weak.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", weak.Code)
	}

	rec := srv.do(http.MethodPost, "/auth/restore-password", `{"code":"`+code+`","new_password":"NewPassw0rd"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	srv.signIn(t, "a@x.com", "NewPassw0rd")
	if old := srv.do(http.MethodPost, "/auth/sign-in", `{"email":"a@x.com","password":"Passw0rd"}`); old.Code != http.StatusUnauthorized {
		t.Fatalf("old password should be rejected, got %d", old.Code)
	}
	if stale := srv.do(http.MethodPost, "/auth/token", "", withRefreshCookie(session)); stale.Code != http.StatusUnauthorized {
		t.Fatalf("sessions from before the reset should be ended, got %d", stale.Code)
	}

	reused := srv.do(http.MethodPost, "/auth/restore-password", `{"code":"`+code+`","new_password":"Another1a"}`)
	if reused.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a used code, got %d", reused.Code)
	}
	if msg := errorMessage(t, reused); msg != "invalid reset code" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRestorePasswordRejectsNonNumericCode(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/auth/restore-password", `{"code":"abc","new_password":"NewPassw0rd"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "code must contain only digits" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	_, session := srv.signUp(t, "a@x.com")

	rec := srv.do(http.MethodGet, "/auth/logout", "", withRefreshCookie(session))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cleared := refreshCookie(t, rec); cleared.MaxAge >= 0 {
		t.Fatalf("expected the cookie to be cleared, got %+v", cleared)
	}
	if after := srv.do(http.MethodPost, "/auth/token", "", withRefreshCookie(session)); after.Code != http.StatusUnauthorized {
		t.Fatalf("logged out token should be rejected, got %d", after.Code)
	}

	if again := srv.do(http.MethodGet, "/auth/logout", "", withRefreshCookie(session)); again.Code != http.StatusOK {
		t.Fatalf("logging out an unknown token should succeed, got %d", again.Code)
	}

	missing := srv.do(http.MethodGet, "/auth/logout", "")
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a cookie, got %d", missing.Code)
	}
}

func TestLogoutAllEndsEverySession(t *testing.T) {
	srv := newTestServer(t)
	_, first := srv.signUp(t, "a@x.com")
	_, second := srv.signIn(t, "a@x.com", testPassword)
	_, other := srv.signUp(t, "b@x.com")

	rec := srv.do(http.MethodGet, "/auth/logoutAll", "", withRefreshCookie(second))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp LogoutAllResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionsEnded != 2 {
		t.Fatalf("expected 2 sessions ended, got %d", resp.SessionsEnded)
	}

	if after := srv.do(http.MethodPost, "/auth/token", "", withRefreshCookie(first)); after.Code != http.StatusUnauthorized {
		t.Fatalf("first session should be ended, got %d", after.Code)
	}
	if kept := srv.do(http.MethodPost, "/auth/token", "", withRefreshCookie(other)); kept.Code != http.StatusOK {
		t.Fatalf("other users keep their sessions, got %d", kept.Code)
	}

	unknown := srv.do(http.MethodGet, "/auth/logoutAll", "", withRefreshCookie("not-a-token"))
	if unknown.Code != http.StatusOK {
		t.Fatalf("expected 200 for an unknown token, got %d", unknown.Code)
	}
}
