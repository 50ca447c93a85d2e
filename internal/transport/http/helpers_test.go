package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/pitskod/expense-tracker/internal/repository/memory"
	"github.com/pitskod/expense-tracker/internal/service"
	"github.com/pitskod/expense-tracker/internal/util"
)

const testPassword = "Passw0rd"

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string][]string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, _, code, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string][]string)
	}
	m.codes[email] = append(m.codes[email], code)
	return nil
}

func (m *recordingMailer) lastCode(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.codes[email]
	if len(codes) == 0 {
		t.Fatalf("no reset code mailed to %s", email)
	}
	return codes[len(codes)-1]
}

func (m *recordingMailer) sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, codes := range m.codes {
		n += len(codes)
	}
	return n
}

type testServer struct {
	e      *echo.Echo
	store  *memory.Store
	jwt    *util.JWTManager
	mailer *recordingMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := log.New("test")
	logger.SetOutput(io.Discard)

	store := memory.NewStore()
	jwt := util.NewJWTManager("test-secret", time.Hour)
	hasher := util.NewPasswordHasher(4, &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	tokens := service.NewRefreshTokenService(store, jwt, 30*24*time.Hour)
	resets := service.NewResetCodeService(store, 10*time.Minute, 6, "http://frontend.test")
	mailer := &recordingMailer{}
	auth := service.NewAuthService(store, hasher, tokens, resets, mailer, logger)

	e := NewRouter(RouterConfig{AllowOrigins: []string{"http://frontend.test"}, Logger: logger})
	e.Use(AuthGateway(jwt, GatewayConfig{
		ProtectedPrefixes: []string{"/users", "/expenses"},
		ExcludedPrefixes:  []string{"/auth", "/swagger", "/health"},
	}))
	RegisterAuth(e, auth, CookieConfig{Secure: true, MaxAge: 30 * 24 * time.Hour}, RateLimit(0, false))
	RegisterUsers(e, auth)

	return &testServer{e: e, store: store, jwt: jwt, mailer: mailer}
}

type requestOption func(*http.Request)

func withRefreshCookie(token string) requestOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: token})
	}
}

func withBearer(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
}

func (s *testServer) do(method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// signUp registers email and returns the access token and refresh cookie value.
func (s *testServer) signUp(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := s.do(http.MethodPost, "/auth/sign-up", `{"email":"`+email+`","name":"Test","password":"`+testPassword+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign-up %s: expected 201, got %d: %s", email, rec.Code, rec.Body.String())
	}
	return decodeAccessToken(t, rec).AccessToken, refreshCookie(t, rec).Value
}

func (s *testServer) signIn(t *testing.T, email, password string) (string, string) {
	t.Helper()
	rec := s.do(http.MethodPost, "/auth/sign-in", `{"email":"`+email+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-in %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	return decodeAccessToken(t, rec).AccessToken, refreshCookie(t, rec).Value
}

func decodeAccessToken(t *testing.T, rec *httptest.ResponseRecorder) AccessTokenResponse {
	t.Helper()
	var resp AccessTokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return resp
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", refreshCookieName)
	return nil
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	msg, _ := body["error"].(string)
	return msg
}
