package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/memory"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
	"github.com/pitskod/expense-tracker/internal/util"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentReset struct {
	email, name, code, link string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, name, code, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentReset{email: email, name: name, code: code, link: link})
	return nil
}

func (m *fakeMailer) last(t *testing.T) sentReset {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("expected a password reset email")
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	store  *memory.Store
	clock  *testClock
	hasher *util.PasswordHasher
	tokens *RefreshTokenService
	resets *ResetCodeService
	mailer *fakeMailer
	logger *log.Logger
	auth   *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newTestClock()
	store := memory.NewStore().WithClock(clock.Now)
	jwt := util.NewJWTManager("test-secret", time.Hour).WithClock(clock.Now)
	hasher := util.NewPasswordHasher(4, &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	logger := log.New("test")
	logger.SetOutput(io.Discard)

	env := &testEnv{
		store:  store,
		clock:  clock,
		hasher: hasher,
		tokens: NewRefreshTokenService(store, jwt, 30*24*time.Hour).WithClock(clock.Now),
		resets: NewResetCodeService(store, 10*time.Minute, 6, "http://frontend.test/").WithClock(clock.Now),
		mailer: &fakeMailer{},
		logger: logger,
	}
	env.auth = NewAuthService(store, hasher, env.tokens, env.resets, env.mailer, logger)
	return env
}

func (e *testEnv) signUp(t *testing.T, email, password string) *TokenPair {
	t.Helper()
	pair, err := e.auth.SignUp(context.Background(), email, "Test User", password)
	if err != nil {
		t.Fatalf("SignUp(%s) error: %v", email, err)
	}
	return pair
}

func (e *testEnv) user(t *testing.T, email string) *domain.User {
	t.Helper()
	user, err := e.store.Repositories().Users.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("FindByEmail(%s) error: %v", email, err)
	}
	return user
}

// vanishedUserStore behaves as if every user row disappeared after its
// tokens and codes were read.
type vanishedUserStore struct {
	ports.Store
}

type vanishedUsers struct {
	ports.UserRepository
}

func (vanishedUsers) FindByID(context.Context, uuid.UUID) (*domain.User, error) {
	return nil, ports.ErrNotFound
}

func (s vanishedUserStore) Repositories() ports.Repositories {
	repos := s.Store.Repositories()
	repos.Users = vanishedUsers{repos.Users}
	return repos
}

func (s vanishedUserStore) WithinTx(ctx context.Context, fn func(context.Context, ports.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		repos.Users = vanishedUsers{repos.Users}
		return fn(ctx, repos)
	})
}

// failingWritesStore fails the named reset code and session writes made
// inside a transaction, after any earlier writes have already happened.
type failingWritesStore struct {
	ports.Store
	markUsed       error
	deleteSessions error
}

type failingResetCodes struct {
	ports.ResetCodeRepository
	err error
}

func (r failingResetCodes) MarkUsed(ctx context.Context, id int64) error {
	if r.err != nil {
		return r.err
	}
	return r.ResetCodeRepository.MarkUsed(ctx, id)
}

type failingRefreshTokens struct {
	ports.RefreshTokenRepository
	err error
}

func (r failingRefreshTokens) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.RefreshTokenRepository.DeleteByUser(ctx, userID)
}

func (s failingWritesStore) WithinTx(ctx context.Context, fn func(context.Context, ports.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		repos.ResetCodes = failingResetCodes{repos.ResetCodes, s.markUsed}
		repos.RefreshTokens = failingRefreshTokens{repos.RefreshTokens, s.deleteSessions}
		return fn(ctx, repos)
	})
}

var (
	errMailDown = errors.New("smtp: connection refused")
	errDiskFull = errors.New("pq: could not extend file")
)
