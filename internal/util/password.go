package util

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 12
)

var ErrPasswordPolicy = errors.New("password must be 8-12 characters and include uppercase, lowercase and a digit")

// DefaultArgon2Params is the cost of newly stored digests.
var DefaultArgon2Params = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// ValidatePassword enforces the sign-up and restore-password policy.
func ValidatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n < minPasswordLength || n > maxPasswordLength {
		return ErrPasswordPolicy
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return ErrPasswordPolicy
	}
	return nil
}

type passwordScheme interface {
	// owns reports whether digest was produced by this scheme.
	owns(digest string) bool
	verify(password, digest string) bool
}

type argon2idScheme struct {
	params *argon2id.Params
}

func (s argon2idScheme) hash(password string) (string, error) {
	return argon2id.CreateHash(password, s.params)
}

func (argon2idScheme) owns(digest string) bool {
	return strings.HasPrefix(digest, "$argon2id$")
}

func (argon2idScheme) verify(password, digest string) bool {
	ok, err := argon2id.ComparePasswordAndHash(password, digest)
	return err == nil && ok
}

// bcryptScheme only verifies digests written before the argon2id migration.
type bcryptScheme struct{}

func (bcryptScheme) owns(digest string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(digest, prefix) {
			return true
		}
	}
	return false
}

func (bcryptScheme) verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

const bcryptSHA256Prefix = "$bcrypt-sha256$"

// bcryptSHA256Scheme verifies passlib bcrypt_sha256 digests, both
// "$bcrypt-sha256$v=2,t=2b,r=12$<salt>$<checksum>" and the older
// "$bcrypt-sha256$2a,12$<salt>$<checksum>". The password is pre-hashed into a
// base64 key (HMAC-SHA256 keyed by the salt for v=2, plain SHA-256 before)
// and that key is what bcrypt saw.
type bcryptSHA256Scheme struct{}

func (bcryptSHA256Scheme) owns(digest string) bool {
	return strings.HasPrefix(digest, bcryptSHA256Prefix)
}

func (bcryptSHA256Scheme) verify(password, digest string) bool {
	parts := strings.Split(strings.TrimPrefix(digest, bcryptSHA256Prefix), "$")
	if len(parts) != 3 {
		return false
	}
	params, salt, checksum := parts[0], parts[1], parts[2]
	if len(salt) != 22 || len(checksum) != 31 {
		return false
	}
	variant, rounds, keyed, ok := parseBcryptSHA256Params(params)
	if !ok {
		return false
	}

	var sum []byte
	if keyed {
		mac := hmac.New(sha256.New, []byte(salt))
		mac.Write([]byte(password))
		sum = mac.Sum(nil)
	} else {
		h := sha256.Sum256([]byte(password))
		sum = h[:]
	}
	key := base64.StdEncoding.EncodeToString(sum)
	inner := fmt.Sprintf("$%s$%02d$%s%s", variant, rounds, salt, checksum)
	return bcrypt.CompareHashAndPassword([]byte(inner), []byte(key)) == nil
}

// parseBcryptSHA256Params reads "v=2,t=2b,r=12" or the older "2a,12".
func parseBcryptSHA256Params(params string) (variant string, rounds int, keyed bool, ok bool) {
	fields := strings.Split(params, ",")
	var cost string
	switch {
	case len(fields) == 3 && fields[0] == "v=2":
		if !strings.HasPrefix(fields[1], "t=") || !strings.HasPrefix(fields[2], "r=") {
			return "", 0, false, false
		}
		variant, cost, keyed = fields[1][2:], fields[2][2:], true
	case len(fields) == 2:
		variant, cost = fields[0], fields[1]
	default:
		return "", 0, false, false
	}
	if variant != "2a" && variant != "2b" {
		return "", 0, false, false
	}
	rounds, err := strconv.Atoi(cost)
	if err != nil || rounds < bcrypt.MinCost || rounds > bcrypt.MaxCost {
		return "", 0, false, false
	}
	return variant, rounds, keyed, true
}

// PasswordHasher hashes with argon2id and verifies against every known scheme.
// The number of concurrent hash computations is bounded.
type PasswordHasher struct {
	current argon2idScheme
	schemes []passwordScheme
	sem     *semaphore.Weighted
}

func NewPasswordHasher(concurrency int, params *argon2id.Params) *PasswordHasher {
	if concurrency <= 0 {
		concurrency = 1
	}
	if params == nil {
		params = DefaultArgon2Params
	}
	current := argon2idScheme{params: params}
	return &PasswordHasher{
		current: current,
		schemes: []passwordScheme{current, bcryptSHA256Scheme{}, bcryptScheme{}},
		sem:     semaphore.NewWeighted(int64(concurrency)),
	}
}

func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for hasher: %w", err)
	}
	defer h.sem.Release(1)
	return h.current.hash(password)
}

// Verify never returns an error: unknown, malformed and mismatching digests are all false.
func (h *PasswordHasher) Verify(ctx context.Context, password, digest string) bool {
	if password == "" || digest == "" {
		return false
	}
	for _, scheme := range h.schemes {
		if !scheme.owns(digest) {
			continue
		}
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false
		}
		ok := scheme.verify(password, digest)
		h.sem.Release(1)
		return ok
	}
	return false
}

// NeedsRehash reports whether digest should be replaced by a current-scheme digest.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	return !h.current.owns(digest)
}
