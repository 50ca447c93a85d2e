package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pitskod/expense-tracker/internal/domain"
	"github.com/pitskod/expense-tracker/internal/repository/ports"
)

type userRepo struct {
	store *Store
	inTx  bool
}

func (r *userRepo) Create(ctx context.Context, email, name, passwordHash string) (*domain.User, error) {
	var (
		user domain.User
		err  error
	)
	r.store.write(r.inTx, func(d *state) {
		for _, u := range d.users {
			if u.Email == email {
				err = fmt.Errorf("create user: %w", ports.ErrConflict)
				return
			}
		}
		now := r.store.now().UTC()
		user = domain.User{
			ID:           uuid.New(),
			Email:        email,
			Name:         name,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		d.users[user.ID] = user
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var found *domain.User
	r.store.read(func(d *state) {
		for _, u := range d.users {
			if u.Email == email {
				u := u
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("find user by email: %w", ports.ErrNotFound)
	}
	return found, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var (
		user domain.User
		ok   bool
	)
	r.store.read(func(d *state) { user, ok = d.users[id] })
	if !ok {
		return nil, fmt.Errorf("find user by id: %w", ports.ErrNotFound)
	}
	return &user, nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	var ok bool
	r.store.write(r.inTx, func(d *state) {
		var u domain.User
		if u, ok = d.users[id]; ok {
			u.PasswordHash = passwordHash
			u.UpdatedAt = r.store.now().UTC()
			d.users[id] = u
		}
	})
	if !ok {
		return fmt.Errorf("update password: %w", ports.ErrNotFound)
	}
	return nil
}

// LockByID only checks the user exists; transactions already run one at a time.
func (r *userRepo) LockByID(ctx context.Context, id uuid.UUID) error {
	var ok bool
	r.store.read(func(d *state) { _, ok = d.users[id] })
	if !ok {
		return fmt.Errorf("lock user: %w", ports.ErrNotFound)
	}
	return nil
}

// DeleteUser removes a user and, like the foreign keys, every row it owns.
func (s *Store) DeleteUser(id uuid.UUID) {
	s.write(false, func(d *state) {
		delete(d.users, id)
		for k, t := range d.tokens {
			if t.UserID == id {
				delete(d.tokens, k)
			}
		}
		for k, c := range d.codes {
			if c.UserID == id {
				delete(d.codes, k)
			}
		}
	})
}

type refreshTokenRepo struct {
	store *Store
	inTx  bool
}

func (r *refreshTokenRepo) Create(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (*domain.RefreshToken, error) {
	var (
		rt  domain.RefreshToken
		err error
	)
	r.store.write(r.inTx, func(d *state) {
		if _, dup := d.tokens[token]; dup {
			err = fmt.Errorf("create refresh token: %w", ports.ErrConflict)
			return
		}
		if _, ok := d.users[userID]; !ok {
			err = fmt.Errorf("create refresh token: unknown user %s", userID)
			return
		}
		d.nextTokenID++
		rt = domain.RefreshToken{
			ID:        d.nextTokenID,
			Token:     token,
			UserID:    userID,
			ExpiresAt: expiresAt,
			CreatedAt: r.store.now().UTC(),
		}
		d.tokens[token] = rt
	})
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *refreshTokenRepo) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var (
		rt domain.RefreshToken
		ok bool
	)
	r.store.read(func(d *state) { rt, ok = d.tokens[token] })
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", ports.ErrNotFound)
	}
	return &rt, nil
}

func (r *refreshTokenRepo) DeleteByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var (
		rt domain.RefreshToken
		ok bool
	)
	r.store.write(r.inTx, func(d *state) {
		if rt, ok = d.tokens[token]; ok {
			delete(d.tokens, token)
		}
	})
	if !ok {
		return nil, fmt.Errorf("delete refresh token: %w", ports.ErrNotFound)
	}
	return &rt, nil
}

func (r *refreshTokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	r.store.write(r.inTx, func(d *state) {
		for k, t := range d.tokens {
			if t.UserID == userID {
				delete(d.tokens, k)
				n++
			}
		}
	})
	return n, nil
}

func (r *refreshTokenRepo) DeleteExpiredBatch(ctx context.Context, now time.Time, limit int) (int64, error) {
	var n int64
	r.store.write(r.inTx, func(d *state) {
		expired := make([]domain.RefreshToken, 0)
		for _, t := range d.tokens {
			if t.Expired(now) {
				expired = append(expired, t)
			}
		}
		sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
		if len(expired) > limit {
			expired = expired[:limit]
		}
		for _, t := range expired {
			delete(d.tokens, t.Token)
			n++
		}
	})
	return n, nil
}

type resetCodeRepo struct {
	store *Store
	inTx  bool
}

func (r *resetCodeRepo) Create(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) (*domain.ResetCode, error) {
	var (
		rc  domain.ResetCode
		err error
	)
	r.store.write(r.inTx, func(d *state) {
		if _, dup := d.codes[code]; dup {
			err = fmt.Errorf("create reset code: %w", ports.ErrConflict)
			return
		}
		if _, ok := d.users[userID]; !ok {
			err = fmt.Errorf("create reset code: unknown user %s", userID)
			return
		}
		d.nextCodeID++
		rc = domain.ResetCode{
			ID:        d.nextCodeID,
			Code:      code,
			UserID:    userID,
			ExpiresAt: expiresAt,
			CreatedAt: r.store.now().UTC(),
		}
		d.codes[code] = rc
	})
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *resetCodeRepo) FindByCode(ctx context.Context, code string) (*domain.ResetCode, error) {
	var (
		rc domain.ResetCode
		ok bool
	)
	r.store.read(func(d *state) { rc, ok = d.codes[code] })
	if !ok {
		return nil, fmt.Errorf("find reset code: %w", ports.ErrNotFound)
	}
	return &rc, nil
}

func (r *resetCodeRepo) MarkUsed(ctx context.Context, id int64) error {
	var ok bool
	r.store.write(r.inTx, func(d *state) {
		for k, c := range d.codes {
			if c.ID == id && !c.Used {
				c.Used = true
				d.codes[k] = c
				ok = true
				return
			}
		}
	})
	if !ok {
		return fmt.Errorf("mark reset code used: %w", ports.ErrNotFound)
	}
	return nil
}

func (r *resetCodeRepo) Delete(ctx context.Context, id int64) error {
	r.store.write(r.inTx, func(d *state) {
		for k, c := range d.codes {
			if c.ID == id {
				delete(d.codes, k)
				return
			}
		}
	})
	return nil
}

func (r *resetCodeRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	r.store.write(r.inTx, func(d *state) {
		for k, c := range d.codes {
			if c.UserID == userID {
				delete(d.codes, k)
				n++
			}
		}
	})
	return n, nil
}

func (r *resetCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	r.store.write(r.inTx, func(d *state) {
		for k, c := range d.codes {
			if c.Expired(now) {
				delete(d.codes, k)
				n++
			}
		}
	})
	return n, nil
}

var (
	_ ports.UserRepository         = (*userRepo)(nil)
	_ ports.RefreshTokenRepository = (*refreshTokenRepo)(nil)
	_ ports.ResetCodeRepository    = (*resetCodeRepo)(nil)
)
