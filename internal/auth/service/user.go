package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/idx"
)

// UserDirectory is the user-store capability the orchestrator and the
// reconciler depend on.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)

	// Create stores u with rawPassword hashed. It fails with ErrValidation
	// or ErrDuplicateEmail.
	Create(ctx context.Context, u domain.User, rawPassword string) (domain.User, error)

	VerifyPassword(u domain.User, rawPassword string) bool
}

// UserService is the UserDirectory backed by the store and Argon2id.
type UserService struct {
	Store  store.Store
	Hasher *cryptox.Hasher

	Now func() time.Time

	decoyOnce sync.Once
	decoy     string
}

var _ UserDirectory = (*UserService)(nil)

func (s *UserService) FindByID(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (s *UserService) Create(ctx context.Context, u domain.User, rawPassword string) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)

	if u.Email == "" {
		return domain.User{}, invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return domain.User{}, invalid("email", "is not a valid address")
	}
	if u.FirstName == "" {
		return domain.User{}, invalid("first_name", "is required")
	}
	if rawPassword == "" {
		return domain.User{}, invalid("password", "is required")
	}

	hash, err := s.Hasher.Hash(rawPassword)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := clock(s.Now)
	u.ID = idx.NewAt(now).String()
	u.PasswordHash = hash
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// VerifyPassword reports whether rawPassword matches u. A user without a
// hash is checked against a throwaway hash so unknown accounts cost the
// same as known ones.
func (s *UserService) VerifyPassword(u domain.User, rawPassword string) bool {
	hash := u.PasswordHash
	if hash == "" {
		hash = s.decoyHash()
		_ = s.Hasher.Verify(rawPassword, hash)
		return false
	}
	return s.Hasher.Verify(rawPassword, hash) == nil
}

func (s *UserService) decoyHash() string {
	s.decoyOnce.Do(func() {
		pw, _ := cryptox.GenerateToken(cryptox.TokenSize128)
		s.decoy, _ = s.Hasher.Hash(pw)
	})
	return s.decoy
}
