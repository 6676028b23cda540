package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so a Tx can hand out the same repositories bound to
// one transaction.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	MFAConfigs() MFAConfigs
	ExternalIdentities() ExternalIdentities

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// SetUserActive flips the active flag and bumps updated_at.
	SetUserActive(ctx context.Context, userID string, active bool) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint, revoked or not.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken revokes the token with the given id if it is not
	// revoked yet. It returns ErrNotFound when no unrevoked row matched, which
	// is how a losing concurrent rotation observes the winner.
	RevokeRefreshToken(ctx context.Context, id, revokedBy, replacedByHash string, at time.Time) error

	// ListUnrevokedUserRefreshTokens returns every token of the user that has
	// not been revoked, including expired ones.
	ListUnrevokedUserRefreshTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// CountActiveRefreshTokens counts tokens that are unrevoked and unexpired at now.
	CountActiveRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type MFAConfigs interface {
	GetMFAConfig(ctx context.Context, userID string) (domain.MFAConfig, error)

	// CreateMFAConfig inserts a pending configuration. A second row for the
	// same user yields ErrAlreadyExists.
	CreateMFAConfig(ctx context.Context, c domain.MFAConfig) error

	// EnableMFAConfig marks the configuration enabled and stamps enabled_at.
	EnableMFAConfig(ctx context.Context, userID string, at time.Time) error

	// DeleteMFAConfig removes the configuration; missing rows are not an error.
	DeleteMFAConfig(ctx context.Context, userID string) error

	CountEnabledMFAConfigs(ctx context.Context) (int64, error)
}

type ExternalIdentities interface {
	GetExternalIdentity(ctx context.Context, provider domain.Provider, providerUserID string) (domain.ExternalIdentity, error)

	// CreateExternalIdentity yields ErrAlreadyExists when the
	// (provider, provider_user_id) pair is already bound.
	CreateExternalIdentity(ctx context.Context, e domain.ExternalIdentity) error
}
