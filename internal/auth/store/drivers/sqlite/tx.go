package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/identity/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // the outer DB stays open

// Ping is a no-op; the connection is held for the lifetime of the transaction.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                 { return &usersRepo{db: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{db: t.tx} }
func (t *txStore) MFAConfigs() store.MFAConfigs       { return &mfaConfigsRepo{db: t.tx} }
func (t *txStore) ExternalIdentities() store.ExternalIdentities {
	return &externalIdentitiesRepo{db: t.tx}
}

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx
