package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestIssueAccessToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.createUser(t, "ada@example.com")

	a, err := f.tokens.IssueAccessToken(u, false, jwtx.AMRPassword, jwtx.AMRPassword)
	require.NoError(t, err)
	require.True(t, f.clock.Now().Add(jwtx.DefaultAccessTokenTTL).Equal(a.ExpiresAt))

	claims := f.verify(t, a.Token)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, "Ada Lovelace", claims.Name)
	require.False(t, claims.MFA)
	require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)

	b, err := f.tokens.IssueAccessToken(u, true)
	require.NoError(t, err)
	require.NotEqual(t, a.Token, b.Token, "every token carries a fresh jti")
	require.True(t, f.verify(t, b.Token).MFA)
}

func TestRotateRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rotation revokes the old token and links the successor", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		u := f.createUser(t, "rot@example.com")

		first, err := f.tokens.IssueRefreshToken(ctx, u.ID)
		require.NoError(t, err)
		require.NotContains(t, first.Record.TokenHash, first.Token)

		second, err := f.tokens.RotateRefreshToken(ctx, first.Token)
		require.NoError(t, err)
		require.Equal(t, u.ID, second.Record.UserID)
		require.NotEqual(t, first.Token, second.Token)

		old, err := f.store.RefreshTokens().GetRefreshTokenByHash(ctx, first.Record.TokenHash)
		require.NoError(t, err)
		require.True(t, old.Revoked)
		require.Equal(t, domain.RevokedByRotation, old.RevokedBy)
		require.Equal(t, second.Record.TokenHash, old.ReplacedByHash)

		_, err = f.tokens.RotateRefreshToken(ctx, first.Token)
		require.ErrorIs(t, err, ErrInvalidToken, "a rotated token is single use")

		_, err = f.tokens.RotateRefreshToken(ctx, second.Token)
		require.NoError(t, err)
	})

	t.Run("unknown and empty tokens are invalid", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.tokens.RotateRefreshToken(ctx, "")
		require.ErrorIs(t, err, ErrInvalidToken)

		_, err = f.tokens.RotateRefreshToken(ctx, "never-issued")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired tokens are invalid", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		u := f.createUser(t, "exp@example.com")

		rt, err := f.tokens.IssueRefreshToken(ctx, u.ID)
		require.NoError(t, err)

		f.clock.Advance(jwtx.DefaultRefreshTokenTTL)
		_, err = f.tokens.RotateRefreshToken(ctx, rt.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRotateRefreshTokenConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixtureWithDSN(t, sqlite.DSN(t.TempDir()+"/rotate.db"))
	u := f.createUser(t, "race@example.com")

	rt, err := f.tokens.IssueRefreshToken(ctx, u.ID)
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		invalid int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tokens.RotateRefreshToken(ctx, rt.Token)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidToken):
				invalid++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, invalid)

	active, err := f.store.RefreshTokens().CountActiveRefreshTokens(ctx, f.clock.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, active)
}

func TestRotateRefreshTokenRollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := &TokenService{Store: sqlite.NewStoreFromDB(db), Now: func() time.Time { return now }}

	opaque := "opaque-refresh-token"
	cols := []string{"id", "user_id", "token_hash", "expires_at", "revoked", "revoked_at", "revoked_by", "replaced_by_hash", "created_at"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM refresh_tokens WHERE token_hash").
		WithArgs(cryptox.FingerprintToken(opaque)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"rt-1", "user-1", cryptox.FingerprintToken(opaque), now.Add(time.Hour),
			false, nil, nil, nil, now.Add(-time.Hour),
		))
	mock.ExpectExec("UPDATE refresh_tokens").
		WillReturnResult(driver.RowsAffected(1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = ts.RotateRefreshToken(context.Background(), opaque)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "chain@example.com")
	other := f.createUser(t, "other@example.com")

	first, err := f.tokens.IssueRefreshToken(ctx, u.ID)
	require.NoError(t, err)
	second, err := f.tokens.RotateRefreshToken(ctx, first.Token)
	require.NoError(t, err)

	unrelated, err := f.tokens.IssueRefreshToken(ctx, u.ID)
	require.NoError(t, err)

	_, err = f.tokens.RevokeRefreshChain(ctx, other.ID, first.Token)
	require.ErrorIs(t, err, ErrInvalidToken, "chain owned by someone else")

	n, err := f.tokens.RevokeRefreshChain(ctx, u.ID, first.Token)
	require.NoError(t, err)
	require.Equal(t, 1, n, "only the live successor needs revoking")

	_, err = f.tokens.RotateRefreshToken(ctx, second.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.tokens.RotateRefreshToken(ctx, unrelated.Token)
	require.NoError(t, err, "other sessions survive a single logout")
}

func TestRevokeAllForUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "all@example.com")
	other := f.createUser(t, "keep@example.com")

	var tokens []domain.IssuedRefreshToken
	for range 3 {
		rt, err := f.tokens.IssueRefreshToken(ctx, u.ID)
		require.NoError(t, err)
		tokens = append(tokens, rt)
	}
	kept, err := f.tokens.IssueRefreshToken(ctx, other.ID)
	require.NoError(t, err)

	n, err := f.tokens.RevokeAllForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = f.tokens.RevokeAllForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	for _, rt := range tokens {
		rec, err := f.store.RefreshTokens().GetRefreshTokenByHash(ctx, rt.Record.TokenHash)
		require.NoError(t, err)
		require.Equal(t, domain.RevokedByRevokeAll, rec.RevokedBy)

		_, err = f.tokens.RotateRefreshToken(ctx, rt.Token)
		require.ErrorIs(t, err, ErrInvalidToken)
	}

	_, err = f.tokens.RotateRefreshToken(ctx, kept.Token)
	require.NoError(t, err)
}

func TestDedupe(t *testing.T) {
	t.Parallel()
	require.Equal(t, []string{"pwd", "mfa"}, dedupe([]string{"pwd", "", "mfa", "pwd"}))
	require.Empty(t, dedupe(nil))
}
