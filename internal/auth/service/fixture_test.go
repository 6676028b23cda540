package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/internal/auth/provider"
	"github.com/aussiebroadwan/identity/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/aussiebroadwan/identity/pkg/totpx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "http://auth.test"
	testAudience = "identity-test"
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct horse battery staple"
)

// testClock is a settable clock shared by every service in a fixture.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *sqlite.Store
	clock    *testClock
	signer   jwtx.Signer
	metrics  *metrics.Metrics
	users    *UserService
	tokens   *TokenService
	mfa      *MFAService
	external *ExternalService
	auth     *AuthService
}

func newFixture(t *testing.T, adapters ...provider.Adapter) *fixture {
	t.Helper()
	return newFixtureWithDSN(t, ":memory:", adapters...)
}

func newFixtureWithDSN(t *testing.T, dsn string, adapters ...provider.Adapter) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewSignerHS256("test", []byte(testSecret))
	require.NoError(t, err)

	clk := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	m := metrics.New()

	f := &fixture{store: st, clock: clk, signer: signer, metrics: m}
	f.users = &UserService{Store: st, Hasher: cryptox.NewHasher("pepper"), Now: clk.Now}
	f.tokens = &TokenService{
		Signer:   signer,
		Store:    st,
		Issuer:   testIssuer,
		Audience: []string{testAudience},
		Metrics:  m,
		Now:      clk.Now,
	}
	f.mfa = &MFAService{Store: st, QR: totpx.PNGRenderer{}, Metrics: m, Now: clk.Now}
	f.external = &ExternalService{
		Providers: provider.NewRegistry(adapters...),
		Users:     f.users,
		Store:     st,
		Metrics:   m,
		Now:       clk.Now,
	}
	f.auth = &AuthService{
		Users:    f.users,
		Tokens:   f.tokens,
		MFA:      f.mfa,
		External: f.external,
		Metrics:  m,
	}
	return f
}

func (f *fixture) createUser(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), domain.User{
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
	}, testPassword)
	require.NoError(t, err)
	return u
}

// enableMFA walks a user through setup and enable and returns the secret.
func (f *fixture) enableMFA(t *testing.T, userID string) string {
	t.Helper()
	ctx := context.Background()

	setup, err := f.mfa.SetupMFA(ctx, userID)
	require.NoError(t, err)
	code, err := totpx.Code(setup.Secret, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.mfa.EnableMFA(ctx, userID, code))
	return setup.Secret
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := totpx.Code(secret, f.clock.Now())
	require.NoError(t, err)
	return code
}

func (f *fixture) verify(t *testing.T, token string) jwtx.Claims {
	t.Helper()
	v := jwtx.NewVerifier(f.signer, jwtx.VerifyOptions{
		Issuer:   testIssuer,
		Audience: []string{testAudience},
	})
	claims, err := v.Verify(token)
	require.NoError(t, err)
	return claims
}

// fakeAdapter is a provider adapter that serves canned profiles keyed by
// access token.
type fakeAdapter struct {
	provider domain.Provider
	profiles map[string]domain.ExternalProfile
	codes    map[string]string
	fetchErr error
}

func (a *fakeAdapter) Provider() domain.Provider { return a.provider }

func (a *fakeAdapter) ExchangeCode(_ context.Context, code string) (string, error) {
	tok, ok := a.codes[code]
	if !ok {
		return "", provider.ErrExchangeFailed
	}
	return tok, nil
}

func (a *fakeAdapter) FetchIdentity(_ context.Context, token string) (domain.ExternalProfile, error) {
	if a.fetchErr != nil {
		return domain.ExternalProfile{}, a.fetchErr
	}
	p, ok := a.profiles[token]
	if !ok {
		return domain.ExternalProfile{}, provider.ErrInfoUnavailable
	}
	p.Provider = a.provider
	return p, nil
}
