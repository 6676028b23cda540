package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, f *fixture, email string) *domain.AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterInput{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	return res
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	res := register(t, f, "Ada@Example.com")
	require.Equal(t, domain.OutcomeIssued, res.Outcome)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	require.Equal(t, "ada@example.com", res.User.Email)
	require.False(t, res.User.MFAEnabled)

	claims := f.verify(t, res.AccessToken)
	require.Equal(t, res.User.ID, claims.Subject)
	require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)

	_, err := f.auth.Register(ctx, RegisterInput{
		FirstName: "Ada", LastName: "Again", Email: "ADA@example.com",
		Password: "x", ConfirmPassword: "x",
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = f.auth.Register(ctx, RegisterInput{
		FirstName: "Bob", LastName: "B", Email: "bob@example.com",
		Password: "one", ConfirmPassword: "two",
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "confirm_password", ve.Field)

	_, err = f.auth.Register(ctx, RegisterInput{FirstName: "Bob", Email: "bob@example.com", Password: "p", ConfirmPassword: "p"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	register(t, f, "login@example.com")

	res, err := f.auth.Login(ctx, "LOGIN@example.com", testPassword, "")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeIssued, res.Outcome)

	_, err = f.auth.Login(ctx, "login@example.com", "wrong", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, "ghost@example.com", testPassword, "")
	require.ErrorIs(t, err, ErrInvalidCredentials, "unknown email looks like a wrong password")
}

func TestLoginInactiveUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	res := register(t, f, "gone@example.com")

	require.NoError(t, f.store.Users().SetUserActive(ctx, res.User.ID, false))

	_, err := f.auth.Login(ctx, "gone@example.com", testPassword, "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.RefreshSession(ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	active, err := f.store.RefreshTokens().CountActiveRefreshTokens(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Zero(t, active, "the rotated successor is revoked too")
}

func TestMFALoginFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	reg := register(t, f, "two@example.com")
	secret := f.enableMFA(t, reg.User.ID)

	res, err := f.auth.Login(ctx, "two@example.com", testPassword, "")
	require.NoError(t, err)
	require.True(t, res.RequiresMFA())
	require.Empty(t, res.AccessToken)
	require.Empty(t, res.RefreshToken)
	require.Equal(t, reg.User.ID, res.User.ID)
	require.True(t, res.User.MFAEnabled)

	_, err = f.auth.Login(ctx, "two@example.com", "wrong", f.code(t, secret))
	require.ErrorIs(t, err, ErrInvalidCredentials, "password is checked before the code")

	_, err = f.auth.Login(ctx, "two@example.com", testPassword, "000000x")
	require.ErrorIs(t, err, ErrInvalidMFACode)

	res, err = f.auth.Login(ctx, "two@example.com", testPassword, f.code(t, secret))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeIssued, res.Outcome)
	claims := f.verify(t, res.AccessToken)
	require.True(t, claims.MFA)
	require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMRMFA}, claims.AMR)

	_, err = f.auth.VerifyMFAAndLogin(ctx, reg.User.ID, "12")
	require.ErrorIs(t, err, ErrInvalidMFACode)

	res, err = f.auth.VerifyMFAAndLogin(ctx, reg.User.ID, f.code(t, secret))
	require.NoError(t, err)
	require.Equal(t, []string{jwtx.AMRMFA}, f.verify(t, res.AccessToken).AMR)

	_, err = f.auth.VerifyMFAAndLogin(ctx, "missing", f.code(t, secret))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyMFAAndLoginWithoutMFA(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	reg := register(t, f, "plain@example.com")

	_, err := f.auth.VerifyMFAAndLogin(context.Background(), reg.User.ID, "123456")
	require.ErrorIs(t, err, ErrMFANotEnabled)
}

func TestRefreshSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	reg := register(t, f, "refresh@example.com")

	next, err := f.auth.RefreshSession(ctx, reg.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, reg.RefreshToken, next.RefreshToken)
	require.False(t, f.verify(t, next.AccessToken).MFA)

	_, err = f.auth.RefreshSession(ctx, reg.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken, "replayed refresh token")

	f.enableMFA(t, reg.User.ID)
	next, err = f.auth.RefreshSession(ctx, next.RefreshToken)
	require.NoError(t, err)
	claims := f.verify(t, next.AccessToken)
	require.True(t, claims.MFA, "refresh reflects the current MFA flag")
	require.Equal(t, []string{jwtx.AMRRefresh}, claims.AMR)

	require.NoError(t, f.auth.RevokeAll(ctx, reg.User.ID))
	_, err = f.auth.RefreshSession(ctx, next.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	reg := register(t, f, "bye@example.com")

	other, err := f.auth.Login(ctx, "bye@example.com", testPassword, "")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, reg.User.ID, reg.RefreshToken))
	_, err = f.auth.RefreshSession(ctx, reg.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.ErrorIs(t, f.auth.Logout(ctx, reg.User.ID, "bogus"), ErrInvalidToken)

	require.NoError(t, f.auth.Logout(ctx, reg.User.ID, ""))
	_, err = f.auth.RefreshSession(ctx, other.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExternalLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, newGitHubFake())

	res, err := f.auth.ExternalLogin(ctx, domain.ProviderGitHub, domain.ExternalCredential{Value: "gho_octo"})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeIssued, res.Outcome)
	require.Equal(t, "octo@example.com", res.User.Email)
	require.Equal(t, []string{jwtx.AMRExternal}, f.verify(t, res.AccessToken).AMR)

	again, err := f.auth.ExternalLogin(ctx, domain.ProviderGitHub, domain.ExternalCredential{Value: "gho_moved"})
	require.NoError(t, err)
	require.Equal(t, res.User.ID, again.User.ID)

	f.enableMFA(t, res.User.ID)
	challenge, err := f.auth.ExternalLogin(ctx, domain.ProviderGitHub, domain.ExternalCredential{
		Kind:  domain.CredentialAuthorizationCode,
		Value: "code-123",
	})
	require.NoError(t, err)
	require.True(t, challenge.RequiresMFA())

	_, err = f.auth.ExternalLogin(ctx, domain.ProviderGitHub, domain.ExternalCredential{Value: "expired"})
	require.ErrorIs(t, err, ErrProviderInfoUnavailable)

	_, err = f.auth.ExternalLogin(ctx, domain.ProviderGoogle, domain.ExternalCredential{Value: "x"})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestBoundaryHidesInternalErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	_, err := f.auth.Login(context.Background(), "a@example.com", "pw", "")
	require.ErrorIs(t, err, ErrInternal)
	require.Equal(t, "internal_error", err.Error())
}
