package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// AuthService is the login state machine. Each entry point ends in an
// issued session, an MFA challenge, or one of the public errors; storage
// and provider failures are logged here and surface as ErrInternal.
type AuthService struct {
	Users    UserDirectory
	Tokens   *TokenService
	MFA      *MFAService
	External *ExternalService
	Metrics  *metrics.Metrics
}

type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register creates a password account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.AuthResult, error) {
	res, err := s.register(ctx, in)
	return s.finish(ctx, metrics.MethodRegister, res, err)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*domain.AuthResult, error) {
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return nil, invalid("first_name", "is required")
	case strings.TrimSpace(in.LastName) == "":
		return nil, invalid("last_name", "is required")
	case strings.TrimSpace(in.Email) == "":
		return nil, invalid("email", "is required")
	case in.Password == "":
		return nil, invalid("password", "is required")
	case in.Password != in.ConfirmPassword:
		return nil, invalid("confirm_password", "does not match password")
	}

	u, err := s.Users.Create(ctx, domain.User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}, in.Password)
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return s.issue(ctx, u, false, jwtx.AMRPassword)
}

// Login checks email and password, then applies the MFA gate. Unknown
// email, wrong password and inactive account are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password, mfaCode string) (*domain.AuthResult, error) {
	res, err := s.login(ctx, email, password, mfaCode)
	return s.finish(ctx, metrics.MethodPassword, res, err)
}

func (s *AuthService) login(ctx context.Context, email, password, mfaCode string) (*domain.AuthResult, error) {
	u, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.Users.VerifyPassword(domain.User{}, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.Users.VerifyPassword(u, password) || !u.Active {
		return nil, ErrInvalidCredentials
	}

	return s.gate(ctx, u, mfaCode, jwtx.AMRPassword)
}

// ExternalLogin resolves a provider credential to a local user and applies
// the same MFA gate as Login. Users with MFA enabled always get a challenge
// to answer through VerifyMFAAndLogin.
func (s *AuthService) ExternalLogin(ctx context.Context, p domain.Provider, cred domain.ExternalCredential) (*domain.AuthResult, error) {
	res, err := s.externalLogin(ctx, p, cred)
	return s.finish(ctx, metrics.MethodExternal, res, err)
}

func (s *AuthService) externalLogin(ctx context.Context, p domain.Provider, cred domain.ExternalCredential) (*domain.AuthResult, error) {
	profile, err := s.External.Resolve(ctx, p, cred)
	if err != nil {
		return nil, err
	}
	u, err := s.External.Reconcile(ctx, profile)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInvalidCredentials
	}
	return s.gate(ctx, u, "", jwtx.AMRExternal)
}

// VerifyMFAAndLogin answers the challenge returned by Login or
// ExternalLogin. The first factor is not checked again.
func (s *AuthService) VerifyMFAAndLogin(ctx context.Context, userID, code string) (*domain.AuthResult, error) {
	res, err := s.verifyMFAAndLogin(ctx, userID, code)
	return s.finish(ctx, metrics.MethodMFA, res, err)
}

func (s *AuthService) verifyMFAAndLogin(ctx context.Context, userID, code string) (*domain.AuthResult, error) {
	u, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrInvalidCredentials
	}
	if err := s.MFA.VerifyLogin(ctx, u.ID, code); err != nil {
		return nil, err
	}
	return s.issue(ctx, u, true, jwtx.AMRMFA)
}

// RefreshSession rotates the refresh token and mints an access token that
// reflects the user's current MFA flag.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	res, err := s.refreshSession(ctx, refreshToken)
	if err := s.boundary(ctx, "refresh", err); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *AuthService) refreshSession(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	next, err := s.Tokens.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.Users.FindByID(ctx, next.Record.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil || !u.Active {
		if err := s.Tokens.RevokeRefreshToken(ctx, next.Record.ID, domain.RevokedByUserInactive); err != nil {
			return nil, err
		}
		return nil, ErrInvalidToken
	}

	mfaEnabled, err := s.MFA.IsEnabled(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	access, err := s.Tokens.IssueAccessToken(u, mfaEnabled, jwtx.AMRRefresh)
	if err != nil {
		return nil, err
	}

	return &domain.AuthResult{
		Outcome:              domain.OutcomeIssued,
		AccessToken:          access.Token,
		AccessTokenExpiresAt: access.ExpiresAt,
		RefreshToken:         next.Token,
		User:                 domain.NewUserSummary(u, mfaEnabled),
	}, nil
}

// Logout revokes the chain of refreshToken, or every session of the user
// when no token is given.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	var err error
	if refreshToken != "" {
		_, err = s.Tokens.RevokeRefreshChain(ctx, userID, refreshToken)
	} else {
		_, err = s.Tokens.RevokeAllForUser(ctx, userID)
	}
	return s.boundary(ctx, "logout", err)
}

// RevokeAll signs the user out everywhere.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) error {
	n, err := s.Tokens.RevokeAllForUser(ctx, userID)
	if err == nil {
		slogx.FromContext(ctx).Info("all sessions revoked", "user_id", userID, "count", n)
	}
	return s.boundary(ctx, "revoke_all", err)
}

// gate finishes a successful first factor: users with MFA enabled must
// present a valid code or get a challenge back.
func (s *AuthService) gate(ctx context.Context, u domain.User, mfaCode string, amr ...string) (*domain.AuthResult, error) {
	mfaEnabled, err := s.MFA.IsEnabled(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	if mfaEnabled {
		if mfaCode == "" {
			return &domain.AuthResult{
				Outcome: domain.OutcomeMFARequired,
				User:    domain.NewUserSummary(u, true),
			}, nil
		}
		if err := s.MFA.VerifyLogin(ctx, u.ID, mfaCode); err != nil {
			return nil, err
		}
		amr = append(amr, jwtx.AMRMFA)
	}

	return s.issue(ctx, u, mfaEnabled, amr...)
}

func (s *AuthService) issue(ctx context.Context, u domain.User, mfaEnabled bool, amr ...string) (*domain.AuthResult, error) {
	access, err := s.Tokens.IssueAccessToken(u, mfaEnabled, amr...)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.IssueRefreshToken(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &domain.AuthResult{
		Outcome:              domain.OutcomeIssued,
		AccessToken:          access.Token,
		AccessTokenExpiresAt: access.ExpiresAt,
		RefreshToken:         refresh.Token,
		User:                 domain.NewUserSummary(u, mfaEnabled),
	}, nil
}

// finish records the login metric and normalizes the error.
func (s *AuthService) finish(ctx context.Context, method string, res *domain.AuthResult, err error) (*domain.AuthResult, error) {
	err = s.boundary(ctx, method, err)
	switch {
	case err == nil && res.RequiresMFA():
		s.Metrics.Login(method, metrics.OutcomeMFARequired)
	case err == nil:
		s.Metrics.Login(method, metrics.OutcomeIssued)
	case errors.Is(err, ErrInternal):
		s.Metrics.Login(method, metrics.OutcomeError)
	default:
		s.Metrics.Login(method, metrics.OutcomeRejected)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// boundary maps err onto the public error set.
func (s *AuthService) boundary(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	log := slogx.FromContext(ctx)

	if pub := publicError(err); pub != nil {
		if errors.Is(pub, ErrProviderInfoUnavailable) || errors.Is(pub, ErrExchangeFailed) {
			log.Warn("external provider failure", slog.String("op", op), slog.Any("err", err))
		}
		return pub
	}

	log.Error("authentication failure", slog.String("op", op), slog.Any("err", err))
	return ErrInternal
}
