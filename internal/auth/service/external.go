package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/internal/auth/provider"
	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// reconcileAttempts bounds retries after losing a uniqueness race.
const reconcileAttempts = 3

// ExternalService maps provider identities onto local users.
type ExternalService struct {
	Providers *provider.Registry
	Users     UserDirectory
	Store     store.Store
	Metrics   *metrics.Metrics

	Now func() time.Time
}

// Resolve turns a provider credential into a normalized profile, exchanging
// it first when it is an authorization code.
func (s *ExternalService) Resolve(ctx context.Context, p domain.Provider, cred domain.ExternalCredential) (domain.ExternalProfile, error) {
	a, err := s.Providers.Get(p)
	if err != nil {
		return domain.ExternalProfile{}, err
	}
	if cred.Value == "" {
		return domain.ExternalProfile{}, fmt.Errorf("%w: empty credential", ErrProviderInfoUnavailable)
	}

	token := cred.Value
	if cred.Kind == domain.CredentialAuthorizationCode {
		token, err = a.ExchangeCode(ctx, cred.Value)
		s.Metrics.ProviderCall(p.String(), "exchange", err, ErrExchangeFailed)
		if err != nil {
			return domain.ExternalProfile{}, err
		}
	}

	profile, err := a.FetchIdentity(ctx, token)
	s.Metrics.ProviderCall(p.String(), "fetch", err, ErrProviderInfoUnavailable)
	if err != nil {
		return domain.ExternalProfile{}, err
	}

	profile.Email = domain.NormalizeEmail(profile.Email)
	if profile.ProviderUserID == "" || profile.Email == "" {
		return domain.ExternalProfile{}, fmt.Errorf("%w: incomplete profile", ErrProviderInfoUnavailable)
	}
	return profile, nil
}

// Reconcile returns the local user bound to profile, linking an existing
// account by email or creating a new one on first sight. Once bound, an
// identity always resolves to the same user even if the provider later
// reports a different email.
func (s *ExternalService) Reconcile(ctx context.Context, profile domain.ExternalProfile) (domain.User, error) {
	log := slogx.FromContext(ctx).With(
		slog.String("provider", profile.Provider.String()),
	)

	for range reconcileAttempts {
		u, err := s.reconcileOnce(ctx, profile)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) && !errors.Is(err, ErrDuplicateEmail) {
			return domain.User{}, err
		}
		// Lost a race with a concurrent login for the same identity.
		log.Debug("external identity reconcile retry", "err", err)
	}
	return domain.User{}, fmt.Errorf("external identity for %s did not settle after %d attempts", profile.Provider, reconcileAttempts)
}

func (s *ExternalService) reconcileOnce(ctx context.Context, profile domain.ExternalProfile) (domain.User, error) {
	ident, err := s.Store.ExternalIdentities().GetExternalIdentity(ctx, profile.Provider, profile.ProviderUserID)
	switch {
	case err == nil:
		return s.Users.FindByID(ctx, ident.UserID)
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, err
	}

	u, err := s.Users.FindByEmail(ctx, profile.Email)
	if errors.Is(err, ErrNotFound) {
		u, err = s.createUser(ctx, profile)
	}
	if err != nil {
		return domain.User{}, err
	}

	err = s.Store.ExternalIdentities().CreateExternalIdentity(ctx, domain.ExternalIdentity{
		ID:             idx.New().String(),
		UserID:         u.ID,
		Provider:       profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		Email:          profile.Email,
		DisplayName:    profile.DisplayName,
		CreatedAt:      clock(s.Now),
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("external identity linked",
		"provider", profile.Provider.String(),
		"user_id", u.ID,
	)
	return u, nil
}

// createUser makes an external-only account. Its password is random and
// never disclosed, so it cannot be used for password login.
func (s *ExternalService) createUser(ctx context.Context, profile domain.ExternalProfile) (domain.User, error) {
	first, last := domain.SplitDisplayName(profile.DisplayName)
	if first == "" {
		first, _, _ = strings.Cut(profile.Email, "@")
	}

	pw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.User{}, err
	}
	return s.Users.Create(ctx, domain.User{
		Email:     profile.Email,
		FirstName: first,
		LastName:  last,
	}, pw)
}
