package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/aussiebroadwan/identity/pkg/totpx"
)

// DefaultMFAIssuer labels entries in authenticator apps.
const DefaultMFAIssuer = "Demo Auth App"

// QRRenderer turns a provisioning URI into an image.
type QRRenderer interface {
	RenderQR(uri string) ([]byte, error)
}

// MFAService drives the per-user TOTP state machine:
// none -> pending -> enabled, and back to none on disable.
type MFAService struct {
	Store   store.Store
	Issuer  string
	QR      QRRenderer // optional
	Metrics *metrics.Metrics

	Now func() time.Time
}

func (s *MFAService) issuer() string {
	if s.Issuer != "" {
		return s.Issuer
	}
	return DefaultMFAIssuer
}

func (s *MFAService) config(ctx context.Context, userID string) (*domain.MFAConfig, error) {
	cfg, err := s.Store.MFAConfigs().GetMFAConfig(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load MFA config: %w", err)
	}
	return &cfg, nil
}

// SetupMFA starts enrollment. A pending setup is returned unchanged so a
// retried call never invalidates a secret the user may already have scanned.
func (s *MFAService) SetupMFA(ctx context.Context, userID string) (domain.MFASetup, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFASetup{}, ErrNotFound
		}
		return domain.MFASetup{}, err
	}

	cfg, err := s.config(ctx, userID)
	if err != nil {
		return domain.MFASetup{}, err
	}

	if cfg == nil {
		cfg, err = s.createPending(ctx, u)
		if err != nil {
			return domain.MFASetup{}, err
		}
	}
	if cfg.State() == domain.MFAStateEnabled {
		return domain.MFASetup{}, ErrMFAAlreadyEnabled
	}

	key, err := totpx.KeyFor(s.issuer(), u.Email, cfg.Secret)
	if err != nil {
		return domain.MFASetup{}, err
	}

	setup := domain.MFASetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}
	if s.QR != nil {
		if setup.QRCodePNG, err = s.QR.RenderQR(setup.ProvisioningURI); err != nil {
			return domain.MFASetup{}, fmt.Errorf("failed to render QR code: %w", err)
		}
	}

	s.Metrics.MFAEvent("setup")
	return setup, nil
}

func (s *MFAService) createPending(ctx context.Context, u domain.User) (*domain.MFAConfig, error) {
	key, err := totpx.NewKey(s.issuer(), u.Email)
	if err != nil {
		return nil, err
	}
	now := clock(s.Now)
	cfg := domain.MFAConfig{
		UserID:    u.ID,
		Secret:    key.Secret(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.Store.MFAConfigs().CreateMFAConfig(ctx, cfg)
	if errors.Is(err, store.ErrAlreadyExists) {
		// A concurrent setup won; use its row.
		existing, err := s.config(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.New("mfa config vanished during setup")
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store MFA config: %w", err)
	}
	return &cfg, nil
}

// VerifyCode checks code against secret for the current step and one step
// either side.
func (s *MFAService) VerifyCode(secret, code string) bool {
	return totpx.Verify(secret, code, clock(s.Now))
}

// EnableMFA completes enrollment once the user proves they hold the secret.
// A wrong code leaves the setup pending.
func (s *MFAService) EnableMFA(ctx context.Context, userID, code string) error {
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return err
	}
	switch cfg.State() {
	case domain.MFAStateNone:
		return ErrMFANotConfigured
	case domain.MFAStateEnabled:
		return ErrMFAAlreadyEnabled
	}

	if !s.VerifyCode(cfg.Secret, code) {
		s.Metrics.MFAEvent("enable_rejected")
		return ErrInvalidMFACode
	}

	if err := s.Store.MFAConfigs().EnableMFAConfig(ctx, userID, clock(s.Now)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotConfigured
		}
		return fmt.Errorf("failed to enable MFA: %w", err)
	}

	s.Metrics.MFAEvent("enabled")
	return nil
}

// VerifyLogin checks a second-factor code for a user with MFA enabled.
func (s *MFAService) VerifyLogin(ctx context.Context, userID, code string) error {
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return err
	}
	if cfg.State() != domain.MFAStateEnabled {
		return ErrMFANotEnabled
	}
	if !s.VerifyCode(cfg.Secret, code) {
		s.Metrics.MFAEvent("login_rejected")
		return ErrInvalidMFACode
	}
	s.Metrics.MFAEvent("login_verified")
	return nil
}

// DisableMFA drops the configuration. It succeeds when there is none.
func (s *MFAService) DisableMFA(ctx context.Context, userID string) error {
	if err := s.Store.MFAConfigs().DeleteMFAConfig(ctx, userID); err != nil {
		return fmt.Errorf("failed to disable MFA: %w", err)
	}
	s.Metrics.MFAEvent("disabled")
	return nil
}

func (s *MFAService) GetStatus(ctx context.Context, userID string) (domain.MFAStatus, error) {
	cfg, err := s.config(ctx, userID)
	if err != nil {
		return domain.MFAStatus{}, err
	}
	if cfg.State() != domain.MFAStateEnabled {
		return domain.MFAStatus{}, nil
	}
	return domain.MFAStatus{Enabled: true, EnabledAt: cfg.EnabledAt}, nil
}

// IsEnabled is GetStatus reduced to the flag.
func (s *MFAService) IsEnabled(ctx context.Context, userID string) (bool, error) {
	st, err := s.GetStatus(ctx, userID)
	return st.Enabled, err
}
