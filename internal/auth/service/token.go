package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/metrics"
	"github.com/aussiebroadwan/identity/internal/auth/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
)

// TokenService mints access tokens and owns the refresh-token lifecycle.
type TokenService struct {
	Signer     jwtx.Signer
	Store      store.Store
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Metrics    *metrics.Metrics

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// IssueAccessToken signs a short-lived access token for u. Every call gets a
// fresh jti so two tokens are never identical.
func (s *TokenService) IssueAccessToken(u domain.User, mfaEnabled bool, amr ...string) (domain.AccessToken, error) {
	now := clock(s.Now)

	claims := jwtx.NewAccessClaims(jwtx.Subject{
		ID:         u.ID,
		Email:      u.Email,
		GivenName:  u.FirstName,
		FamilyName: u.LastName,
		MFAEnabled: mfaEnabled,
		AMR:        dedupe(amr),
	}, s.accessTTL(), s.Issuer, s.Audience, now)

	signed, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return domain.AccessToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *TokenService) newRefreshToken(userID string, now time.Time) (domain.IssuedRefreshToken, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.IssuedRefreshToken{}, err
	}
	return domain.IssuedRefreshToken{
		Token: opaque,
		Record: domain.RefreshToken{
			ID:        idx.NewAt(now).String(),
			UserID:    userID,
			TokenHash: cryptox.FingerprintToken(opaque),
			ExpiresAt: now.Add(s.refreshTTL()),
			CreatedAt: now,
		},
	}, nil
}

// IssueRefreshToken creates and stores a new refresh token for userID.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (domain.IssuedRefreshToken, error) {
	rt, err := s.newRefreshToken(userID, clock(s.Now))
	if err != nil {
		return domain.IssuedRefreshToken{}, err
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt.Record); err != nil {
		return domain.IssuedRefreshToken{}, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rt, nil
}

// RotateRefreshToken exchanges an active refresh token for a new one. The
// old token is revoked and its successor created in one transaction; of two
// concurrent rotations of the same token exactly one succeeds and the other
// gets ErrInvalidToken.
func (s *TokenService) RotateRefreshToken(ctx context.Context, opaque string) (domain.IssuedRefreshToken, error) {
	if opaque == "" {
		s.Metrics.Refresh("invalid")
		return domain.IssuedRefreshToken{}, ErrInvalidToken
	}
	now := clock(s.Now)
	fp := cryptox.FingerprintToken(opaque)

	var next domain.IssuedRefreshToken
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		old, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if !old.IsActive(now) {
			return ErrInvalidToken
		}

		next, err = s.newRefreshToken(old.UserID, now)
		if err != nil {
			return err
		}

		// Conditional on revoked = 0, so a concurrent winner makes this fail.
		err = tx.RefreshTokens().RevokeRefreshToken(ctx, old.ID, domain.RevokedByRotation, next.Record.TokenHash, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next.Record)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			s.Metrics.Refresh("invalid")
		} else {
			s.Metrics.Refresh("error")
		}
		return domain.IssuedRefreshToken{}, err
	}

	s.Metrics.Refresh("ok")
	return next, nil
}

// RevokeRefreshToken revokes one stored token by id. Already revoked tokens
// are left alone.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, id, reason string) error {
	err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, id, reason, "", clock(s.Now))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil {
		s.Metrics.Revoked(reason, 1)
	}
	return nil
}

// RevokeRefreshChain revokes the rotation chain starting at opaque, following
// replaced-by pointers forward. The token must belong to userID.
func (s *TokenService) RevokeRefreshChain(ctx context.Context, userID, opaque string) (int, error) {
	if opaque == "" {
		return 0, ErrInvalidToken
	}
	now := clock(s.Now)

	revoked := 0
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		repo := tx.RefreshTokens()

		cur, err := repo.GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(opaque))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if cur.UserID != userID {
			return ErrInvalidToken
		}

		seen := map[string]bool{}
		for !seen[cur.ID] {
			seen[cur.ID] = true

			if !cur.Revoked {
				err := repo.RevokeRefreshToken(ctx, cur.ID, domain.RevokedByLogout, "", now)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}
				if err == nil {
					revoked++
				}
			}

			if cur.ReplacedByHash == "" {
				break
			}
			cur, err = repo.GetRefreshTokenByHash(ctx, cur.ReplacedByHash)
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Metrics.Revoked(domain.RevokedByLogout, revoked)
	return revoked, nil
}

// RevokeAllForUser revokes every active refresh token of userID. Calling it
// again revokes nothing more.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	return s.revokeAll(ctx, userID, domain.RevokedByRevokeAll)
}

func (s *TokenService) revokeAll(ctx context.Context, userID, reason string) (int, error) {
	now := clock(s.Now)

	revoked := 0
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		repo := tx.RefreshTokens()

		tokens, err := repo.ListUnrevokedUserRefreshTokens(ctx, userID)
		if err != nil {
			return err
		}
		for _, t := range tokens {
			if !t.IsActive(now) {
				continue
			}
			err := repo.RevokeRefreshToken(ctx, t.ID, reason, "", now)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if err == nil {
				revoked++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	s.Metrics.Revoked(reason, revoked)
	return revoked, nil
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
