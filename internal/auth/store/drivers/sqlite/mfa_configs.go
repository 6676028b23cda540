package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
)

type mfaConfigsRepo struct {
	db dbtx
}

func (r *mfaConfigsRepo) GetMFAConfig(ctx context.Context, userID string) (domain.MFAConfig, error) {
	var (
		c         domain.MFAConfig
		enabledAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, secret, enabled, enabled_at, created_at, updated_at
		   FROM mfa_configs WHERE user_id = ?`,
		userID,
	).Scan(&c.UserID, &c.Secret, &c.Enabled, &enabledAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.MFAConfig{}, mapNotFound(err)
	}
	c.EnabledAt = mapNullTimePtr(enabledAt)
	return c, nil
}

func (r *mfaConfigsRepo) CreateMFAConfig(ctx context.Context, c domain.MFAConfig) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mfa_configs (user_id, secret, enabled, enabled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.UserID,
		c.Secret,
		c.Enabled,
		mapOptionalTime(c.EnabledAt),
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *mfaConfigsRepo) EnableMFAConfig(ctx context.Context, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mfa_configs SET enabled = 1, enabled_at = ?, updated_at = ? WHERE user_id = ?`,
		at.UTC(), at.UTC(), userID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *mfaConfigsRepo) DeleteMFAConfig(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_configs WHERE user_id = ?`, userID)
	return err
}

func (r *mfaConfigsRepo) CountEnabledMFAConfigs(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mfa_configs WHERE enabled = 1`).Scan(&n)
	return n, err
}
