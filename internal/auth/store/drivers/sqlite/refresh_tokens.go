package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked, revoked_at, revoked_by, replaced_by_hash, created_at`

func scanRefreshToken(row interface{ Scan(...any) error }) (domain.RefreshToken, error) {
	var (
		t          domain.RefreshToken
		revokedAt  sql.NullTime
		revokedBy  sql.NullString
		replacedBy sql.NullString
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.Revoked,
		&revokedAt,
		&revokedBy,
		&replacedBy,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	t.RevokedAt = mapNullTimePtr(revokedAt)
	t.RevokedBy = mapNullString(revokedBy)
	t.ReplacedByHash = mapNullString(replacedBy)
	return t, nil
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.ExpiresAt.UTC(),
		t.Revoked,
		mapOptionalTime(t.RevokedAt),
		mapStringNull(t.RevokedBy),
		mapStringNull(t.ReplacedByHash),
		t.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash)
	t, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(
	ctx context.Context,
	id, revokedBy, replacedByHash string,
	at time.Time,
) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens
		    SET revoked = 1, revoked_at = ?, revoked_by = ?, replaced_by_hash = ?
		  WHERE id = ? AND revoked = 0`,
		at.UTC(),
		mapStringNull(revokedBy),
		mapStringNull(replacedByHash),
		id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *refreshTokensRepo) ListUnrevokedUserRefreshTokens(
	ctx context.Context,
	userID string,
) ([]domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens
		  WHERE user_id = ? AND revoked = 0
		  ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *refreshTokensRepo) CountActiveRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refresh_tokens WHERE revoked = 0 AND expires_at > ?`,
		now.UTC(),
	).Scan(&n)
	return n, err
}
