package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
)

type externalIdentitiesRepo struct {
	db dbtx
}

const externalIdentityColumns = `id, user_id, provider, provider_user_id, email, display_name, created_at`

func scanExternalIdentity(row interface{ Scan(...any) error }) (domain.ExternalIdentity, error) {
	var (
		e        domain.ExternalIdentity
		provider string
	)
	err := row.Scan(&e.ID, &e.UserID, &provider, &e.ProviderUserID, &e.Email, &e.DisplayName, &e.CreatedAt)
	e.Provider = domain.Provider(provider)
	return e, err
}

func (r *externalIdentitiesRepo) GetExternalIdentity(
	ctx context.Context,
	provider domain.Provider,
	providerUserID string,
) (domain.ExternalIdentity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+externalIdentityColumns+` FROM external_identities
		  WHERE provider = ? AND provider_user_id = ?`,
		string(provider), providerUserID,
	)
	e, err := scanExternalIdentity(row)
	if err != nil {
		return domain.ExternalIdentity{}, mapNotFound(err)
	}
	return e, nil
}

func (r *externalIdentitiesRepo) CreateExternalIdentity(ctx context.Context, e domain.ExternalIdentity) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO external_identities (`+externalIdentityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		string(e.Provider),
		e.ProviderUserID,
		e.Email,
		e.DisplayName,
		e.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}
