package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, first_name, last_name, password_hash, active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`,
		domain.NormalizeEmail(email),
	)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		domain.NormalizeEmail(u.Email),
		u.FirstName,
		u.LastName,
		u.PasswordHash,
		u.Active,
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *usersRepo) SetUserActive(ctx context.Context, userID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
