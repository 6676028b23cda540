package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           string
	Email        string // stored lower-cased; unique regardless of case
	FirstName    string
	LastName     string
	PasswordHash string // argon2 encoded
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName joins the name parts the way they are shown in tokens.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail folds an address into the form used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SplitDisplayName splits on the first space: "Ada King Lovelace" becomes
// ("Ada", "King Lovelace") and single-token names have no last name.
func SplitDisplayName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// UserSummary is the user view handed back with login outcomes.
type UserSummary struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	MFAEnabled bool
}

func NewUserSummary(u User, mfaEnabled bool) UserSummary {
	return UserSummary{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		MFAEnabled: mfaEnabled,
	}
}
