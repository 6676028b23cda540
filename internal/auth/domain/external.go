package domain

import (
	"errors"
	"strings"
	"time"
)

// Provider identifies one of the supported external identity providers.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderGitHub  Provider = "github"
	ProviderDiscord Provider = "discord"
)

var ErrUnknownProvider = errors.New("unknown_provider")

// Providers lists every supported provider in a stable order.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderGitHub, ProviderDiscord}
}

// ParseProvider resolves a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderDiscord:
		return p, nil
	}
	return "", ErrUnknownProvider
}

func (p Provider) String() string { return string(p) }

// ExternalIdentity binds a (provider, provider user id) pair to one user.
type ExternalIdentity struct {
	ID             string
	UserID         string
	Provider       Provider
	ProviderUserID string
	Email          string
	DisplayName    string
	CreatedAt      time.Time
}

// ExternalProfile is the normalized identity a provider adapter reports.
type ExternalProfile struct {
	Provider       Provider
	ProviderUserID string
	Email          string
	DisplayName    string
}

// CredentialKind says what an external-login caller is holding.
type CredentialKind int

const (
	CredentialAccessToken CredentialKind = iota
	CredentialAuthorizationCode
)

func (k CredentialKind) String() string {
	if k == CredentialAuthorizationCode {
		return "code"
	}
	return "access_token"
}

// ExternalCredential is what the caller presents for an external login.
type ExternalCredential struct {
	Kind  CredentialKind
	Value string
}

// GuessCredentialKind classifies a credential of unknown kind by its shape.
// Only used for callers that do not say whether they hold a code or a token;
// provider token formats are not guaranteed, so this can misclassify.
func GuessCredentialKind(p Provider, value string) CredentialKind {
	switch p {
	case ProviderGitHub:
		if len(value) < 40 && !strings.HasPrefix(value, "gho_") {
			return CredentialAuthorizationCode
		}
	case ProviderDiscord:
		if len(value) < 100 {
			return CredentialAuthorizationCode
		}
	}
	return CredentialAccessToken
}
