package provider_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"github.com/aussiebroadwan/identity/internal/auth/provider"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func requireBearer(t *testing.T, r *http.Request, token string) {
	t.Helper()
	require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
	require.Equal(t, provider.UserAgent, r.Header.Get("User-Agent"))
}

func TestRegistry(t *testing.T) {
	r := provider.NewRegistry(
		provider.NewGitHub(provider.GitHubConfig{}),
		provider.NewGoogle(provider.GoogleConfig{}),
	)

	a, err := r.Get(domain.ProviderGitHub)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderGitHub, a.Provider())

	_, err = r.Get(domain.ProviderDiscord)
	require.ErrorIs(t, err, provider.ErrNotConfigured)

	require.Equal(t, []domain.Provider{domain.ProviderGoogle, domain.ProviderGitHub}, r.Enabled())
}

func TestGitHubFetchIdentity(t *testing.T) {
	t.Run("public email and name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requireBearer(t, r, "gho_abc")
			require.Equal(t, "/user", r.URL.Path)
			writeJSON(w, map[string]any{"id": 583231, "login": "octocat", "name": "The Octocat", "email": "octo@example.com"})
		}))
		defer srv.Close()

		gh := provider.NewGitHub(provider.GitHubConfig{APIBase: srv.URL})
		p, err := gh.FetchIdentity(context.Background(), "gho_abc")
		require.NoError(t, err)
		require.Equal(t, domain.ExternalProfile{
			Provider:       domain.ProviderGitHub,
			ProviderUserID: "583231",
			Email:          "octo@example.com",
			DisplayName:    "The Octocat",
		}, p)
	})

	t.Run("private email falls back to primary", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/user":
				writeJSON(w, map[string]any{"id": 9, "login": "ghost", "name": nil, "email": nil})
			case "/user/emails":
				writeJSON(w, []map[string]any{
					{"email": "alt@example.com", "primary": false},
					{"email": "main@example.com", "primary": true},
				})
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		p, err := provider.NewGitHub(provider.GitHubConfig{APIBase: srv.URL}).FetchIdentity(context.Background(), "tok")
		require.NoError(t, err)
		require.Equal(t, "main@example.com", p.Email)
		require.Equal(t, "ghost", p.DisplayName)
		require.Equal(t, "9", p.ProviderUserID)
	})

	t.Run("no primary email", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/user" {
				writeJSON(w, map[string]any{"id": 9, "login": "ghost"})
				return
			}
			writeJSON(w, []map[string]any{})
		}))
		defer srv.Close()

		_, err := provider.NewGitHub(provider.GitHubConfig{APIBase: srv.URL}).FetchIdentity(context.Background(), "tok")
		require.ErrorIs(t, err, provider.ErrInfoUnavailable)
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := provider.NewGitHub(provider.GitHubConfig{APIBase: srv.URL}).FetchIdentity(context.Background(), "bad")
		require.ErrorIs(t, err, provider.ErrInfoUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		gh := provider.NewGitHub(provider.GitHubConfig{APIBase: srv.URL, Timeout: 50 * time.Millisecond})
		_, err := gh.FetchIdentity(context.Background(), "tok")
		require.ErrorIs(t, err, provider.ErrInfoUnavailable)
	})
}

func TestGitHubExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"error": "bad_verification_code"})
			return
		}
		require.Equal(t, "cid", r.PostForm.Get("client_id"))
		require.Equal(t, "csecret", r.PostForm.Get("client_secret"))
		writeJSON(w, map[string]string{"access_token": "gho_exchanged", "token_type": "bearer"})
	}))
	defer srv.Close()

	gh := provider.NewGitHub(provider.GitHubConfig{ClientID: "cid", ClientSecret: "csecret", TokenURL: srv.URL})

	tok, err := gh.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, "gho_exchanged", tok)

	_, err = gh.ExchangeCode(context.Background(), "bad-code")
	require.ErrorIs(t, err, provider.ErrExchangeFailed)

	_, err = gh.ExchangeCode(context.Background(), "")
	require.ErrorIs(t, err, provider.ErrExchangeFailed)
}

func TestDiscordFetchIdentity(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]any
		wantEmail string
		wantName  string
		wantErr   bool
	}{
		{
			name:      "legacy discriminator",
			body:      map[string]any{"id": "80351110224678912", "username": "nelly", "discriminator": "1337", "email": "nelly@example.com"},
			wantEmail: "nelly@example.com",
			wantName:  "nelly#1337",
		},
		{
			name:      "migrated username without email",
			body:      map[string]any{"id": "1", "username": "wumpus", "discriminator": "0"},
			wantEmail: "wumpus@discord.local",
			wantName:  "wumpus",
		},
		{
			name:      "null email",
			body:      map[string]any{"id": "2", "username": "clyde", "email": nil},
			wantEmail: "clyde@discord.local",
			wantName:  "clyde",
		},
		{
			name:    "missing username",
			body:    map[string]any{"id": "3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requireBearer(t, r, "dtok")
				require.Equal(t, "/users/@me", r.URL.Path)
				writeJSON(w, tt.body)
			}))
			defer srv.Close()

			p, err := provider.NewDiscord(provider.DiscordConfig{APIBase: srv.URL}).FetchIdentity(context.Background(), "dtok")
			if tt.wantErr {
				require.ErrorIs(t, err, provider.ErrInfoUnavailable)
				return
			}
			require.NoError(t, err)
			require.Equal(t, domain.ProviderDiscord, p.Provider)
			require.Equal(t, tt.wantEmail, p.Email)
			require.Equal(t, tt.wantName, p.DisplayName)
		})
	}
}

func TestDiscordExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "https://app.example/callback", r.PostForm.Get("redirect_uri"))
		require.Equal(t, "dcid", r.PostForm.Get("client_id"))
		require.Equal(t, "the-code", r.PostForm.Get("code"))
		writeJSON(w, map[string]any{"access_token": "discord-token", "token_type": "Bearer", "expires_in": 604800})
	}))
	defer srv.Close()

	d := provider.NewDiscord(provider.DiscordConfig{
		ClientID:     "dcid",
		ClientSecret: "dsecret",
		RedirectURL:  "https://app.example/callback",
		TokenURL:     srv.URL,
	})
	tok, err := d.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	require.Equal(t, "discord-token", tok)
}

func TestDiscordExchangeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := provider.NewDiscord(provider.DiscordConfig{TokenURL: srv.URL}).ExchangeCode(context.Background(), "c")
	require.ErrorIs(t, err, provider.ErrExchangeFailed)
}

func signGoogleToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestGoogleUnverified(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	g := provider.NewGoogle(provider.GoogleConfig{AllowUnverified: true})

	tok := signGoogleToken(t, key, jwt.MapClaims{"sub": "1098", "email": "g@example.com", "name": "Gee Person"})
	p, err := g.FetchIdentity(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, domain.ExternalProfile{
		Provider:       domain.ProviderGoogle,
		ProviderUserID: "1098",
		Email:          "g@example.com",
		DisplayName:    "Gee Person",
	}, p)

	tok = signGoogleToken(t, key, jwt.MapClaims{"sub": "1098", "email": "g@example.com"})
	_, err = g.FetchIdentity(context.Background(), tok)
	require.ErrorIs(t, err, provider.ErrInfoUnavailable)

	_, err = g.FetchIdentity(context.Background(), "garbage")
	require.ErrorIs(t, err, provider.ErrInfoUnavailable)

	_, err = g.ExchangeCode(context.Background(), "code")
	require.ErrorIs(t, err, provider.ErrExchangeFailed)
}

func TestGoogleUnverifiedIsOptIn(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	claims := jwt.MapClaims{"sub": "attacker-1", "email": "victim@example.com", "name": "Not Victim"}

	_, err = provider.NewGoogle(provider.GoogleConfig{}).FetchIdentity(context.Background(), signGoogleToken(t, key, claims))
	require.ErrorIs(t, err, provider.ErrInfoUnavailable)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	g := provider.NewGoogle(provider.GoogleConfig{AllowUnverified: true})
	_, err = g.FetchIdentity(context.Background(), unsigned)
	require.ErrorIs(t, err, provider.ErrInfoUnavailable)
}

func TestGoogleVerified(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	g := provider.NewGoogle(provider.GoogleConfig{
		ClientID: "client-123.apps.googleusercontent.com",
		KeySet:   &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
	})

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":   "https://accounts.google.com",
			"aud":   "client-123.apps.googleusercontent.com",
			"sub":   "42",
			"email": "v@example.com",
			"name":  "Vee",
			"iat":   time.Now().Unix(),
			"exp":   time.Now().Add(time.Hour).Unix(),
		}
	}

	p, err := g.FetchIdentity(context.Background(), signGoogleToken(t, key, base()))
	require.NoError(t, err)
	require.Equal(t, "42", p.ProviderUserID)

	bare := base()
	bare["iss"] = "accounts.google.com"
	_, err = g.FetchIdentity(context.Background(), signGoogleToken(t, key, bare))
	require.NoError(t, err)

	cases := map[string]func() string{
		"wrong signer": func() string { return signGoogleToken(t, other, base()) },
		"wrong audience": func() string {
			c := base()
			c["aud"] = "someone-else"
			return signGoogleToken(t, key, c)
		},
		"expired": func() string {
			c := base()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return signGoogleToken(t, key, c)
		},
		"foreign issuer": func() string {
			c := base()
			c["iss"] = "https://evil.example"
			return signGoogleToken(t, key, c)
		},
	}
	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := g.FetchIdentity(context.Background(), mk())
			require.ErrorIs(t, err, provider.ErrInfoUnavailable)
		})
	}
}
