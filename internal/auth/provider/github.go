package provider

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"golang.org/x/oauth2"
)

const (
	GitHubAPIBase  = "https://api.github.com"
	GitHubTokenURL = "https://github.com/login/oauth/access_token"
)

type GitHubConfig struct {
	ClientID     string
	ClientSecret string

	// APIBase and TokenURL default to the public GitHub endpoints.
	APIBase  string
	TokenURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// GitHub reads the authenticated user from the REST API.
type GitHub struct {
	apiBase string
	oauth   *oauth2.Config
	client  *http.Client
}

func NewGitHub(cfg GitHubConfig) *GitHub {
	if cfg.APIBase == "" {
		cfg.APIBase = GitHubAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = GitHubTokenURL
	}
	return &GitHub{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: newHTTPClient(cfg.HTTPClient, cfg.Timeout),
	}
}

func (g *GitHub) Provider() domain.Provider { return domain.ProviderGitHub }

func (g *GitHub) ExchangeCode(ctx context.Context, code string) (string, error) {
	return exchange(ctx, g.client, g.oauth, code)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

func (g *GitHub) FetchIdentity(ctx context.Context, accessToken string) (domain.ExternalProfile, error) {
	var u githubUser
	if err := getJSON(ctx, g.client, g.apiBase+"/user", accessToken, &u); err != nil {
		return domain.ExternalProfile{}, infoUnavailable(domain.ProviderGitHub, err)
	}
	if u.ID == 0 {
		return domain.ExternalProfile{}, infoUnavailable(domain.ProviderGitHub, errors.New("user has no id"))
	}

	email := u.Email
	if email == "" {
		var err error
		if email, err = g.primaryEmail(ctx, accessToken); err != nil {
			return domain.ExternalProfile{}, infoUnavailable(domain.ProviderGitHub, err)
		}
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}

	return domain.ExternalProfile{
		Provider:       domain.ProviderGitHub,
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Email:          email,
		DisplayName:    name,
	}, nil
}

// primaryEmail is used when the user keeps their email private.
func (g *GitHub) primaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, g.client, g.apiBase+"/user/emails", accessToken, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return e.Email, nil
		}
	}
	return "", errors.New("no primary email")
}
