package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
	"golang.org/x/oauth2"
)

const (
	DiscordAPIBase  = "https://discord.com/api"
	DiscordTokenURL = "https://discord.com/api/oauth2/token"

	// discordEmailDomain backs placeholder addresses for accounts that do
	// not share an email.
	discordEmailDomain = "discord.local"
)

type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	APIBase  string
	TokenURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

type Discord struct {
	apiBase string
	oauth   *oauth2.Config
	client  *http.Client
}

func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.APIBase == "" {
		cfg.APIBase = DiscordAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DiscordTokenURL
	}
	return &Discord{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: newHTTPClient(cfg.HTTPClient, cfg.Timeout),
	}
}

func (d *Discord) Provider() domain.Provider { return domain.ProviderDiscord }

func (d *Discord) ExchangeCode(ctx context.Context, code string) (string, error) {
	return exchange(ctx, d.client, d.oauth, code)
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Email         string `json:"email"`
}

func (d *Discord) FetchIdentity(ctx context.Context, accessToken string) (domain.ExternalProfile, error) {
	var u discordUser
	if err := getJSON(ctx, d.client, d.apiBase+"/users/@me", accessToken, &u); err != nil {
		return domain.ExternalProfile{}, infoUnavailable(domain.ProviderDiscord, err)
	}
	if u.ID == "" || u.Username == "" {
		return domain.ExternalProfile{}, infoUnavailable(domain.ProviderDiscord, errors.New("missing id or username"))
	}

	email := u.Email
	if email == "" {
		email = u.Username + "@" + discordEmailDomain
	}

	// Accounts migrated to unique usernames report discriminator "0".
	name := u.Username
	if u.Discriminator != "" && u.Discriminator != "0" {
		name = u.Username + "#" + u.Discriminator
	}

	return domain.ExternalProfile{
		Provider:       domain.ProviderDiscord,
		ProviderUserID: u.ID,
		Email:          email,
		DisplayName:    name,
	}, nil
}
