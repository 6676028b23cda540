// Package provider adapts external identity providers to a single
// normalized profile shape.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/identity/internal/auth/domain"
)

var (
	ErrInfoUnavailable = errors.New("provider_info_unavailable")
	ErrExchangeFailed  = errors.New("exchange_failed")
	ErrNotConfigured   = errors.New("provider_not_configured")
)

// DefaultTimeout bounds every call to a provider.
const DefaultTimeout = 10 * time.Second

// UserAgent is sent on every provider API call. GitHub rejects requests
// without one.
const UserAgent = "Demo-Auth-App"

// Adapter turns provider credentials into a normalized profile.
type Adapter interface {
	Provider() domain.Provider

	// ExchangeCode trades an authorization code for an access token.
	ExchangeCode(ctx context.Context, code string) (string, error)

	// FetchIdentity resolves an access token (or, for Google, an ID token)
	// to the user it was issued for.
	FetchIdentity(ctx context.Context, accessToken string) (domain.ExternalProfile, error)
}

// Registry holds the adapters enabled for this process.
type Registry struct {
	adapters map[domain.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Get returns the adapter for p, or ErrNotConfigured.
func (r *Registry) Get(p domain.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, p)
	}
	return a, nil
}

// Enabled lists the configured providers in a stable order.
func (r *Registry) Enabled() []domain.Provider {
	var out []domain.Provider
	for _, p := range domain.Providers() {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func newHTTPClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON performs an authenticated GET and decodes a 200 response into out.
func getJSON(ctx context.Context, client *http.Client, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}

func infoUnavailable(p domain.Provider, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInfoUnavailable, p, err)
}
