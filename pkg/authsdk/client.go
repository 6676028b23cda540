package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the identity service. It covers the
// unauthenticated endpoints and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSession wraps the tokens of a successful login. It returns nil when res
// carries no tokens, as with an MFA challenge.
func (c *SDKClient) NewSession(res *AuthResponse) *Session {
	if res == nil || res.AccessToken == "" {
		return nil
	}
	s := &Session{client: c}
	s.update(res)
	return s
}
