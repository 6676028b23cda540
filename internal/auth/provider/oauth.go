package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// exchange runs an authorization_code grant against conf's token endpoint
// and returns the bare access token.
func exchange(ctx context.Context, client *http.Client, conf *oauth2.Config, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: empty code", ErrExchangeFailed)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, errors.New("response has no access_token"))
	}
	return tok.AccessToken, nil
}
