/*
Package authsdk is the Go client for the identity service and the home of
the JSON types it shares with the server.

# Client vs Session

SDKClient covers the unauthenticated endpoints: registration, password
and external login, MFA challenge completion, refresh and health checks.
Every login call returns an AuthResponse; when RequiresMFA is set the
caller completes the login with VerifyMFALogin:

	client := authsdk.NewSDKClient("https://auth.example.com")

	res, err := client.Login(ctx, "ada@example.com", password, "")
	if err != nil {
		return err
	}
	if res.RequiresMFA {
		res, err = client.VerifyMFALogin(ctx, res.User.ID, totpCode)
	}
	session := client.NewSession(res)

A Session holds the issued tokens and refreshes the access token shortly
before it expires. Refresh tokens rotate on every refresh, so a Session
must not be shared with another process holding the same refresh token.

	setup, err := session.SetupMFA(ctx)
	err = session.EnableMFA(ctx, code)
	err = session.Logout(ctx)

# Errors

Non-2xx responses are returned as *APIError carrying the HTTP status,
a stable machine code (see the ErrorCode constants) and a message that is
safe to show to end users:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeInvalidCredentials {
		// wrong email or password
	}
*/
package authsdk
