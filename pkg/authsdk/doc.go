/*
Package authsdk is a Go client for the Gatehouse authentication service.

# SDKClient vs Session

  - SDKClient: unauthenticated operations and session creation
  - Session: authenticated operations with automatic token refresh

	client := authsdk.NewSDKClient("https://auth.example.com")

	if _, err := client.Register(ctx, "alice@example.com", "correct-horse"); err != nil {
		return err
	}

	session, err := client.AuthenticateWithPassword(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		return err
	}
	defer session.Logout(ctx)

	me, err := session.Me(ctx)

# Refresh

A Session refreshes its access token shortly before it expires
(SDKClient.RefreshLeeway). Every refresh rotates the refresh token, and the
service treats a reused refresh token as stolen: it revokes the whole session.
Share a single *Session between goroutines instead of copying its tokens.

Once the service rejects the refresh token the Session reports Closed and
every call returns ErrSessionClosed. Log in again to continue.

# Errors

Failed requests return *APIError carrying the HTTP status and the service's
error code:

	_, err := client.Login(ctx, email, password)
	if authsdk.IsCode(err, authsdk.ErrorCodeInvalidCredentials) {
		// wrong email or password
	}
	if authsdk.IsRetryable(err) {
		// rate limited or the token store is down
	}

# Administration

Admin calls need the matching permission on the caller's roles, e.g.
revoke:tokens for RevokeTokens or assign:roles for AssignRole.
*/
package authsdk
