package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the Gatehouse authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// RefreshLeeway is how long before access token expiry a Session
	// refreshes proactively.
	RefreshLeeway time.Duration
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		RefreshLeeway: 30 * time.Second,
	}
}

// Register creates an account. It does not sign the user in.
func (c *SDKClient) Register(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/register", credentialsRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a token pair.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/login", credentialsRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := decodeJSON(resp, &login, http.StatusOK); err != nil {
		return nil, err
	}
	return &login, nil
}

// Refresh rotates a refresh token. The presented token is spent whether or
// not the caller receives the answer; presenting it again ends the session.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/refresh", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// AuthenticateWithPassword logs in and wraps the result in a Session.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error) {
	login, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, login.TokenResponse), nil
}

// AuthenticateWithRefreshToken creates an authenticated session from an existing refresh token.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokens, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, *tokens), nil
}

// NewSessionFromTokens creates an authenticated session from existing tokens,
// e.g. ones restored from storage. It still refreshes automatically.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int64) *Session {
	return newSession(c, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// RequestPasswordReset asks for a reset email. The service accepts the
// request whether or not the account exists.
func (c *SDKClient) RequestPasswordReset(ctx context.Context, email string) error {
	resp, err := c.postJSON(ctx, "/v1/auth/password/forgot", forgotPasswordRequest{Email: email})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ResetPassword sets a new password with the token from the reset email.
// Every open session of the account is ended.
func (c *SDKClient) ResetPassword(ctx context.Context, token, newPassword string) error {
	resp, err := c.postJSON(ctx, "/v1/auth/password/reset", resetPasswordRequest{Token: token, NewPassword: newPassword})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
