package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrSessionClosed is returned by a Session after Logout or after its refresh
// token was rejected.
var ErrSessionClosed = errors.New("authsdk: session closed")

// Session represents an authenticated session with automatic token refresh.
//
// Refresh tokens are single use, so a Session must not be copied: two
// holders rotating the same token look like theft to the service and end
// the session for both.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	closed       bool
}

// newSession creates a new authenticated session from a token response.
func newSession(client *SDKClient, tokens TokenResponse) *Session {
	s := &Session{client: client}
	s.setTokens(tokens)
	return s
}

// setTokens stores a pair. Callers hold mu, or own s exclusively.
func (s *Session) setTokens(tokens TokenResponse) {
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().
		Add(time.Duration(tokens.ExpiresIn) * time.Second).
		Add(-s.client.RefreshLeeway)
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return "", ErrSessionClosed
	}
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited
	if s.closed {
		return "", ErrSessionClosed
	}
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return fmt.Errorf("access token expired and no refresh token available")
	}

	tokens, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		// The family is gone server side; nothing left to retry with
		if IsUnauthorized(err) {
			s.closed = true
		}
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.setTokens(*tokens)
	return nil
}

// Refresh rotates the token pair now regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	return s.refreshLocked(ctx)
}

// Logout revokes the current access token and ends the refresh family. The
// Session is unusable afterwards even if the call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	resp, err := s.doAuthJSON(ctx, http.MethodPost, "/v1/auth/logout", logoutRequest{RefreshToken: refreshToken})

	s.mu.Lock()
	s.closed = true
	s.accessToken, s.refreshToken = "", ""
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
