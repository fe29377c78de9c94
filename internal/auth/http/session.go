package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// SessionHandler serves the unauthenticated credential endpoints and logout.
type SessionHandler struct {
	Session *service.SessionService
}

// HandleRegister creates an account.
//
//	@Summary		Register
//	@Description	Creates an account and sends a welcome email. Registration does not sign the user in.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CredentialsRequest	true	"New account"
//	@Success		201		{object}	domain.PublicUser
//	@Failure		400		{object}	httpx.ErrorResponse	"Malformed email or short password"
//	@Failure		409		{object}	httpx.ErrorResponse	"Email already registered"
//	@Failure		429		{object}	httpx.ErrorResponse
//	@Router			/v1/auth/register [post]
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if !validEmail(req.Email) {
		invalidRequest(w, "email is invalid")
		return
	}
	if len(req.Password) < MinPasswordLength {
		invalidRequest(w, "password is too short")
		return
	}

	user, err := h.Session.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, user)
}

// HandleLogin exchanges credentials for a token pair.
//
//	@Summary		Login
//	@Description	Verifies email and password and opens a new session. Unknown emails and wrong passwords fail identically.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CredentialsRequest	true	"Credentials"
//	@Success		200		{object}	domain.LoginResult
//	@Failure		400		{object}	httpx.ErrorResponse
//	@Failure		401		{object}	httpx.ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	httpx.ErrorResponse
//	@Router			/v1/auth/login [post]
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		invalidRequest(w, "email and password are required")
		return
	}

	res, err := h.Session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandleRefresh rotates a refresh token.
//
//	@Summary		Refresh
//	@Description	Exchanges a refresh token for a new pair. Each refresh token is single use and presenting a spent one ends the whole session.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	domain.TokenPair
//	@Failure		400		{object}	httpx.ErrorResponse
//	@Failure		401		{object}	httpx.ErrorResponse	"Invalid, expired or reused refresh token"
//	@Failure		503		{object}	httpx.ErrorResponse	"Token store unavailable"
//	@Router			/v1/auth/refresh [post]
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if req.RefreshToken == "" {
		invalidRequest(w, "refresh_token is required")
		return
	}

	pair, err := h.Session.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// HandleLogout revokes the calling access token and, when given, the session
// behind the refresh token.
//
//	@Summary		Logout
//	@Tags			Session
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	LogoutRequest	false	"Refresh token of the session to end"
//	@Success		204
//	@Failure		401	{object}	httpx.ErrorResponse
//	@Router			/v1/auth/logout [post]
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := httpx.PrincipalFrom(ctx)
	if !ok {
		writeServiceError(w, r, service.ErrInvalidToken)
		return
	}

	var req LogoutRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			invalidRequest(w, err.Error())
			return
		}
	}

	var expiry time.Time
	if p.Claims.ExpiresAt != nil {
		expiry = p.Claims.ExpiresAt.Time
	}
	if err := h.Session.Logout(ctx, p.Claims.ID, expiry, req.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleForgotPassword starts a password reset.
//
//	@Summary		Forgot password
//	@Description	Emails a single-use reset link. Always answers 202 so the endpoint cannot be used to probe for accounts.
//	@Tags			Password
//	@Accept			json
//	@Param			request	body	ForgotPasswordRequest	true	"Account email"
//	@Success		202
//	@Failure		400	{object}	httpx.ErrorResponse
//	@Failure		429	{object}	httpx.ErrorResponse
//	@Router			/v1/auth/password/forgot [post]
func (h *SessionHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		invalidRequest(w, "email is required")
		return
	}

	err := h.Session.RequestPasswordReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, service.ErrUserNotFound) {
		slogx.FromContext(r.Context()).Error("password reset request failed", slog.Any("err", err))
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleResetPassword completes a password reset.
//
//	@Summary		Reset password
//	@Description	Sets a new password using the token from the reset email. Every open session of the account is ended.
//	@Tags			Password
//	@Accept			json
//	@Param			request	body	ResetPasswordRequest	true	"Reset token and new password"
//	@Success		204
//	@Failure		400	{object}	httpx.ErrorResponse	"Invalid, expired or used token"
//	@Failure		429	{object}	httpx.ErrorResponse
//	@Router			/v1/auth/password/reset [post]
func (h *SessionHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		invalidRequest(w, err.Error())
		return
	}
	if req.Token == "" {
		invalidRequest(w, "token is required")
		return
	}
	if len(req.NewPassword) < MinPasswordLength {
		invalidRequest(w, "password is too short")
		return
	}

	if err := h.Session.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
