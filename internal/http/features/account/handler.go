// Package account serves registration and the two-step password + one-time
// code login.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/pawfinder/internal/httputil"
	"github.com/tendant/pawfinder/internal/notification"
	"github.com/tendant/pawfinder/pkg/auth"
	"github.com/tendant/pawfinder/pkg/domain"
)

// Handler handles account endpoints.
type Handler struct {
	logger         *slog.Logger
	credentials    *auth.CredentialStore
	codes          *auth.CodeIssuer
	sessionService *auth.SessionService
	sender         notification.Sender
	sendTimeout    time.Duration
	cookieConfig   httputil.CookieConfig
}

// NewHandler creates a new account handler. Login codes are delivered
// synchronously through sender, bounded by sendTimeout.
func NewHandler(
	logger *slog.Logger,
	credentials *auth.CredentialStore,
	codes *auth.CodeIssuer,
	sessionService *auth.SessionService,
	sender notification.Sender,
	sendTimeout time.Duration,
	cookieConfig httputil.CookieConfig,
) *Handler {
	if sendTimeout <= 0 {
		sendTimeout = notification.DefaultTimeout
	}
	return &Handler{
		logger:         logger,
		credentials:    credentials,
		codes:          codes,
		sessionService: sessionService,
		sender:         sender,
		sendTimeout:    sendTimeout,
		cookieConfig:   cookieConfig,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest represents the first login step.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyOTPRequest represents the second login step.
type VerifyOTPRequest struct {
	Username string `json:"username"`
	OTP      string `json:"otp"`
}

// LoginResponse is returned once a code has been sent.
type LoginResponse struct {
	AccountID int64  `json:"accountId"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Username  string `json:"username"`
}

// VerifyOTPResponse carries the session token issued after a valid code.
type VerifyOTPResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	AccountID   int64  `json:"accountId"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Register creates an account.
// POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" ||
		req.Password == "" || req.ConfirmPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if req.Password != req.ConfirmPassword {
		httputil.Error(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	accountID, err := h.credentials.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUsernameAlreadyExists):
			httputil.Error(w, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, domain.ErrEmailAlreadyExists):
			httputil.Error(w, http.StatusBadRequest, "Email already registered")
		case errors.Is(err, domain.ErrMissingField),
			errors.Is(err, domain.ErrInvalidUsername),
			errors.Is(err, domain.ErrInvalidEmail),
			errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"accountId": accountID,
		"message":   "Registration successful",
	})
}

// Login checks the password and e-mails a one-time code.
// POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		statusError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.credentials.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			statusError(w, http.StatusUnauthorized, "Invalid Username or Password.")
			return
		}
		h.logger.Error("login failed", "error", err)
		statusError(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	code, _, err := h.codes.Issue(account.Username)
	if err != nil {
		h.logger.Error("failed to issue login code", "account_id", account.ID, "error", err)
		statusError(w, http.StatusInternalServerError, "Failed to send OTP.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.sendTimeout)
	defer cancel()
	if err := h.sender.Send(ctx, notification.OTPMessage(account.Email, code, h.codes.TTL())); err != nil {
		h.logger.Error("failed to send login code", "account_id", account.ID, "error", err)
		statusError(w, http.StatusInternalServerError, "Failed to send OTP.")
		return
	}

	h.logger.Info("login code sent", "account_id", account.ID)
	httputil.JSON(w, http.StatusOK, LoginResponse{
		AccountID: account.ID,
		UserID:    account.ID,
		Status:    "success",
		Message:   "OTP sent to your email.",
		Username:  account.Username,
	})
}

// VerifyOTP consumes a one-time code and issues a session.
// POST /verify_otp
//
// Browser clients also get the token as an HttpOnly cookie. Clients sending
// X-Client-Type: mobile get it only in the body.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		statusError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.codes.Verify(req.Username, strings.TrimSpace(req.OTP)); err != nil {
		switch {
		case errors.Is(err, domain.ErrOTPNotFound):
			statusError(w, http.StatusBadRequest, "No OTP found. Please login first.")
		case errors.Is(err, domain.ErrOTPExpired):
			statusError(w, http.StatusBadRequest, "OTP expired.")
		default:
			statusError(w, http.StatusBadRequest, "Invalid OTP.")
		}
		return
	}

	account, err := h.credentials.GetByUsername(r.Context(), req.Username)
	if err != nil {
		h.logger.Error("verified code for unknown account", "error", err)
		statusError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	tokens, err := h.sessionService.IssueSession(account)
	if err != nil {
		h.logger.Error("failed to issue session", "account_id", account.ID, "error", err)
		statusError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	if !httputil.IsMobileClient(r) {
		httputil.SetAccessTokenCookie(w, tokens.AccessToken, h.sessionService.AccessTokenTTL(), h.cookieConfig)
	}

	httputil.JSON(w, http.StatusOK, VerifyOTPResponse{
		Status:      "success",
		Message:     "OTP verified.",
		AccountID:   account.ID,
		AccessToken: tokens.AccessToken,
		TokenType:   tokens.TokenType,
		ExpiresIn:   tokens.ExpiresIn,
	})
}

// Logout clears the session cookie. Bearer tokens simply expire.
// POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearAccessTokenCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// statusError writes the {status, message} envelope the desktop client reads,
// with the message repeated under "error".
func statusError(w http.ResponseWriter, status int, message string) {
	httputil.JSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
		"error":   message,
	})
}
