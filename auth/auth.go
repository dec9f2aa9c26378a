// Package auth orchestrates the session lifecycle: login, registration,
// logout, profile fetch, password recovery, and the silent token refresh
// invoked by the request pipeline. All observable state lives in
// session.State; tokens live in credstore.Store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/transcriba/transcriba/api"
	"github.com/transcriba/transcriba/credstore"
	"github.com/transcriba/transcriba/session"
)

// Backend endpoints.
const (
	endpointLogin          = "/api/auth/login"
	endpointRegister       = "/api/auth/register"
	endpointLogout         = "/api/auth/logout"
	endpointRefreshToken   = "/api/auth/refresh-token"
	endpointResetPassword  = "/api/auth/reset-password"
	endpointForgotPassword = "/api/auth/forgot-password"
	endpointProfile        = "/api/user/profile"
)

// User-facing messages. Credential and form failures ship in the product's
// Spanish voice; the rest match the backend's English messages.
const (
	msgInvalidCredentials = "Correo o contraseña incorrectos"
	msgServerError        = "Error del servidor. Inténtalo más tarde."
	msgInvalidEmail       = "Ingresa un email válido"
	msgFormErrors         = "Hay errores en el formulario"
	msgRegistrationFailed = "Registration failed"
	msgProfileFailed      = "Failed to load profile"
	msgResetFailed        = "Password reset failed"
	msgForgotFailed       = "Failed to send reset email"
)

// ErrNoRefreshToken is returned by RefreshToken when no refresh token is
// stored. Session state is left untouched in that case.
var ErrNoRefreshToken = errors.New("no refresh token available")

// Manager is the auth session manager. Safe for concurrent use; distinct
// operations do not serialize against each other and the last state write
// wins, matching the product's behavior.
type Manager struct {
	api    *api.Client
	store  *credstore.Store
	state  *session.State
	logger *slog.Logger

	profileFetch atomic.Bool
}

var _ api.Refresher = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. If not set, a JSON logger writing
// to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a Manager and checks the credential store: when a token is
// already present, the session is optimistically marked authenticated
// before any backend verification. Callers typically follow up with
// EnsureProfile once the pipeline's refresher is wired.
func New(client *api.Client, store *credstore.Store, state *session.State, opts ...Option) *Manager {
	m := &Manager{api: client, store: store, state: state}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	m.logger = m.logger.With("component", "auth")

	if _, ok := store.AccessToken(); ok {
		state.SetAuthenticated(true)
	}
	return m
}

// Login exchanges credentials for a token pair, persists it with the
// requested durability, and marks the session authenticated.
func (m *Manager) Login(ctx context.Context, req LoginRequest) error {
	m.state.SetLoading(true)
	m.state.ClearError()
	defer m.state.SetLoading(false)

	var payload authPayload
	if err := m.api.Post(ctx, endpointLogin, req, &payload); err != nil {
		msg := msgInvalidCredentials
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status >= 500 {
			msg = msgServerError
		}
		m.state.SetError(msg)
		return fmt.Errorf("%s: %w", msg, err)
	}

	if err := m.store.Save(payload.AccessToken, payload.RefreshToken, req.RememberMe); err != nil {
		m.state.SetError(msgInvalidCredentials)
		return fmt.Errorf("persisting tokens: %w", err)
	}
	m.state.UpdateUser(payload.User.toSession())
	m.state.SetAuthenticated(true)
	return nil
}

// Register creates an account. Registration does not log the user in; on
// success the created user summary is returned and session state is left
// untouched.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	m.state.SetLoading(true)
	m.state.ClearError()
	defer m.state.SetLoading(false)

	var out RegisterResponse
	if err := m.api.Post(ctx, endpointRegister, req, &out); err != nil {
		msg := registerMessage(err)
		m.state.SetError(msg)
		// Wrap rather than replace so callers can still reach the
		// structured issues for field-level display.
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	return &out, nil
}

// registerMessage maps a registration failure to its user-facing text.
func registerMessage(err error) string {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return msgRegistrationFailed
	}
	if len(apiErr.Issues) > 0 {
		var emailIssue *api.Issue
		for i := range apiErr.Issues {
			if apiErr.Issues[i].HasPath("email") {
				emailIssue = &apiErr.Issues[i]
				break
			}
		}
		if emailIssue != nil && (emailIssue.Validation == "email" || emailIssue.Code == "invalid_string") {
			return msgInvalidEmail
		}
		return msgFormErrors
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return msgRegistrationFailed
}

// Logout invalidates the server-side session best-effort, then
// unconditionally clears the credential store and resets session state.
// Never fails from the caller's point of view.
func (m *Manager) Logout(ctx context.Context) error {
	m.state.SetLoading(true)
	defer m.state.SetLoading(false)

	var opts []api.RequestOption
	if token, ok := m.store.AccessToken(); ok {
		opts = append(opts, api.WithBearer(token))
	}
	if err := m.api.Post(ctx, endpointLogout, struct{}{}, nil, opts...); err != nil {
		m.logger.Warn("logout API call failed", slog.String("error", err.Error()))
	}

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("clearing credentials failed", slog.String("error", err.Error()))
	}
	m.state.Reset()
	return nil
}

// RefreshToken exchanges the stored refresh token for a new pair. Invoked
// silently by the request pipeline, so it never sets a user-facing error.
// Any failure beyond a missing refresh token ends the session.
func (m *Manager) RefreshToken(ctx context.Context) error {
	m.state.SetLoading(true)
	defer m.state.SetLoading(false)

	creds, err := m.store.Read()
	if err != nil || creds.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	var payload authPayload
	if err := m.api.Post(ctx, endpointRefreshToken, refreshRequest{RefreshToken: creds.RefreshToken}, &payload); err != nil {
		if cerr := m.store.Clear(); cerr != nil {
			m.logger.Warn("clearing credentials failed", slog.String("error", cerr.Error()))
		}
		m.state.Reset()
		return fmt.Errorf("refreshing token: %w", err)
	}

	// The remember-me duration is not re-derived here; the new pair goes
	// to the session scope.
	if err := m.store.Save(payload.AccessToken, payload.RefreshToken, false); err != nil {
		m.store.Clear()
		m.state.Reset()
		return fmt.Errorf("persisting refreshed tokens: %w", err)
	}
	m.state.UpdateUser(payload.User.toSession())
	m.state.SetAuthenticated(true)
	return nil
}

// GetProfile fetches the current user's profile. A failure sets an error
// message but does not log the user out.
func (m *Manager) GetProfile(ctx context.Context) error {
	m.state.SetLoading(true)
	m.state.ClearError()
	defer m.state.SetLoading(false)

	var opts []api.RequestOption
	if token, ok := m.store.AccessToken(); ok {
		opts = append(opts, api.WithBearer(token))
	}
	var dto profileDTO
	if err := m.api.Get(ctx, endpointProfile, nil, &dto, opts...); err != nil {
		msg := msgProfileFailed
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		m.state.SetError(msg)
		return fmt.Errorf("%s: %w", msg, err)
	}

	m.state.UpdateUser(dto.toSession())
	return nil
}

// EnsureProfile fetches the profile in the background unless one is
// already loaded or a fetch is in flight. Calling it repeatedly settles
// to the same observable state as calling it once.
func (m *Manager) EnsureProfile(ctx context.Context) {
	if m.state.User() != nil {
		return
	}
	if !m.profileFetch.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.profileFetch.Store(false)
		if err := m.GetProfile(ctx); err != nil {
			m.logger.Debug("background profile fetch failed", slog.String("error", err.Error()))
		}
	}()
}

// ForgotPassword requests a password-reset email. A "user not found"
// response is reported as success so account existence cannot be probed.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	m.state.SetLoading(true)
	m.state.ClearError()
	defer m.state.SetLoading(false)

	err := m.api.Post(ctx, endpointForgotPassword, forgotPasswordRequest{Email: email}, nil)
	if err == nil {
		return nil
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusNotFound || strings.Contains(strings.ToLower(apiErr.Message), "not found") {
			return nil
		}
	}
	msg := msgForgotFailed
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	m.state.SetError(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// ResetPassword sets a new password using the emailed reset token.
func (m *Manager) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	m.state.SetLoading(true)
	m.state.ClearError()
	defer m.state.SetLoading(false)

	if err := m.api.Post(ctx, endpointResetPassword, req, nil); err != nil {
		msg := msgResetFailed
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		m.state.SetError(msg)
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}

// TokenExpiry parses the stored access token without verifying its
// signature and returns the expiry claim, if one is present.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	token, ok := m.store.AccessToken()
	if !ok {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
