package stubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/transcriba/transcriba/internal/util"
	"github.com/transcriba/transcriba/internal/uuid"
)

type contextKey string

const userIDKey contextKey = "userID"

type credentialsRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.RLock()
	id, ok := s.usersByEmail[req.Email]
	var u *user
	if ok {
		u = s.users[id]
	}
	s.mu.RUnlock()
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	match, err := util.CompareArgon2idKey(req.Password, u.Salt, util.DefaultArgon2idParams(), u.Key)
	if err != nil || !match {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.issueTokens(w, u)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var issues []issue
	if _, err := mail.ParseAddress(req.Email); err != nil {
		issues = append(issues, issue{
			Path: []any{"email"}, Validation: "email", Code: "invalid_string",
			Message: "Invalid email",
		})
	}
	if len(req.Password) < 8 {
		issues = append(issues, issue{
			Path: []any{"password"}, Code: "too_small",
			Message: "Password must be at least 8 characters",
		})
	}
	if strings.TrimSpace(req.FirstName) == "" {
		issues = append(issues, issue{
			Path: []any{"firstName"}, Code: "too_small",
			Message: "First name is required",
		})
	}
	if len(issues) > 0 {
		writeIssues(w, issues)
		return
	}

	s.mu.RLock()
	_, exists := s.usersByEmail[req.Email]
	s.mu.RUnlock()
	if exists {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}

	id, err := s.Seed(req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	s.logger.Info("user registered", slog.String("user_id", id))

	writeData(w, http.StatusCreated, map[string]string{
		"id": id, "email": req.Email,
		"firstName": req.FirstName, "lastName": req.LastName,
	})
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	id, ok := s.refreshTokens[req.RefreshToken]
	if ok {
		// Rotation: a refresh token is single use.
		delete(s.refreshTokens, req.RefreshToken)
	}
	u := s.users[id]
	s.mu.Unlock()

	if !ok || u == nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	s.issueTokens(w, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(userIDKey).(string)

	s.mu.Lock()
	for token, owner := range s.refreshTokens {
		if owner == id {
			delete(s.refreshTokens, token)
		}
	}
	s.mu.Unlock()

	writeData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	id, ok := s.usersByEmail[req.Email]
	var token string
	if ok {
		token = uuid.New()
		s.resetTokens[token] = id
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	// A real backend emails the token; the stub logs it so manual flows
	// can complete.
	s.logger.Info("password reset requested",
		slog.String("email", req.Email), slog.String("token", token))
	writeData(w, http.StatusOK, map[string]string{"message": "Reset email sent"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Password) < 8 {
		writeIssues(w, []issue{{
			Path: []any{"password"}, Code: "too_small",
			Message: "Password must be at least 8 characters",
		}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resetTokens[req.Token]
	u := s.users[id]
	if !ok || u == nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	delete(s.resetTokens, req.Token)

	salt, err := util.RandomBytes(16)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}
	key, err := util.DeriveArgon2idKey(req.Password, salt, util.DefaultArgon2idParams())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}
	u.Salt, u.Key = salt, key

	writeData(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(userIDKey).(string)

	s.mu.RLock()
	u := s.users[id]
	s.mu.RUnlock()
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeData(w, http.StatusOK, map[string]string{
		"id": u.ID, "email": u.Email,
		"firstName": u.FirstName, "lastName": u.LastName,
	})
}

// issueTokens signs a fresh access token, records a rotating refresh token,
// and writes the auth payload.
func (s *Server) issueTokens(w http.ResponseWriter, u *user) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign token")
		return
	}

	refresh := uuid.New()
	s.mu.Lock()
	s.refreshTokens[refresh] = u.ID
	s.mu.Unlock()

	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	writeData(w, http.StatusOK, map[string]any{
		"user": map[string]string{
			"id": u.ID, "email": u.Email, "name": name,
		},
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

// authMiddleware validates the bearer token. Expired tokens answer with
// the message the client pipeline sniffs for.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "jwt expired")
				return
			}
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("jwt invalid: %v", err))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
