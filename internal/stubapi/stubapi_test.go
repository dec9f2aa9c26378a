package stubapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, url string, body any) (*http.Response, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestRegisterValidation(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	resp, env := postJSON(t, srv.URL+"/api/auth/register", map[string]string{
		"email": "not-an-email", "password": "short", "firstName": "", "lastName": "X",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)

	errObj, ok := env.Error.(map[string]any)
	require.True(t, ok)
	issues, ok := errObj["issues"].([]any)
	require.True(t, ok)
	assert.Len(t, issues, 3)
}

func TestLoginWrongPassword(t *testing.T) {
	s := New()
	_, err := s.Seed("ana@example.com", "supersecret", "Ana", "Pérez")
	require.NoError(t, err)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	resp, env := postJSON(t, srv.URL+"/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", env.Message)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	s := New()
	_, err := s.Seed("ana@example.com", "supersecret", "Ana", "Pérez")
	require.NoError(t, err)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	_, env := postJSON(t, srv.URL+"/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "supersecret",
	})
	data := env.Data.(map[string]any)
	refresh := data["refreshToken"].(string)

	resp, _ := postJSON(t, srv.URL+"/api/auth/refresh-token", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The rotated-out token no longer works.
	resp, _ = postJSON(t, srv.URL+"/api/auth/refresh-token", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForgotAndResetPassword(t *testing.T) {
	s := New()
	_, err := s.Seed("ana@example.com", "oldsecret123", "Ana", "Pérez")
	require.NoError(t, err)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	resp, _ := postJSON(t, srv.URL+"/api/auth/forgot-password", map[string]string{"email": "ana@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.mu.RLock()
	var token string
	for tok := range s.resetTokens {
		token = tok
	}
	s.mu.RUnlock()
	require.NotEmpty(t, token)

	resp, _ = postJSON(t, srv.URL+"/api/auth/reset-password", map[string]string{
		"token": token, "password": "newsecret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "oldsecret123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = postJSON(t, srv.URL+"/api/auth/login", map[string]string{
		"email": "ana@example.com", "password": "newsecret123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	resp, env := postJSON(t, srv.URL+"/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", env.Message)
}
