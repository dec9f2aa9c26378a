package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/transcriba/transcriba/internal/uuid"
)

// maxSniffSize bounds how much of an error body is read when deciding
// whether a response is an authorization failure.
const maxSniffSize = 64 << 10

// TokenSource supplies the current access token for outgoing requests.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Refresher performs one token refresh. Implemented by the auth manager and
// injected after construction to break the client/manager cycle.
type Refresher interface {
	RefreshToken(ctx context.Context) error
}

// authEndpoints never trigger refresh-and-retry; a 401 from the refresh
// endpoint itself must not start another refresh.
var authEndpoints = []string{
	"/api/auth/login",
	"/api/auth/refresh-token",
	"/api/auth/forgot-password",
	"/api/auth/reset-password",
	"/api/auth/register",
}

func isAuthEndpoint(path string) bool {
	for _, e := range authEndpoints {
		if strings.Contains(path, e) {
			return true
		}
	}
	return false
}

// authTransport is the authenticated-request pipeline. It attaches the
// bearer token to outgoing requests and, on an authorization failure,
// triggers at most one concurrent refresh and retries the original request
// exactly once.
type authTransport struct {
	base   http.RoundTripper
	tokens TokenSource
	gate   *refreshGate
	logger *slog.Logger

	mu        sync.RWMutex
	refresher Refresher
}

func (t *authTransport) setRefresher(r Refresher) {
	t.mu.Lock()
	t.refresher = r
	t.mu.Unlock()
}

func (t *authTransport) currentRefresher() Refresher {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.refresher
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get("X-Request-Id") == "" {
		out.Header.Set("X-Request-Id", uuid.New())
	}
	// The token is read fresh at send time; an explicit Authorization
	// header always wins.
	if t.tokens != nil && out.Header.Get("Authorization") == "" {
		if token, ok := t.tokens.AccessToken(); ok {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if isAuthEndpoint(req.URL.Path) {
		return resp, nil
	}

	failed, resp := isAuthFailure(resp)
	if !failed {
		return resp, nil
	}

	refresher := t.currentRefresher()
	if refresher == nil {
		return resp, nil
	}

	// The refresh outlives any single caller; detach it from the
	// triggering request's cancellation.
	refreshCtx := context.WithoutCancel(req.Context())
	if rerr := t.gate.do(refreshCtx, refresher.RefreshToken); rerr != nil {
		t.logger.Debug("token refresh failed, propagating original error",
			slog.String("path", req.URL.Path), slog.String("error", rerr.Error()))
		return resp, nil
	}

	retry, ok := t.retryRequest(req)
	if !ok {
		return resp, nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	t.logger.Debug("retrying request after token refresh", slog.String("path", req.URL.Path))
	return t.base.RoundTrip(retry)
}

// retryRequest clones the original request with a replayed body and the
// freshly stored access token.
func (t *authTransport) retryRequest(req *http.Request) (*http.Request, bool) {
	retry := req.Clone(req.Context())
	if req.Body != nil {
		if req.GetBody == nil {
			return nil, false
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, false
		}
		retry.Body = body
	}
	if t.tokens != nil {
		if token, ok := t.tokens.AccessToken(); ok {
			retry.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return retry, true
}

// isAuthFailure reports whether the response is an authorization failure:
// a 401/403 status, or any error status whose body message mentions an
// expired or invalid token. The body is re-wrapped so the caller can still
// read it in full.
func isAuthFailure(resp *http.Response) (bool, *http.Response) {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return true, resp
	}
	if resp.StatusCode < 400 {
		return false, resp
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSniffSize))
	resp.Body = rewindBody(raw, resp.Body)
	if err != nil {
		return false, resp
	}
	var probe struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &probe)
	msg := strings.ToLower(probe.Message)
	return strings.Contains(msg, "expired") || strings.Contains(msg, "invalid"), resp
}

type replayedBody struct {
	io.Reader
	io.Closer
}

func rewindBody(read []byte, rest io.ReadCloser) io.ReadCloser {
	return replayedBody{
		Reader: io.MultiReader(bytes.NewReader(read), rest),
		Closer: rest,
	}
}
