package api_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transcriba/transcriba/api"
)

// tokenStore is a minimal TokenSource for pipeline tests.
type tokenStore struct {
	mu    sync.Mutex
	token string
}

func (s *tokenStore) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *tokenStore) set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

type refresherFunc func(ctx context.Context) error

func (f refresherFunc) RefreshToken(ctx context.Context) error { return f(ctx) }

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestAttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"ok":true}}`)
	}))
	defer srv.Close()

	store := &tokenStore{token: "AT1"}
	client := api.New(srv.URL, store)

	var out map[string]bool
	require.NoError(t, client.Get(context.Background(), "/api/widgets", nil, &out))
	assert.Equal(t, "Bearer AT1", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.True(t, out["ok"])
}

func TestExplicitAuthorizationHeaderWins(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{}}`)
	}))
	defer srv.Close()

	client := api.New(srv.URL, &tokenStore{token: "AT1"})
	require.NoError(t, client.Post(context.Background(), "/api/auth/logout", map[string]string{}, nil, api.WithBearer("AT-explicit")))
	assert.Equal(t, "Bearer AT-explicit", gotAuth)
}

func TestNoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{}}`)
	}))
	defer srv.Close()

	client := api.New(srv.URL, &tokenStore{})
	require.NoError(t, client.Get(context.Background(), "/api/widgets", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestTransportErrorKind(t *testing.T) {
	client := api.New("http://127.0.0.1:1", &tokenStore{}, api.WithTimeout(250*time.Millisecond))
	err := client.Get(context.Background(), "/api/widgets", nil, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.KindTransport, apiErr.Kind)
}

// Concurrent 401s trigger exactly one refresh call; every request shares its
// outcome and succeeds after the shared retry.
func TestConcurrentFailuresShareOneRefresh(t *testing.T) {
	const n = 5

	var refreshCalls int32
	var arrived int32
	release := make(chan struct{})
	store := &tokenStore{token: "AT1"}

	r := chi.NewRouter()
	r.Get("/api/widgets", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") == "Bearer AT2" {
			writeEnvelope(w, http.StatusOK, `{"success":true,"data":[1,2,3]}`)
			return
		}
		// Hold every stale-token request until all n are in flight so the
		// 401s land at the same time.
		if atomic.AddInt32(&arrived, 1) == n {
			close(release)
		}
		<-release
		writeEnvelope(w, http.StatusUnauthorized, `{"message":"Token expired"}`)
	})
	r.Post("/api/auth/refresh-token", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		time.Sleep(250 * time.Millisecond)
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"accessToken":"AT2","refreshToken":"RT2"}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.New(srv.URL, store)
	client.SetRefresher(refresherFunc(func(ctx context.Context) error {
		var out struct {
			AccessToken string `json:"accessToken"`
		}
		if err := client.Post(ctx, "/api/auth/refresh-token", map[string]string{"refreshToken": "RT1"}, &out); err != nil {
			return err
		}
		store.set(out.AccessToken)
		return nil
	}))

	var wg sync.WaitGroup
	results := make([][]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.Get(context.Background(), "/api/widgets", nil, &results[i])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []int{1, 2, 3}, results[i])
	}
}

// A 401 on an auth endpoint itself never triggers a refresh.
func TestAuthEndpointsAreExempt(t *testing.T) {
	var refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, `{"message":"invalid credentials"}`)
	}))
	defer srv.Close()

	client := api.New(srv.URL, &tokenStore{token: "AT1"})
	client.SetRefresher(refresherFunc(func(ctx context.Context) error {
		atomic.AddInt32(&refreshCalls, 1)
		return nil
	}))

	for _, path := range []string{
		"/api/auth/login",
		"/api/auth/register",
		"/api/auth/refresh-token",
		"/api/auth/forgot-password",
		"/api/auth/reset-password",
	} {
		err := client.Post(context.Background(), path, map[string]string{}, nil)
		var apiErr *api.Error
		require.ErrorAs(t, err, &apiErr, path)
		assert.Equal(t, api.KindAuth, apiErr.Kind, path)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&refreshCalls))
}

// A request that still fails after a successful refresh is not retried a
// second time.
func TestRetryHappensExactlyOnce(t *testing.T) {
	var widgetHits, refreshCalls int32
	r := chi.NewRouter()
	r.Get("/api/widgets", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&widgetHits, 1)
		writeEnvelope(w, http.StatusUnauthorized, `{"message":"Token expired"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	store := &tokenStore{token: "AT1"}
	client := api.New(srv.URL, store)
	client.SetRefresher(refresherFunc(func(ctx context.Context) error {
		atomic.AddInt32(&refreshCalls, 1)
		store.set("AT2")
		return nil
	}))

	err := client.Get(context.Background(), "/api/widgets", nil, nil)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.KindAuth, apiErr.Kind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&widgetHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
}

// When the refresh itself fails, the original error reaches the caller.
func TestFailedRefreshPropagatesOriginalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, `{"message":"Token expired"}`)
	}))
	defer srv.Close()

	client := api.New(srv.URL, &tokenStore{token: "AT1"})
	client.SetRefresher(refresherFunc(func(ctx context.Context) error {
		return errors.New("no refresh token available")
	}))

	err := client.Get(context.Background(), "/api/widgets", nil, nil)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.KindAuth, apiErr.Kind)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "Token expired", apiErr.Message)
}

// End to end: 401, refresh via the exempt endpoint, single retry succeeds.
func TestRefreshAndRetryEndToEnd(t *testing.T) {
	var widgetHits, refreshCalls int32
	store := &tokenStore{token: "AT1"}

	r := chi.NewRouter()
	r.Get("/api/widgets", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&widgetHits, 1)
		if req.Header.Get("Authorization") != "Bearer AT2" {
			writeEnvelope(w, http.StatusUnauthorized, `{"message":"Token expired"}`)
			return
		}
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":[1,2,3]}`)
	})
	r.Post("/api/auth/refresh-token", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"accessToken":"AT2","refreshToken":"RT2"}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.New(srv.URL, store)
	client.SetRefresher(refresherFunc(func(ctx context.Context) error {
		var out struct {
			AccessToken string `json:"accessToken"`
		}
		if err := client.Post(ctx, "/api/auth/refresh-token", map[string]string{"refreshToken": "RT1"}, &out); err != nil {
			return err
		}
		store.set(out.AccessToken)
		return nil
	}))

	var data []int
	require.NoError(t, client.Get(context.Background(), "/api/widgets", nil, &data))
	assert.Equal(t, []int{1, 2, 3}, data)
	assert.Equal(t, int32(2), atomic.LoadInt32(&widgetHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
}

// An error body mentioning an expired token triggers the refresh protocol
// even when the status is not 401/403.
func TestMessageTextTriggersRefresh(t *testing.T) {
	var refreshCalls int32
	store := &tokenStore{token: "AT1"}
	r := chi.NewRouter()
	r.Get("/api/widgets", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") == "Bearer AT2" {
			writeEnvelope(w, http.StatusOK, `{"success":true,"data":{}}`)
			return
		}
		writeEnvelope(w, http.StatusBadRequest, `{"message":"jwt malformed or invalid"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.New(srv.URL, store)
	client.SetRefresher(refresherFunc(func(ctx context.Context) error {
		atomic.AddInt32(&refreshCalls, 1)
		store.set("AT2")
		return nil
	}))

	require.NoError(t, client.Get(context.Background(), "/api/widgets", nil, nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls))
}

// POST bodies are replayed on retry.
func TestRetryReplaysRequestBody(t *testing.T) {
	store := &tokenStore{token: "AT1"}
	var bodies []string
	r := chi.NewRouter()
	r.Post("/api/widgets", func(w http.ResponseWriter, req *http.Request) {
		buf, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(buf))
		if req.Header.Get("Authorization") != "Bearer AT2" {
			writeEnvelope(w, http.StatusUnauthorized, `{"message":"Token expired"}`)
			return
		}
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.New(srv.URL, store)
	client.SetRefresher(refresherFunc(func(ctx context.Context) error {
		store.set("AT2")
		return nil
	}))

	require.NoError(t, client.Post(context.Background(), "/api/widgets", map[string]string{"name": "x"}, nil))
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Contains(t, bodies[1], `"name":"x"`)
}

func TestNoRefresherPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusForbidden, `{"message":"forbidden"}`)
	}))
	defer srv.Close()

	client := api.New(srv.URL, &tokenStore{token: "AT1"})
	err := client.Get(context.Background(), "/api/widgets", nil, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
}

func TestQueryParamsEncoded(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":[]}`)
	}))
	defer srv.Close()

	client := api.New(srv.URL, &tokenStore{})
	query := map[string][]string{"page": {"2"}, "status": {"done"}}
	require.NoError(t, client.Get(context.Background(), "/api/widgets", query, nil))
	assert.Equal(t, "page=2&status=done", gotQuery)
}

func TestEnvelopeFailureSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// HTTP 200 carrying a failure envelope.
		writeEnvelope(w, http.StatusOK, `{"statusCode":422,"message":"unprocessable"}`)
	}))
	defer srv.Close()

	client := api.New(srv.URL, &tokenStore{})
	err := client.Get(context.Background(), "/api/widgets", nil, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.KindValidation, apiErr.Kind)
	assert.Equal(t, 422, apiErr.Status)
	assert.Equal(t, "unprocessable", apiErr.Message)
}
