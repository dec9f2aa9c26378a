// Package api is the HTTP client for the Transcriba backend. Every request
// flows through the authenticated-request pipeline: bearer attach, envelope
// decoding, and single-flight refresh-and-retry on authorization failures.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const maxResponseSize = 16 << 20

// Client talks to the backend API.
type Client struct {
	baseURL   string
	http      *http.Client
	transport *authTransport
	logger    *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the structured logger. If not set, a JSON logger writing
// to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBaseTransport sets the underlying round tripper wrapped by the
// pipeline. Mainly useful in tests.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport.base = rt
	}
}

// WithTimeout sets the overall per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a Client for the given base URL. The token source is read
// fresh on every outgoing request.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	transport := &authTransport{
		base:   http.DefaultTransport,
		tokens: tokens,
		gate:   newRefreshGate(),
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		http:      &http.Client{Transport: transport},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	transport.logger = c.logger.With("component", "api")
	return c
}

// SetRefresher installs the refresher used by the pipeline. Wired after
// construction because the auth manager itself depends on this client.
func (c *Client) SetRefresher(r Refresher) {
	c.transport.setRefresher(r)
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithHeader sets a header on the request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithBearer sets an explicit bearer credential, overriding the pipeline's
// automatic token attach.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// Get issues a GET request and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, query, "", nil, out, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, path, nil, "", nil, out, opts...)
}

// FilePart is one file entry of a multipart form.
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// MultipartForm is a multipart/form-data request body.
type MultipartForm struct {
	Fields map[string]string
	Files  []FilePart
}

// PostMultipart issues a POST request with a multipart/form-data body. The
// form is buffered in full so the pipeline can replay it on retry.
func (c *Client) PostMultipart(ctx context.Context, path string, form MultipartForm, out any, opts ...RequestOption) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range form.Fields {
		if err := w.WriteField(key, value); err != nil {
			return fmt.Errorf("writing form field %s: %w", key, err)
		}
	}
	for _, f := range form.Files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("creating form file %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("copying form file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing multipart form: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, w.FormDataContentType(), buf.Bytes(), out, opts...)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}
	return c.do(ctx, method, path, nil, "application/json", payload, out, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body []byte, out any, opts ...RequestOption) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &Error{Kind: KindTransport, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode >= 400 {
		return errorFromBody(resp.StatusCode, raw)
	}

	env := envelopeFrom(raw)
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "An error occurred"
		}
		kind := KindServer
		if env.StatusCode >= 400 {
			kind = kindForStatus(env.StatusCode)
		}
		return &Error{Kind: kind, Status: env.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}
