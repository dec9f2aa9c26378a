// Package credstore persists the access/refresh token pair across two
// key-value scopes with different lifetimes: a session scope that lives and
// dies with the process, and a durable scope that survives restarts.
package credstore

import (
	"errors"
	"fmt"
)

// Storage keys shared by both scopes. Values are raw token strings.
const (
	keyAccessToken  = "auth_token"
	keyRefreshToken = "refresh_token"
)

var (
	// ErrNotFound is returned by a Scope when the key has no value.
	ErrNotFound = errors.New("credential not found")
	// ErrNoCredentials is returned by Read when neither scope holds a token.
	ErrNoCredentials = errors.New("no stored credentials")
)

// Scope is a string key-value area with a single storage lifetime.
type Scope interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Credentials is the persisted token pair.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Store resolves reads across the session and durable scopes.
// The session scope always wins when both hold a value for the same key,
// which tolerates stale entries left behind in the unused scope; saving to
// one scope deliberately does not clear the other.
type Store struct {
	session Scope
	durable Scope
}

// New creates a Store over the given session and durable scopes.
func New(session, durable Scope) *Store {
	return &Store{session: session, durable: durable}
}

// Save writes both tokens to the chosen scope, overwriting any prior value
// held there. The other scope is left untouched.
func (s *Store) Save(access, refresh string, durable bool) error {
	scope := s.session
	if durable {
		scope = s.durable
	}
	if err := scope.Set(keyAccessToken, access); err != nil {
		return fmt.Errorf("saving access token: %w", err)
	}
	if err := scope.Set(keyRefreshToken, refresh); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

// Read returns the stored pair. Each token is resolved independently,
// session scope first. ErrNoCredentials when neither scope holds either
// token.
func (s *Store) Read() (Credentials, error) {
	access, err := s.lookup(keyAccessToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Credentials{}, err
	}
	refresh, err := s.lookup(keyRefreshToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Credentials{}, err
	}
	if access == "" && refresh == "" {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// AccessToken resolves the current access token with session-scope
// precedence. The second return reports whether a token is present.
func (s *Store) AccessToken() (string, bool) {
	v, err := s.lookup(keyAccessToken)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Clear removes tokens from both scopes unconditionally.
func (s *Store) Clear() error {
	for _, scope := range []Scope{s.session, s.durable} {
		for _, key := range []string{keyAccessToken, keyRefreshToken} {
			if err := scope.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("clearing %s: %w", key, err)
			}
		}
	}
	return nil
}

func (s *Store) lookup(key string) (string, error) {
	v, err := s.session.Get(key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return s.durable.Get(key)
}
