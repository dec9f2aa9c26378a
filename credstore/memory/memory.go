// Package memory provides the session-lifetime credential scope. Values are
// held in memguard enclaves so raw tokens stay encrypted while at rest in
// process memory; everything is lost when the process exits.
package memory

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/transcriba/transcriba/credstore"
)

// Scope is a thread-safe in-memory implementation of credstore.Scope.
type Scope struct {
	mu   sync.RWMutex
	data map[string]*memguard.Enclave
}

var _ credstore.Scope = (*Scope)(nil)

// New creates an empty in-memory Scope.
func New() *Scope {
	return &Scope{data: make(map[string]*memguard.Enclave)}
}

func (s *Scope) Set(key, value string) error {
	// NewEnclave wipes the input slice, so hand it a copy.
	enclave := memguard.NewEnclave([]byte(value))
	s.mu.Lock()
	s.data[key] = enclave
	s.mu.Unlock()
	return nil
}

func (s *Scope) Get(key string) (string, error) {
	s.mu.RLock()
	enclave, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return "", credstore.ErrNotFound
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening credential enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

func (s *Scope) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return credstore.ErrNotFound
	}
	delete(s.data, key)
	return nil
}
