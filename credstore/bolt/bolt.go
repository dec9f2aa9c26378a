// Package bolt provides the durable credential scope backed by a BBolt file.
package bolt

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/transcriba/transcriba/credstore"
)

var bucketName = []byte("credentials")

// Scope implements credstore.Scope backed by a BBolt database.
type Scope struct {
	db *bbolt.DB
}

var _ credstore.Scope = (*Scope)(nil)

// New returns a Scope backed by the given BBolt database.
func New(db *bbolt.DB) *Scope {
	return &Scope{db: db}
}

// Open opens a BBolt database at the given path and returns a new Scope.
func Open(path string, options *bbolt.Options) (*Scope, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening credential db: %w", err)
	}
	return New(db), nil
}

// Close closes the underlying BBolt database.
func (s *Scope) Close() error {
	return s.db.Close()
}

func (s *Scope) Set(key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (s *Scope) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("%s: %w", key, credstore.ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, credstore.ErrNotFound)
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Scope) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("%s: %w", key, credstore.ErrNotFound)
		}
		if b.Get([]byte(key)) == nil {
			return fmt.Errorf("%s: %w", key, credstore.ErrNotFound)
		}
		return b.Delete([]byte(key))
	})
}
