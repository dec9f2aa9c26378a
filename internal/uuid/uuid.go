// Package uuid provides random identifiers for request correlation and
// stub-backend records.
package uuid

import "github.com/google/uuid"

// New returns a random UUIDv4 string.
func New() string {
	return uuid.NewString()
}
