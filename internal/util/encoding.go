package util

import (
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization so visually equivalent password
// input derives the same key.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
