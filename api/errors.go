package api

import "fmt"

// Kind classifies a collaborator failure so callers can switch on it
// instead of probing optional fields of an untyped error.
type Kind int

const (
	// KindTransport covers connection-level failures with no HTTP response.
	KindTransport Kind = iota
	// KindAuth covers 401/403 and token expiry/invalidity responses.
	KindAuth
	// KindValidation covers 4xx responses carrying structured issues.
	KindValidation
	// KindServer covers 5xx and failure-envelope responses.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Issue is a field-level validation problem returned by the backend.
// Path segments may be strings or numbers, matching the backend's
// Zod-style issue shape.
type Issue struct {
	Path       []any  `json:"path"`
	Validation string `json:"validation,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

// HasPath reports whether the issue path contains the given segment.
func (i Issue) HasPath(segment string) bool {
	for _, p := range i.Path {
		if s, ok := p.(string); ok && s == segment {
			return true
		}
	}
	return false
}

// Error is the tagged error returned for every collaborator failure.
// Structured issues are preserved so callers can attach field-level
// messages themselves.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Issues  []Issue
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api %s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s error: %s", e.Kind, e.Message)
}

func kindForStatus(status int) Kind {
	switch {
	case status >= 500:
		return KindServer
	case status == 401 || status == 403:
		return KindAuth
	default:
		return KindValidation
	}
}
