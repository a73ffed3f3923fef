package lens

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork covers transport failures and 5xx responses.
	ErrNetwork = errors.New("lens API unreachable")
	// ErrUnauthorized is returned when the access token is missing, expired or rejected.
	ErrUnauthorized = errors.New("lens API rejected credentials")
	// ErrProfileNotFound is returned when an address has no default profile.
	ErrProfileNotFound = errors.New("no default profile")
)

// CodeUnauthenticated is the GraphQL extensions code for rejected credentials.
const CodeUnauthenticated = "UNAUTHENTICATED"

// APIError is a GraphQL or HTTP level error reported by the API.
type APIError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: API error (%d %s): %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: API error (%d): %s", e.Operation, e.StatusCode, e.Message)
}

// Unwrap maps the error onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.Code == CodeUnauthenticated:
		return ErrUnauthorized
	case e.StatusCode >= 500:
		return ErrNetwork
	default:
		return nil
	}
}
