package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for Graph errors.
var (
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNoToken      = errors.New("graph: missing access token")
)

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph API error: status %d: %s", e.Status, e.Body)
}

// Is matches ErrUnauthorized and ErrForbidden by status code.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}
