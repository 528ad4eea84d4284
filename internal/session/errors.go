package session

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrRefreshFailed          = errors.New("token refresh failed")
	ErrNoRefreshToken         = errors.New("no refresh token")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrValidation             = errors.New("validation failed")
	ErrIncompleteCredentials  = errors.New("access token stored without username")
)

// HTTPError is a non-2xx response that is not an authentication failure.
type HTTPError struct {
	Status  int
	Message string
	Details any
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Is lets callers test client-side validation failures with errors.Is(err, ErrValidation).
func (e *HTTPError) Is(target error) bool {
	if target != ErrValidation {
		return false
	}
	switch e.Status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func authRequired(cause error) error {
	if cause == nil {
		return ErrAuthenticationRequired
	}
	return fmt.Errorf("%w: %w", ErrAuthenticationRequired, cause)
}
