package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is the universal session-expiry signal: any 401 from any
// endpoint maps to it.
var ErrUnauthorized = errors.New("api: unauthorized")

// Error is a failure response, with the server's detail message when one was
// present. A 401 unwraps to ErrUnauthorized so errors.Is sees the expiry
// signal without losing the detail text.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: server returned %d", e.Status)
	}
	return fmt.Sprintf("api: %s (%d)", e.Detail, e.Status)
}

func (e *Error) Unwrap() error {
	if e.Status == 401 {
		return ErrUnauthorized
	}
	return nil
}

// Detail extracts the server's detail string from err, or falls back to the
// provided default. Login/register surfaces use this to build inline errors.
func Detail(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
