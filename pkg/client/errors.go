package client

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned before any network call when no user
// identity is configured. Retrying without obtaining credentials will
// not help.
var ErrUnauthenticated = errors.New("not authenticated: user id missing")

// TransportError is a non-2xx HTTP response from the assistant,
// surfaced before any events are read. No partial session exists.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("assistant returned HTTP %d", e.Status)
}
