package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed wraps decode failures of a response body.
	ErrMalformed = errors.New("remote: malformed response")
	// ErrSuperseded is returned to a queued request replaced by a newer one.
	ErrSuperseded = errors.New("remote: request superseded")
)

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s returned status %d", e.URL, e.Code)
}
