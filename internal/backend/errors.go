package backend

import (
	"errors"
	"fmt"
)

// ErrSessionExpired signals that the backend rejected the stored credential
// with a 401. The gateway treats this as unconditional: the credential is
// destroyed before this error is returned and the request is never retried.
var ErrSessionExpired = errors.New("backend: session expired")

// ErrUnreachable signals that the request never completed. Surfaced to the
// call site so it can decide how to present the failure; never retried here.
var ErrUnreachable = errors.New("backend: unreachable")

// StatusError reports a non-2xx backend response other than 401.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	if e == nil {
		return "backend: request failed"
	}
	return fmt.Sprintf("backend: unexpected status %d", e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
