package stremio

import "errors"

var (
	// ErrUnauthorized means the authKey was rejected or has expired.
	ErrUnauthorized = errors.New("unauthorized: invalid or expired credential")

	// ErrNotFound means the remote endpoint answered 404. Never retried.
	ErrNotFound = errors.New("manifest not found")
)

// ParseError wraps a malformed response body.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return "parse " + e.URL + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
