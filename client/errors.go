package client

import (
	"errors"
	"fmt"
)

// ErrFieldNotFound is returned when a dotted lookup misses.
var ErrFieldNotFound = errors.New("field not found")

// ErrInvalidPageCount is returned by ListPages for a negative page count.
var ErrInvalidPageCount = errors.New("invalid page count")

// NotFoundError is returned for 404 responses.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.URL)
}

// ClientError is returned for 4xx responses other than 404. Body holds the
// decoded JSON error payload, or the raw text when it is not JSON.
type ClientError struct {
	StatusCode int
	Body       interface{}
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error (status %d): %v", e.StatusCode, e.Body)
}

// APIRequestError covers server errors, transport failures and undecodable
// responses.
type APIRequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIRequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "something went wrong"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIRequestError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
