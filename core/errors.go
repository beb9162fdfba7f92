package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedContainer means the bytes cannot be parsed as a valid
	// instance of the declared container format.
	ErrMalformedContainer = errors.New("malformed container")

	// ErrArchiveIntegrity means a rebuilt archive does not list the same
	// members as its source.
	ErrArchiveIntegrity = errors.New("archive integrity violation")

	// ErrNestingTooDeep means archives are nested deeper than the configured bound.
	ErrNestingTooDeep = errors.New("archive nesting too deep")

	// ErrMemberTooLarge means an archive member decompresses past the configured bound.
	ErrMemberTooLarge = errors.New("archive member too large")

	// ErrTooManyMembers means an archive lists more members than allowed.
	ErrTooManyMembers = errors.New("archive has too many members")
)

// ContainerError attaches the format and, for archives, the member name to a
// sanitization failure.
type ContainerError struct {
	Format string
	Member string
	Err    error
}

func (e *ContainerError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("%s member %q: %v", e.Format, e.Member, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

func (e *ContainerError) Unwrap() error { return e.Err }

// Malformed wraps cause as an ErrMalformedContainer for the given format.
func Malformed(format string, cause error) error {
	return &ContainerError{Format: format, Err: fmt.Errorf("%w: %w", ErrMalformedContainer, cause)}
}
