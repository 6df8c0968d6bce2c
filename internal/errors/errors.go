// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so engine failures can be told apart (spawn failure,
// non-zero exit, malformed response) without string matching.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// making it easier to handle different types of failures appropriately.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// SpawnFailed indicates the engine executable could not be started.
	SpawnFailed Kind = "spawn_failed"
	// NonZeroExit indicates the engine ran and signaled failure.
	NonZeroExit Kind = "nonzero_exit"
	// ResponseFormat indicates exit code 0 with stdout that did not match the expected shape.
	ResponseFormat Kind = "response_format"
	// ProtocolParse indicates a malformed PROGRESS:/COMPLETE: marker line.
	ProtocolParse Kind = "protocol_parse"
	// Canceled indicates the call was canceled or timed out before the engine exited.
	Canceled Kind = "canceled"
	// Rejected indicates the façade refused a call that exceeds its declared capabilities.
	Rejected Kind = "rejected"
	// Unavailable indicates the remote façade could not be reached.
	Unavailable Kind = "unavailable"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
