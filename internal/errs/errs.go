// Package errs defines the typed error kinds the core returns, so a
// caller can distinguish failure modes with errors.Is instead of
// string-matching a message.
package errs

import "fmt"

// Kind identifies a specific failure mode. The zero value is not a
// valid kind; every returned error carries one of the named constants
// below.
type Kind int

const (
	_ Kind = iota
	DuplicateVertex
	NoExistVertex
	NoExistSource
	NoExistDestination
	DuplicateEdge
	NoExistEdge
	NoExistClass
	DuplicateClass
	InvalidTxnMode
	TxnCompleted
	TxnVersionMaxReached
	PersistentEngineFailure
)

var messages = map[Kind]string{
	DuplicateVertex:         "vertex already exists",
	NoExistVertex:           "vertex does not exist",
	NoExistSource:           "edge source vertex does not exist",
	NoExistDestination:      "edge destination vertex does not exist",
	DuplicateEdge:           "edge already exists",
	NoExistEdge:             "edge does not exist",
	NoExistClass:            "class descriptor does not exist",
	DuplicateClass:          "class descriptor already exists",
	InvalidTxnMode:          "operation not permitted in this transaction mode",
	TxnCompleted:            "transaction already committed or rolled back",
	TxnVersionMaxReached:    "version id counter exhausted",
	PersistentEngineFailure: "persistent engine operation failed",
}

// Error is the concrete error type returned by the core. Kind satisfies
// errors.Is comparisons directly; Cause, when present, is preserved by
// Unwrap for errors.As chains into lower layers (e.g. a kvengine
// failure surfaced through a higher-level operation).
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	msg, ok := messages[e.Kind]
	if !ok {
		msg = "unknown error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Error makes Kind itself an error, so together with (*Error).Is it can
// be used as errors.Is(err, errs.NoExistVertex) without having to
// construct an *Error to compare against.
func (k Kind) Error() string {
	if msg, ok := messages[k]; ok {
		return msg
	}
	return "unknown error"
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New builds an *Error of the given kind with no wrapped cause.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}
