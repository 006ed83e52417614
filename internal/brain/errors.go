package brain

import (
	"errors"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("caller does not hold that role in the question")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoPartner      = errors.New("asker has no linked partner")
	ErrAlreadyLinked  = errors.New("user is already linked to another partner")
	ErrQuestionClosed = errors.New("question is closed")
	ErrWrongPhase     = errors.New("question is not in the phase for this dialog")
	ErrMissingLog     = errors.New("reflection log missing or empty")
	ErrFlagged        = errors.New("question has red flag events")
	ErrStaleHistory   = errors.New("reflection log changed while the reply was generated")
)

type ErrorKind string

const (
	// KindTransient covers language-model and store faults; the same input may be retried.
	KindTransient ErrorKind = "transient"
	// KindMalformedOutput means the model answered without the labeled sections.
	KindMalformedOutput ErrorKind = "malformed_output"
	// KindInvariant means the call itself was out of order and must not be retried.
	KindInvariant ErrorKind = "invariant"
)

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindMalformedOutput
}

func transientError(err error) *Error {
	return &Error{Kind: KindTransient, Err: err}
}

func malformedError(err error) *Error {
	return &Error{Kind: KindMalformedOutput, Err: err}
}

func invariantError(err error) *Error {
	return &Error{Kind: KindInvariant, Err: err}
}

// IsRetryable reports whether err is a brain error the caller may retry unchanged.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// KindOf returns the kind of a brain error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
