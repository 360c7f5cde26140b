package recording

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a recording error
type Kind string

const (
	KindIO          Kind = "io"          // A file could not be read, written, renamed or deleted
	KindDecode      Kind = "decode"      // An image file is corrupt
	KindValidation  Kind = "validation"  // Caller input is out of range. Nothing was modified.
	KindConsistency Kind = "consistency" // Frames and ledger records do not correspond
	KindBusy        Kind = "busy"        // Another batch operation is running
	KindNotLoaded   Kind = "notLoaded"   // No recording has been loaded
)

// HTTPStatus returns the HTTP status code for errors of this kind
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConsistency, KindBusy, KindNotLoaded:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error with a Kind.
// errors.Is(err, ErrValidation) is true for any *Error of KindValidation.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

var (
	ErrIO          = &Error{Kind: KindIO, Message: "I/O error"}
	ErrDecode      = &Error{Kind: KindDecode, Message: "Decode error"}
	ErrValidation  = &Error{Kind: KindValidation, Message: "Validation error"}
	ErrConsistency = &Error{Kind: KindConsistency, Message: "Consistency error"}
	ErrBusy        = &Error{Kind: KindBusy, Message: "Another operation is in progress"}
	ErrNotLoaded   = &Error{Kind: KindNotLoaded, Message: "No recording is loaded"}
)

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func ioError(cause error, format string, args ...any) *Error {
	return newError(KindIO, cause, format, args...)
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func consistencyError(format string, args ...any) *Error {
	return newError(KindConsistency, nil, format, args...)
}

// ErrorKind returns the Kind of err, or "" if err is not an *Error
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var b *BatchError
	if errors.As(err, &b) {
		return KindIO
	}
	return ""
}

// FileError is a failure to process a single file in a batch
type FileError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BatchError is returned when some files of a batch failed, but the batch carried on.
// The operation's result holds the details.
type BatchError struct {
	Op        string
	Succeeded int
	Failed    []FileError
}

func (e *BatchError) Error() string {
	first := ""
	if len(e.Failed) != 0 {
		first = fmt.Sprintf(" (first: %v: %v)", e.Failed[0].Filename, e.Failed[0].Error)
	}
	return fmt.Sprintf("%v: %v files succeeded, %v failed%v", e.Op, e.Succeeded, len(e.Failed), first)
}

func (e *BatchError) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Kind == KindIO
}
