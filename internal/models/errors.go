package models

import (
	"errors"
)

// ErrorKind is the user-facing classification of a failure.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrNotFound
	ErrPermissionDenied
	ErrTransport
	ErrInvalidName
)

// errorMessages is the fixed kind -> message table shown to users.
var errorMessages = map[ErrorKind]string{
	ErrNotFound:         "folder does not exist",
	ErrPermissionDenied: "no permission to this folder",
	ErrTransport:        "cannot reach the server",
	ErrInvalidName:      "folder name contains invalid characters",
	ErrUnknown:          "unexpected error",
}

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "NotFound"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrTransport:
		return "Transport"
	case ErrInvalidName:
		return "InvalidName"
	default:
		return "Unknown"
	}
}

// Message returns the short actionable message for the kind.
func (k ErrorKind) Message() string {
	if msg, ok := errorMessages[k]; ok {
		return msg
	}
	return errorMessages[ErrUnknown]
}

// KindedError is implemented by errors that carry an ErrorKind.
type KindedError interface {
	error
	ErrorKind() ErrorKind
}

// KindOf returns the ErrorKind carried by err or any error it wraps,
// or ErrUnknown when none does.
func KindOf(err error) ErrorKind {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.ErrorKind()
	}
	return ErrUnknown
}

// kindError attaches a kind to an arbitrary error.
type kindError struct {
	kind ErrorKind
	err  error
}

func (e *kindError) Error() string        { return e.err.Error() }
func (e *kindError) Unwrap() error        { return e.err }
func (e *kindError) ErrorKind() ErrorKind { return e.kind }

// WithKind wraps err so that KindOf reports kind. A nil err stays nil.
func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}
