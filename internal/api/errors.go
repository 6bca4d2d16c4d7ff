// Package api provides error types for KMS backend responses.
package api

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	inthttp "github.com/odoobiznes/kms-fsnav/internal/http"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// Error describes a failed backend call.
type Error struct {
	Kind       models.ErrorKind
	Op         string // "list", "create-folder", "download", "upload"
	Path       string
	StatusCode int    // 0 when no response was received
	Detail     string // backend-provided explanation, if any
	Err        error  // underlying transport error, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		fmt.Fprintf(&b, "HTTP %d: %s", e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		fmt.Fprintf(&b, "HTTP %d", e.StatusCode)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.Message())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind implements models.KindedError.
func (e *Error) ErrorKind() models.ErrorKind { return e.Kind }

// kindFromStatus maps a backend HTTP status (and its detail text) to an ErrorKind.
func kindFromStatus(status int, detail string) models.ErrorKind {
	lower := strings.ToLower(detail)

	switch {
	case status == nethttp.StatusUnauthorized || status == nethttp.StatusForbidden:
		return models.ErrPermissionDenied
	case status == nethttp.StatusNotFound:
		return models.ErrNotFound
	case status == nethttp.StatusBadRequest && strings.Contains(lower, "directory"):
		// "Path must be a directory": the folder the user asked for is not there.
		return models.ErrNotFound
	case status == nethttp.StatusBadGateway ||
		status == nethttp.StatusServiceUnavailable ||
		status == nethttp.StatusGatewayTimeout:
		return models.ErrTransport
	case status >= 500 && strings.Contains(lower, "permission denied"):
		return models.ErrPermissionDenied
	default:
		return models.ErrUnknown
	}
}

// kindFromTransportError classifies a failure that produced no HTTP response.
func kindFromTransportError(err error) models.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrTransport
	}
	if errors.Is(err, context.Canceled) {
		return models.ErrUnknown
	}
	switch inthttp.ClassifyError(err) {
	case inthttp.ErrorTypeNetwork, inthttp.ErrorTypeRetryable:
		return models.ErrTransport
	case inthttp.ErrorTypeCredential:
		return models.ErrPermissionDenied
	default:
		// retryablehttp reports exhausted retries as "giving up after N attempt(s)"
		if strings.Contains(strings.ToLower(err.Error()), "giving up after") {
			return models.ErrTransport
		}
		return models.ErrUnknown
	}
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool {
	return models.KindOf(err) == models.ErrNotFound
}

// IsPermissionDenied reports whether err is a PermissionDenied failure.
func IsPermissionDenied(err error) bool {
	return models.KindOf(err) == models.ErrPermissionDenied
}
