package cloud

import (
	"context"
	"errors"
	nethttp "net/http"

	inthttp "github.com/odoobiznes/kms-fsnav/internal/http"
	"github.com/odoobiznes/kms-fsnav/internal/models"
)

// KindFromStatus maps a storage service HTTP status onto an ErrorKind.
func KindFromStatus(status int) models.ErrorKind {
	switch {
	case status == nethttp.StatusUnauthorized || status == nethttp.StatusForbidden:
		return models.ErrPermissionDenied
	case status == nethttp.StatusNotFound:
		return models.ErrNotFound
	case status == nethttp.StatusRequestTimeout || status == nethttp.StatusTooManyRequests:
		return models.ErrTransport
	case status >= 500:
		return models.ErrTransport
	default:
		return models.ErrUnknown
	}
}

// Classify maps an SDK error that carries no usable status onto an
// ErrorKind, using the same classification the retry loop applies.
func Classify(err error) models.ErrorKind {
	switch {
	case err == nil:
		return models.ErrUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrTransport
	case errors.Is(err, context.Canceled):
		return models.ErrUnknown
	}

	switch inthttp.ClassifyError(err) {
	case inthttp.ErrorTypeCredential:
		return models.ErrPermissionDenied
	case inthttp.ErrorTypeNetwork, inthttp.ErrorTypeRetryable:
		return models.ErrTransport
	default:
		return models.ErrUnknown
	}
}
