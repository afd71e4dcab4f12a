package gcp

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

// ConfigurationError reports a missing or invalid operator input. It is
// always raised before any cloud API call is made.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// NewConfigurationError builds a ConfigurationError from a format string.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports an existing cloud resource that is incompatible with
// the desired state and cannot be reconciled in place.
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource '%s' conflicts with the desired state: %s", e.Resource, e.Reason)
}

// PermissionError reports that the caller lacks the rights to read or mutate
// the named resource.
type PermissionError struct {
	Resource string
	Err      error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied on '%s': %v", e.Resource, e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// TransientError reports network or API unavailability. The operation is safe
// to retry on a subsequent run.
type TransientError struct {
	Resource string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure on '%s': %v", e.Resource, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Classify maps a raw Google API error to one of the provisioner error kinds.
// Not-found and already-exists conditions are part of the normal reconcile
// flow and are returned unchanged for the caller to branch on.
func Classify(resource string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case IsPermissionDenied(err):
		return &PermissionError{Resource: resource, Err: err}
	case IsConflict(err):
		return &ConflictError{Resource: resource, Reason: err.Error()}
	case IsTransient(err):
		return &TransientError{Resource: resource, Err: err}
	}
	return err
}

// IsNotFound reports whether the error is a 404 from the REST surface or a
// NotFound status from the gRPC surface.
func IsNotFound(err error) bool {
	if code, ok := httpCode(err); ok {
		return code == http.StatusNotFound
	}
	if code, ok := grpcCode(err); ok {
		return code == codes.NotFound
	}
	return false
}

// IsAlreadyExists reports whether the error indicates the resource already
// exists (409 on REST, AlreadyExists on gRPC).
func IsAlreadyExists(err error) bool {
	if code, ok := httpCode(err); ok {
		return code == http.StatusConflict
	}
	if code, ok := grpcCode(err); ok {
		return code == codes.AlreadyExists
	}
	return false
}

// IsConflict is an alias of IsAlreadyExists kept for call sites that treat an
// existing incompatible resource as a conflict rather than a reconcile target.
func IsConflict(err error) bool {
	return IsAlreadyExists(err)
}

// IsPermissionDenied reports whether the caller lacks rights on the resource.
func IsPermissionDenied(err error) bool {
	if code, ok := httpCode(err); ok {
		return code == http.StatusForbidden || code == http.StatusUnauthorized
	}
	if code, ok := grpcCode(err); ok {
		return code == codes.PermissionDenied || code == codes.Unauthenticated
	}
	return false
}

// IsTransient reports whether the error is eligible for retry on a later run.
func IsTransient(err error) bool {
	if code, ok := httpCode(err); ok {
		switch code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if code, ok := grpcCode(err); ok {
		switch code {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		}
	}
	return false
}

func httpCode(err error) (int, bool) {
	var gErr *googleapi.Error
	if stderrors.As(err, &gErr) {
		return gErr.Code, true
	}
	return 0, false
}

func grpcCode(err error) (codes.Code, bool) {
	var apiErr *apierror.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.GRPCStatus().Code(), true
	}
	return codes.OK, false
}
