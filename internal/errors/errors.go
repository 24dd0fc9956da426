// Package errors defines the error taxonomy surfaced to API callers.
//
// Every failure leaving a store, a service or the RPC gateway is either a
// *ServiceError or is reported to the caller as an internal error. A
// ServiceError carries the kind of failure, the HTTP status it maps to and,
// for validation failures, the individual field issues.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a ServiceError.
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindStorage          Kind = "StorageError"
	KindNotFound         Kind = "NotFoundError"
	KindMethodNotAllowed Kind = "MethodNotAllowedError"
	KindInternal         Kind = "InternalError"
)

// ReasonReferentialIntegrity marks a StorageError caused by a reference to a
// record that does not exist.
const ReasonReferentialIntegrity = "referential_integrity"

// Issue describes a single field that failed input validation. An empty Path
// refers to the payload as a whole.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ServiceError is a structured error with a kind, a message and an HTTP status.
type ServiceError struct {
	Kind       Kind
	Reason     string
	Message    string
	HTTPStatus int
	Issues     []Issue
	Details    map[string]any
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a key/value pair to the error and returns it.
func (e *ServiceError) WithDetail(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation reports input that does not match a procedure's schema.
func Validation(issues ...Issue) *ServiceError {
	msg := "input validation failed"
	if len(issues) == 1 {
		if issues[0].Path == "" {
			msg = issues[0].Message
		} else {
			msg = fmt.Sprintf("%s: %s", issues[0].Path, issues[0].Message)
		}
	} else if len(issues) > 1 {
		msg = fmt.Sprintf("input validation failed on %d fields", len(issues))
	}
	return &ServiceError{
		Kind:       KindValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Issues:     issues,
	}
}

// Storage wraps a persistence failure for the named operation.
func Storage(op string, err error) *ServiceError {
	return &ServiceError{
		Kind:       KindStorage,
		Message:    op + " failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ReferentialIntegrity reports a write that references a missing entity.
func ReferentialIntegrity(entity, id string, err error) *ServiceError {
	e := &ServiceError{
		Kind:       KindStorage,
		Reason:     ReasonReferentialIntegrity,
		Message:    fmt.Sprintf("%s %s does not exist", entity, id),
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
	return e.WithDetail("entity", entity).WithDetail("id", id)
}

// NotFound reports an unknown procedure or resource.
func NotFound(what string) *ServiceError {
	return &ServiceError{
		Kind:       KindNotFound,
		Message:    what + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// MethodNotAllowed reports a procedure invoked with the wrong HTTP method.
func MethodNotAllowed(procedure, method string) *ServiceError {
	return &ServiceError{
		Kind:       KindMethodNotAllowed,
		Message:    fmt.Sprintf("procedure %s does not support %s", procedure, method),
		HTTPStatus: http.StatusMethodNotAllowed,
	}
}

// Internal wraps an unexpected failure.
func Internal(err error) *ServiceError {
	return &ServiceError{
		Kind:       KindInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// From returns err as a *ServiceError, wrapping anything else as Internal.
func From(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return Internal(err)
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind Kind) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Kind == kind
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsStorage reports whether err is a StorageError of any reason.
func IsStorage(err error) bool { return IsKind(err, KindStorage) }

// IsReferentialIntegrity reports whether err is a StorageError caused by a
// dangling reference.
func IsReferentialIntegrity(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Kind == KindStorage && svcErr.Reason == ReasonReferentialIntegrity
}
