// Package gqlerrors defines the error taxonomy surfaced to GraphQL clients.
// Every error carries a stable machine-readable code in extensions; none of
// them is ever allowed to escalate into a process failure.
package gqlerrors

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeValidationFailure     = "VALIDATION_FAILURE"
	CodeInvalidCursor         = "INVALID_CURSOR"
	CodeConflictingPagination = "CONFLICTING_PAGINATION_ARGUMENTS"
	CodeInvalidReference      = "INVALID_REFERENCE"
	CodeNotImplemented        = "NOT_IMPLEMENTED"
	CodeSelfActionConflict    = "SELF_ACTION_CONFLICT"
	CodeInternal              = "INTERNAL"
)

func NotFound(what string) *gqlerror.Error {
	return withCode(CodeNotFound, "%s not found", what)
}

func Unauthorized() *gqlerror.Error {
	return withCode(CodeUnauthorized, "viewer is not authorized to perform this action")
}

func Unauthenticated() *gqlerror.Error {
	return withCode(CodeUnauthenticated, "viewer is required")
}

// Validation reports a domain invariant violation with field-level detail.
// fields maps field name to the list of messages produced by the store.
func Validation(fields map[string][]string) *gqlerror.Error {
	gErr := withCode(CodeValidationFailure, "validation failed")
	if len(fields) > 0 {
		gErr.Extensions["fields"] = fields
	}
	return gErr
}

func InvalidCursor(cursor string) *gqlerror.Error {
	return withCode(CodeInvalidCursor, "invalid cursor: %q", cursor)
}

func ConflictingPaginationArguments() *gqlerror.Error {
	return withCode(CodeConflictingPagination, "passing both `first` and `last` to paginate a connection is not supported")
}

func InvalidReference(id string) *gqlerror.Error {
	return withCode(CodeInvalidReference, "%q does not reference a known node", id)
}

func NotImplemented() *gqlerror.Error {
	return withCode(CodeNotImplemented, "this mutation is declared but not implemented yet")
}

func SelfActionConflict(action string) *gqlerror.Error {
	return withCode(CodeSelfActionConflict, "viewer cannot %s themselves", action)
}

func Internal(err error) *gqlerror.Error {
	gErr := withCode(CodeInternal, "internal error")
	gErr.Err = err
	return gErr
}

func withCode(code, format string, args ...interface{}) *gqlerror.Error {
	return &gqlerror.Error{
		Message:    fmt.Sprintf(format, args...),
		Extensions: map[string]interface{}{"code": code},
	}
}

// Code extracts the taxonomy code from an error, or "" for plain errors.
func Code(err error) string {
	var gErr *gqlerror.Error
	if !errors.As(err, &gErr) {
		return ""
	}
	code, _ := gErr.Extensions["code"].(string)
	return code
}

func IsCode(err error, code string) bool {
	return Code(err) == code
}
