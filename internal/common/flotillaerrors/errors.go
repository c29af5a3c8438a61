// Package flotillaerrors contains generic errors that should be returned by code handling
// operator requests. The transport layer looks for the error types defined in this file
// and sets the response status code accordingly.
//
// If multiple errors occur in some function (e.g., if several machines in a maintenance
// request are in the wrong mode), that function should return an error of type
// multierror.Error from package github.com/hashicorp/go-multierror that encapsulates
// those individual errors.
package flotillaerrors

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
//
// It is surfaced distinctly from validation errors so that callers can tell a bad
// request apart from a stale reference.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "agent" or "machine"
	Value   string // Resource name, e.g., "agent-1"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrAlreadyExists is a generic error to be returned whenever some resource already exists.
type ErrAlreadyExists struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrAlreadyExists) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q already exists", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q already exists", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is a generic error to be returned on invalid argument or on an
// illegal state transition. Message is optional and is omitted if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "machineId"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrConflict indicates that a mutation could not be applied: either the durable
// commit was rejected or a resource operation cannot be satisfied even after full
// offer rescission. It is never retried automatically.
type ErrConflict struct {
	Action  string // The attempted mutation, e.g., "reserve"
	Message string
}

func (err *ErrConflict) Error() string {
	if err.Action != "" {
		return fmt.Sprintf("conflict applying %s: %s", err.Action, err.Message)
	}
	return fmt.Sprintf("conflict: %s", err.Message)
}

// ErrUnavailable indicates the control plane is not yet ready (or not leading) and
// the caller should retry against a different instance.
type ErrUnavailable struct {
	Message string
}

func (err *ErrUnavailable) Error() string {
	if err.Message == "" {
		return "control plane unavailable"
	}
	return fmt.Sprintf("control plane unavailable: %s", err.Message)
}

// StatusFromError maps error types to the status code the transport layer should
// return. Uses errors.As to look through the chain of errors, as opposed to just
// considering the topmost error in the chain.
func StatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}

	// If the error is a multierror, return the status of the first typed error in it.
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			if code := StatusFromError(e); code != http.StatusInternalServerError {
				return code
			}
		}
		return http.StatusInternalServerError
	}

	var errNotFound *ErrNotFound
	if errors.As(err, &errNotFound) {
		return http.StatusNotFound
	}

	var errAlreadyExists *ErrAlreadyExists
	if errors.As(err, &errAlreadyExists) {
		return http.StatusConflict
	}

	var errInvalidArgument *ErrInvalidArgument
	if errors.As(err, &errInvalidArgument) {
		return http.StatusBadRequest
	}

	var errConflict *ErrConflict
	if errors.As(err, &errConflict) {
		return http.StatusConflict
	}

	var errUnavailable *ErrUnavailable
	if errors.As(err, &errUnavailable) {
		return http.StatusServiceUnavailable
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}
