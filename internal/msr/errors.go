package msr

import (
	"errors"
	"fmt"
	"net/http"

	"siren/internal/services"
)

var (
	// ErrStatus reports a non-200 HTTP response.
	ErrStatus = errors.New("unexpected http status")
	// ErrAPICode reports an envelope whose code is not zero.
	ErrAPICode = errors.New("api returned an error code")
	// ErrSchema reports a payload that does not have the expected shape.
	ErrSchema = errors.New("response does not match schema")
)

// StatusError carries the offending status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %v %d", e.URL, ErrStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() []error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return []error{ErrStatus, services.ErrNotFound}
	case e.StatusCode >= http.StatusInternalServerError:
		return []error{ErrStatus, services.ErrTransient}
	default:
		return []error{ErrStatus, services.ErrValidation}
	}
}

// APIError carries the envelope code and message.
type APIError struct {
	URL  string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GET %s: %v %d: %s", e.URL, ErrAPICode, e.Code, e.Msg)
}

func (e *APIError) Unwrap() []error {
	return []error{ErrAPICode, services.ErrValidation}
}

// SchemaError points at the first field that failed validation.
type SchemaError struct {
	URL    string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("GET %s: %v: %s %s", e.URL, ErrSchema, e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() []error {
	return []error{ErrSchema, services.ErrValidation}
}
