package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by every layer. Typed errors below unwrap to one of these.
var (
	ErrFetch      = errors.New("fetch failed")
	ErrValidation = errors.New("validation error")
	ErrUpload     = errors.New("upload failed")
	ErrSubmit     = errors.New("submit failed")
	ErrOutOfRange = errors.New("index out of range")
	ErrNotFound   = errors.New("not found")
	ErrDiscarded  = errors.New("draft discarded")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Fields returns the names of the failing fields in order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		fields = append(fields, fe.Field)
	}
	return fields
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// FetchError is returned when loading a record or a list from the backend fails.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// UploadError is returned when an image upload fails or yields no usable URL.
type UploadError struct {
	File string
	Err  error
}

func (e *UploadError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("upload: %v", e.Err)
	}
	return fmt.Sprintf("upload %s: %v", e.File, e.Err)
}

func (e *UploadError) Unwrap() []error { return []error{ErrUpload, e.Err} }

// SubmitError is returned when a create, update, delete or toggle call is rejected
// by the backend or cannot reach it.
type SubmitError struct {
	Op       string
	Resource string
	Status   int
	Message  string
	Err      error
}

func (e *SubmitError) Error() string {
	var s strings.Builder
	s.WriteString(e.Op)
	s.WriteString(" ")
	s.WriteString(e.Resource)
	if e.Status != 0 {
		fmt.Fprintf(&s, " (status %d)", e.Status)
	}
	if e.Message != "" {
		s.WriteString(": ")
		s.WriteString(e.Message)
	} else if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *SubmitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmit}
	}
	return []error{ErrSubmit, e.Err}
}
