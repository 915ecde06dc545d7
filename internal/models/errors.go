package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Err:     err,
	}
}

// NewModerationServiceError wraps a third-party moderation failure. It is never
// surfaced to end users as a rejection; callers convert it to fail-open state.
func NewModerationServiceError(service string, err error) *AppError {
	return &AppError{
		Code:    "MODERATION_SERVICE_ERROR",
		Message: fmt.Sprintf("%s moderation service unavailable", service),
		Err:     err,
	}
}

// FieldErrors collects per-field validation failures so a multi-field write can
// surface all of them at once instead of stopping at the first bad field.
type FieldErrors struct {
	fields map[string]string
}

// NewFieldErrors returns an empty FieldErrors collector.
func NewFieldErrors() *FieldErrors {
	return &FieldErrors{fields: make(map[string]string)}
}

// Add records a validation failure for one field. Later errors for the same
// field do not overwrite the first.
func (f *FieldErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	if _, exists := f.fields[field]; exists {
		return
	}
	msg := err.Error()
	if appErr, ok := err.(*AppError); ok {
		msg = appErr.Message
	}
	f.fields[field] = msg
}

// HasErrors reports whether any field failed validation.
func (f *FieldErrors) HasErrors() bool {
	return len(f.fields) > 0
}

// Fields returns a copy of the collected field -> message map.
func (f *FieldErrors) Fields() map[string]string {
	out := make(map[string]string, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return out
}

func (f *FieldErrors) Error() string {
	names := make([]string, 0, len(f.fields))
	for k := range f.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, f.fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	switch e := err.(type) {
	case *FieldErrors:
		response = ErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: e.Fields(),
		}
	case *AppError:
		response = ErrorResponse{
			Error: e.Message,
			Code:  e.Code,
		}
		if e.Err != nil {
			response.Details = e.Err.Error()
		}
	default:
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
