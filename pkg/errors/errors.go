// Package errors defines the error type shared by the HTTP surfaces.
// Handlers attach an *AppError to the request and the error middleware
// renders it as a JSON envelope with a stable machine-readable code,
// so clients branch on Code rather than on message text.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode classifies an error for API clients and logs.
type ErrorCode string

const (
	CodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
	CodePlanGenerationFailed ErrorCode = "PLAN_GENERATION_FAILED"
)

// AppError pairs a classification code with a message that is safe to
// show to callers. Details carries extra context for logs and API
// responses; Cause keeps the underlying error reachable through
// errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode maps the error class to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePlanGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError builds an error with an explicit code.
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

// NewValidationError reports rejected input. details comes from the
// request binding, so it names the offending field.
func NewValidationError(details string) *AppError {
	return NewAppError(CodeValidationFailed, "Validation failed", details)
}

// NewNotFoundError reports a missing resource by name.
func NewNotFoundError(resource string) *AppError {
	if resource == "" {
		resource = "resource"
	}
	return NewAppError(CodeNotFound, fmt.Sprintf("The requested %s was not found", resource), "")
}

// NewPlanGenerationError signals that the text model could not produce
// a plan. The message is rendered to the user verbatim.
func NewPlanGenerationError(cause error) *AppError {
	return &AppError{
		Code:    CodePlanGenerationFailed,
		Message: "Plan generation failed",
		Details: "The meal plan service did not return a usable response",
		Cause:   cause,
	}
}

// Wrap classifies err as internal unless its chain already carries an
// AppError, which is returned unchanged.
func Wrap(err error, message string) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// Is reports whether the chain carries an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// ErrorResponse is the JSON envelope for failed API requests.
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails is the envelope payload.
type ErrorDetails struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// ToErrorResponse renders an AppError for transport. The timestamp is
// RFC 3339 in UTC.
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}
