package errorx

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryInternal       ErrorCategory = "internal"
	CategoryExternal       ErrorCategory = "external"
	CategoryRateLimit      ErrorCategory = "rate_limit"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// FieldError describes a single rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// APIError represents a structured API error.
// The package level values are templates; every With* call returns a copy.
type APIError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Category    ErrorCategory  `json:"category"`
	Severity    Severity       `json:"severity"`
	HTTPStatus  int            `json:"-"`
	Details     map[string]any `json:"details,omitempty"`
	Errors      []FieldError   `json:"errors,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	TraceID     string         `json:"trace_id,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// JSON returns the error as a JSON string
func (e *APIError) JSON() string {
	out, _ := json.Marshal(e)
	return string(out)
}

// Clone returns a deep copy safe to mutate
func (e *APIError) Clone() *APIError {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	cp.Errors = slices.Clone(e.Errors)
	cp.Suggestions = slices.Clone(e.Suggestions)
	return &cp
}

// WithMessage replaces the human readable message
func (e *APIError) WithMessage(format string, args ...any) *APIError {
	cp := e.Clone()
	cp.Message = fmt.Sprintf(format, args...)
	return cp
}

// WithDetail adds a detail to the error
func (e *APIError) WithDetail(key string, value any) *APIError {
	cp := e.Clone()
	if cp.Details == nil {
		cp.Details = make(map[string]any)
	}
	cp.Details[key] = value
	return cp
}

// WithFieldErrors attaches per-field validation failures
func (e *APIError) WithFieldErrors(errs ...FieldError) *APIError {
	cp := e.Clone()
	cp.Errors = append(cp.Errors, errs...)
	return cp
}

// WithSuggestion adds a suggestion to the error
func (e *APIError) WithSuggestion(suggestion string) *APIError {
	cp := e.Clone()
	cp.Suggestions = append(cp.Suggestions, suggestion)
	return cp
}

// WithTraceID adds a trace ID to the error
func (e *APIError) WithTraceID(traceID string) *APIError {
	cp := e.Clone()
	cp.TraceID = traceID
	return cp
}

// Common error codes and messages
var (
	// Validation Errors (E1000-E1999)
	ErrInvalidInput = &APIError{
		Code:       "E1001",
		Message:    "Invalid input provided",
		Category:   CategoryValidation,
		Severity:   SeverityError,
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidFormat = &APIError{
		Code:       "E1003",
		Message:    "Invalid data format",
		Category:   CategoryValidation,
		Severity:   SeverityError,
		HTTPStatus: http.StatusBadRequest,
		Suggestions: []string{
			"Check the request body is valid JSON",
		},
	}

	ErrPayloadTooLarge = &APIError{
		Code:       "E1004",
		Message:    "Uploaded file is too large",
		Category:   CategoryValidation,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}

	// Authentication Errors (E2000-E2999)
	ErrUnauthorized = &APIError{
		Code:       "E2001",
		Message:    "Authentication required",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
		Suggestions: []string{
			"Please login and try again",
		},
	}

	ErrInvalidCredentials = &APIError{
		Code:       "E2002",
		Message:    "Invalid email or password",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpired = &APIError{
		Code:       "E2003",
		Message:    "Authentication token has expired",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
		Suggestions: []string{
			"Please login again to get a new token",
		},
	}

	ErrInvalidToken = &APIError{
		Code:       "E2004",
		Message:    "Invalid authentication token",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAccountDisabled = &APIError{
		Code:       "E2005",
		Message:    "Account is disabled",
		Category:   CategoryAuthentication,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
	}

	// Authorization Errors (E3000-E3999)
	ErrForbidden = &APIError{
		Code:       "E3001",
		Message:    "Access denied",
		Category:   CategoryAuthorization,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusForbidden,
		Suggestions: []string{
			"Contact your administrator for permission",
		},
	}

	// Not Found Errors (E4000-E4999)
	ErrResourceNotFound = &APIError{
		Code:       "E4001",
		Message:    "Requested resource not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	ErrEndpointNotFound = &APIError{
		Code:       "E4002",
		Message:    "API endpoint not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	// Conflict Errors (E4090-E4099)
	ErrResourceExists = &APIError{
		Code:       "E4091",
		Message:    "Resource already exists",
		Category:   CategoryConflict,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusConflict,
	}

	// Rate Limiting Errors (E4290-E4299)
	ErrRateLimitExceeded = &APIError{
		Code:       "E4291",
		Message:    "Too many requests, please try again later",
		Category:   CategoryRateLimit,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusTooManyRequests,
	}

	// Internal Server Errors (E5000-E5999)
	ErrPanic = &APIError{
		Code:       "E5000",
		Message:    "Server panic occurred",
		Category:   CategoryInternal,
		Severity:   SeverityCritical,
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrInternalServer = &APIError{
		Code:       "E5001",
		Message:    "Internal server error occurred",
		Category:   CategoryInternal,
		Severity:   SeverityCritical,
		HTTPStatus: http.StatusInternalServerError,
		Suggestions: []string{
			"Please try again later",
		},
	}

	ErrServiceUnavailable = &APIError{
		Code:       "E5032",
		Message:    "Service unavailable",
		Category:   CategoryExternal,
		Severity:   SeverityError,
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
