package errorx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TraceIDKey is the gin context key holding the request trace id
const TraceIDKey = "trace_id"

// TraceIDHeader carries the trace id on requests and responses
const TraceIDHeader = "X-Trace-Id"

type sentinel struct {
	target error
	base   *APIError
}

// ErrorHandler provides unified error handling capabilities
type ErrorHandler struct {
	logger    *zap.Logger
	sentinels []sentinel
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Map renders any error matching target (errors.Is) as base
func (h *ErrorHandler) Map(target error, base *APIError) *ErrorHandler {
	h.sentinels = append(h.sentinels, sentinel{target: target, base: base})
	return h
}

// HandleError converts any error to APIError and writes the failure envelope
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := h.ConvertToAPIError(err)
	apiErr.TraceID = ExtractTraceID(c)
	apiErr.Timestamp = time.Now().UTC().Format(time.RFC3339)

	h.logError(c, apiErr, err)

	c.AbortWithStatusJSON(apiErr.HTTPStatus, gin.H{
		"success": false,
		"error":   apiErr,
	})
}

// ConvertToAPIError converts any error to a fresh APIError
func (h *ErrorHandler) ConvertToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Clone()
	}

	for _, s := range h.sentinels {
		if errors.Is(err, s.target) {
			return s.base.WithMessage("%s", err.Error())
		}
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return ErrPayloadTooLarge.WithDetail("limit", maxBytes.Limit)
	}

	// the original error is logged, never rendered
	return ErrInternalServer.Clone()
}

// logError logs the error with appropriate context and stack trace
func (h *ErrorHandler) logError(c *gin.Context, apiErr *APIError, originalErr error) {
	fields := []zap.Field{
		zap.String("trace_id", apiErr.TraceID),
		zap.String("error_code", apiErr.Code),
		zap.String("category", string(apiErr.Category)),
		zap.Int("http_status", apiErr.HTTPStatus),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
	}

	if originalErr != nil && originalErr.Error() != apiErr.Error() {
		fields = append(fields, zap.Error(originalErr))
	}

	if len(apiErr.Details) > 0 {
		detailsJSON, _ := json.Marshal(apiErr.Details)
		fields = append(fields, zap.String("details", string(detailsJSON)))
	}

	if apiErr.Severity == SeverityCritical {
		buf := make([]byte, 1024*4)
		n := runtime.Stack(buf, false)
		fields = append(fields, zap.String("stack_trace", string(buf[:n])))
	}

	switch apiErr.Severity {
	case SeverityInfo:
		h.logger.Info(apiErr.Message, fields...)
	case SeverityWarning:
		h.logger.Warn(apiErr.Message, fields...)
	default:
		h.logger.Error(apiErr.Message, fields...)
	}
}

// ErrorMiddleware returns a gin middleware rendering the last c.Error
func (h *ErrorHandler) ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			h.HandleError(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryMiddleware returns a gin middleware for panic recovery
func (h *ErrorHandler) RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		h.HandleError(c, ErrPanic.WithDetail("panic", fmt.Sprintf("%v", err)))
	})
}

// NotFoundError creates a not found error for a specific resource
func NotFoundError(resourceType string, identifier string) *APIError {
	return ErrResourceNotFound.
		WithMessage("%s not found", resourceType).
		WithDetail("resource_type", resourceType).
		WithDetail("identifier", identifier)
}

// ConflictError creates a conflict error for a specific resource
func ConflictError(resourceType string, field string, value any) *APIError {
	return ErrResourceExists.
		WithMessage("%s with this %s already exists", resourceType, field).
		WithDetail("resource_type", resourceType).
		WithDetail("field", field).
		WithDetail("value", value)
}

// ExtractTraceID extracts trace ID from context or request
func ExtractTraceID(c *gin.Context) string {
	if traceID := c.GetString(TraceIDKey); traceID != "" {
		return traceID
	}

	if traceID := c.GetHeader(TraceIDHeader); traceID != "" {
		c.Set(TraceIDKey, traceID)
		return traceID
	}

	traceID := uuid.New().String()
	c.Set(TraceIDKey, traceID)
	return traceID
}
