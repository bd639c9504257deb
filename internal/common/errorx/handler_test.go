package errorx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errMissing = errors.New("record not found")

type envelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eh := NewErrorHandler(zap.NewNop()).Map(errMissing, ErrResourceNotFound)
	r := gin.New()
	r.Use(eh.RecoveryMiddleware(), eh.ErrorMiddleware())
	r.GET("/t", h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	r.ServeHTTP(w, req)

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestErrorMiddleware_APIError(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_ = c.Error(ErrForbidden)
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "E3001", body.Error.Code)
	assert.Equal(t, "trace-123", body.Error.TraceID)
	assert.NotEmpty(t, body.Error.Timestamp)
	// the template must stay untouched
	assert.Empty(t, ErrForbidden.TraceID)
}

func TestErrorMiddleware_Sentinel(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("region 9: %w", errMissing))
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "E4001", body.Error.Code)
	assert.Contains(t, body.Error.Message, "region 9")
}

func TestErrorMiddleware_UnknownIsGeneric500(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		_ = c.Error(errors.New("dial tcp 10.0.0.1: connection refused"))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "E5001", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "10.0.0.1")
}

func TestRecoveryMiddleware(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		panic("boom")
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "E5000", body.Error.Code)
}

func TestWithHelpersDoNotMutateTemplate(t *testing.T) {
	e := ErrInvalidInput.WithDetail("k", "v").WithFieldErrors(FieldError{Field: "email", Message: "is required"})
	assert.Equal(t, "v", e.Details["k"])
	assert.Len(t, e.Errors, 1)
	assert.Nil(t, ErrInvalidInput.Details)
	assert.Nil(t, ErrInvalidInput.Errors)
}

func TestFromBindError(t *testing.T) {
	type req struct {
		Email    string `validate:"required,email"`
		Password string `validate:"min=8"`
	}
	err := validator.New().Struct(req{Password: "short"})
	require.Error(t, err)

	apiErr := FromBindError(err)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	require.Len(t, apiErr.Errors, 2)
	assert.Equal(t, "Email", apiErr.Errors[0].Field)
	assert.Equal(t, "is required", apiErr.Errors[0].Message)
	assert.Equal(t, "must be at least 8 characters", apiErr.Errors[1].Message)

	var syntaxTarget any
	syntaxErr := json.Unmarshal([]byte("{"), &syntaxTarget)
	assert.Equal(t, "E1003", FromBindError(syntaxErr).Code)
}
