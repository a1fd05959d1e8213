package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/labreport-extract/internal/pipeline"
)

// ErrBadRequest wraps a malformed-request error (bad JSON, empty pages).
type ErrBadRequest struct{ Err error }

func (e *ErrBadRequest) Error() string { return e.Err.Error() }
func (e *ErrBadRequest) Unwrap() error { return e.Err }

// ErrRequestTooLarge wraps a request body exceeding the configured limit.
type ErrRequestTooLarge struct{ Err error }

func (e *ErrRequestTooLarge) Error() string { return e.Err.Error() }
func (e *ErrRequestTooLarge) Unwrap() error { return e.Err }

// ErrorPayload is the JSON body written for any handled error.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorHandler maps handler errors to HTTP statuses. A *pipeline.PipelineError
// with Kind ErrFatal is the only pipeline error surfaced this way (spec §7);
// ErrInputInsufficient and exhausted ErrRecoverableDegradation never reach
// here because Extract/ExtractBatch already collapse them to an empty-tests
// DocumentResult before returning.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, code := statusForError(err)
		c.JSON(status, ErrorPayload{Error: err.Error(), Code: code})
	}
}

func statusForError(err error) (int, string) {
	var badReq *ErrBadRequest
	if errors.As(err, &badReq) {
		return http.StatusBadRequest, "bad_request"
	}

	var tooLarge *ErrRequestTooLarge
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "request_too_large"
	}

	var pe *pipeline.PipelineError
	if errors.As(err, &pe) {
		if pe.Kind == pipeline.ErrFatal {
			return http.StatusUnprocessableEntity, "fatal"
		}
		return http.StatusOK, string(pe.Kind)
	}

	return http.StatusInternalServerError, "internal"
}
