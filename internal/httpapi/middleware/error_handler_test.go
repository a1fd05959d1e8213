package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/labreport-extract/internal/httpapi/middleware"
	"github.com/yourorg/labreport-extract/internal/pipeline"
)

func newTestRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/x", handler)
	return r
}

func TestErrorHandler_BadRequest(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) {
		c.Error(&middleware.ErrBadRequest{Err: errors.New("bad input")})
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestErrorHandler_FatalPipelineError(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) {
		c.Error(&pipeline.PipelineError{Kind: pipeline.ErrFatal, Code: "bad_geometry", Msg: "impossible token"})
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestErrorHandler_NoErrorPassesThrough(t *testing.T) {
	r := newTestRouter(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
