package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/labreport-extract/internal/httpapi/middleware"
	"github.com/yourorg/labreport-extract/internal/pipeline"
	"github.com/yourorg/labreport-extract/internal/token"
)

var errEmptyPages = errors.New("pages must contain at least one page of tokens")

// ExtractRequest is the POST /v1/extract body: one page of OCR tokens per
// element (spec §6.1 OCR input contract).
type ExtractRequest struct {
	Pages [][]token.Token `json:"pages"`
}

// ExtractResponse carries the merged per-patient documents (MergeDocuments
// may keep pages as distinct documents when inspection dates never align,
// spec §4.5.6), the merge bookkeeping, and the ValidationSummary
// supplemented feature (SPEC §C.1) for each input page.
type ExtractResponse struct {
	Documents        []pipeline.DocumentResult    `json:"documents"`
	MergedPages      int                          `json:"merged_pages"`
	PrunedEmpty      int                          `json:"pruned_empty"`
	ValidationByPage []pipeline.ValidationSummary `json:"validation_by_page,omitempty"`
}

// ExtractHandler wraps a shared *pipeline.Extractor for the batch HTTP
// surface. A single Extractor is safe for concurrent use across requests:
// its stages are pure functions and its only mutable-looking state (the LLM
// fallback's circuit breaker/semaphore) is already internally synchronized
// (spec §5).
type ExtractHandler struct {
	extractor *pipeline.Extractor
}

func NewExtractHandler(extractor *pipeline.Extractor) *ExtractHandler {
	return &ExtractHandler{extractor: extractor}
}

func (h *ExtractHandler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&middleware.ErrBadRequest{Err: err})
		return
	}
	if len(req.Pages) == 0 {
		c.Error(&middleware.ErrBadRequest{Err: errEmptyPages})
		return
	}

	ctx := c.Request.Context()
	docs := make([]pipeline.DocumentResult, len(req.Pages))
	summaries := make([]pipeline.ValidationSummary, len(req.Pages))

	for i, page := range req.Pages {
		// ExtractDetailed only ever returns a non-nil error for ErrFatal
		// (spec §7); every other degraded condition yields an empty-tests
		// DocumentResult instead.
		doc, summary, err := h.extractor.ExtractDetailed(ctx, page)
		if err != nil {
			middleware.ObserveExtraction("fatal")
			c.Error(err)
			return
		}
		docs[i] = doc
		summaries[i] = summary
	}

	merged, stats := pipeline.MergeDocuments(docs)
	middleware.ObserveExtraction("ok")

	c.JSON(http.StatusOK, ExtractResponse{
		Documents:        merged,
		MergedPages:      stats.MergedLen,
		PrunedEmpty:      stats.PrunedEmpty,
		ValidationByPage: summaries,
	})
}
