package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/yourorg/labreport-extract/internal/lexicon"
	"github.com/yourorg/labreport-extract/internal/token"
)

// Extractor runs the full six-stage pipeline (spec §2, §4) over one
// document's tokens. Stages are pure functions; Extractor only owns the
// options, logger, and the optional LLM fallbacks (spec §5, §6.3).
type Extractor struct {
	opts            Options
	logger          *slog.Logger
	debugTrace      bool
	headerFallback  HeaderRoleFallback
	patientFallback PatientNameFallback
	codeLexicon     *lexicon.CodeLexicon
}

// Option configures an Extractor (functional-options style).
type Option func(*Extractor)

func WithOptions(o Options) Option { return func(e *Extractor) { e.opts = o } }

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDebugTrace turns on verbose per-row/per-stage logging, useful when
// diagnosing why a particular test was dropped.
func WithDebugTrace(on bool) Option { return func(e *Extractor) { e.debugTrace = on } }

func WithHeaderFallback(f HeaderRoleFallback) Option {
	return func(e *Extractor) { e.headerFallback = f }
}

func WithPatientFallback(f PatientNameFallback) Option {
	return func(e *Extractor) { e.patientFallback = f }
}

// New builds an Extractor with spec-default options, a no-op LLM fallback,
// and the process-wide memoized code lexicon.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		opts:            DefaultOptions(),
		logger:          slog.Default(),
		headerFallback:  noopHeaderRoleFallback{},
		patientFallback: noopPatientNameFallback{},
		codeLexicon:     lexicon.GetCodeLexicon(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ValidationSummary reports per-document bookkeeping the core computes
// while extracting but doesn't need to gate success on: a histogram of why
// rows were excluded and which header-resolution strategy won. It is never
// consulted by pipeline logic, only surfaced for debugging by the CLI and
// HTTP surfaces.
type ValidationSummary struct {
	RowsByExclusionReason map[ExcludedReason]int
	HeaderSource          RoleSource
}

// Extract runs LineGrouper -> BodyDetector -> HeaderInferer -> ColumnBander
// -> CellAssigner -> RowNormalizer -> keep-last dedup (DedupeTests), plus
// MetadataExtractor, for one page of tokens (spec §2). It never returns a
// non-nil error except for ErrFatal (spec §7); every other degraded
// condition yields a DocumentResult with an empty tests slice.
func (e *Extractor) Extract(ctx context.Context, tokens []token.Token) (DocumentResult, error) {
	doc, _, err := e.extractDetailed(ctx, tokens)
	return doc, err
}

// ExtractDetailed runs the same pipeline as Extract but additionally returns
// the ValidationSummary (spec §C.1 supplemented feature).
func (e *Extractor) ExtractDetailed(ctx context.Context, tokens []token.Token) (DocumentResult, ValidationSummary, error) {
	return e.extractDetailed(ctx, tokens)
}

func (e *Extractor) extractDetailed(ctx context.Context, tokens []token.Token) (DocumentResult, ValidationSummary, error) {
	summary := ValidationSummary{RowsByExclusionReason: make(map[ExcludedReason]int)}

	lines, err := GroupLines(tokens, e.opts.LineGrouper)
	if err != nil {
		return DocumentResult{}, summary, err
	}
	if len(lines) == 0 {
		return DocumentResult{}, summary, nil
	}

	bodyStart, body, dropped, err := DetectBody(lines, e.codeLexicon.ResolveCode)
	if err != nil {
		if pe, ok := err.(*PipelineError); ok && pe.Kind == ErrInputInsufficient {
			e.logger.Debug("pipeline: no body detected", "reason", pe.Code)
			return DocumentResult{}, summary, nil
		}
		return DocumentResult{}, summary, err
	}
	if e.debugTrace && len(dropped) > 0 {
		e.logger.Debug("pipeline: dropped non-resolving lines after body start", "count", len(dropped))
	}

	linesAboveBody := lines[:bodyStart]

	roles, source, headerIdx, err := InferHeader(ctx, linesAboveBody, bodyStart, body, e.opts.HeaderInferer, e.headerFallback)
	meta := ExtractMetadata(ctx, linesAboveBody, headerIdx, e.patientFallback, e.opts.Metadata)
	summary.HeaderSource = source
	if err != nil {
		e.logger.Warn("pipeline: header inference exhausted all strategies", "err", err)
		return meta, summary, nil
	}
	e.logger.Debug("pipeline: header roles resolved", "source", source, "columns", roles.MaxColIndex()+1)

	bands, err := BuildBands(body, roles, e.opts.ColumnBander)
	if err != nil {
		if pe, ok := err.(*PipelineError); ok && pe.Kind == ErrInputInsufficient {
			e.logger.Debug("pipeline: no band samples", "reason", pe.Code)
			return meta, summary, nil
		}
		return DocumentResult{}, summary, err
	}

	tests := make([]Test, 0, len(body))
	for i, line := range body {
		row := AssignCells(line, bands, e.opts.CellAssignMode, i)
		test, ok := NormalizeRow(line, row, roles, e.codeLexicon, e.opts.RowNormalizer)
		if !ok {
			summary.RowsByExclusionReason[test.ExcludedReason]++
			if e.debugTrace {
				e.logger.Debug("pipeline: row excluded", "code", test.Code, "reason", test.ExcludedReason)
			}
			continue
		}
		tests = append(tests, test)
	}

	meta.Tests = DedupeTests(tests)
	return meta, summary, nil
}

// ExtractBatch runs Extract over every page concurrently (spec §5: distinct
// documents share only the immutable memoized lexicons), then merges the
// per-page results in source order (spec §4.5.6).
func (e *Extractor) ExtractBatch(ctx context.Context, pages [][]token.Token) ([]DocumentResult, MergeStats, error) {
	results := make([]DocumentResult, len(pages))
	errs := make([]error, len(pages))

	var wg sync.WaitGroup
	for i, tokens := range pages {
		wg.Add(1)
		go func(i int, tokens []token.Token) {
			defer wg.Done()
			results[i], errs[i] = e.Extract(ctx, tokens)
		}(i, tokens)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, MergeStats{}, err
		}
	}

	merged, stats := MergeDocuments(results)
	return merged, stats, nil
}
