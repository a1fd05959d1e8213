package pipeline

import "fmt"

// ErrorKind partitions pipeline errors into the four kinds from spec §7.
type ErrorKind string

const (
	// ErrInputInsufficient covers "no body detected" / "no band samples":
	// the caller gets an empty DocumentResult, not a failure.
	ErrInputInsufficient ErrorKind = "input_insufficient"
	// ErrRecoverableDegradation covers header inference / alignment-gate /
	// LLM-fallback failures that fall through to the next cascade strategy.
	ErrRecoverableDegradation ErrorKind = "recoverable_degradation"
	// ErrPerRowRejection is recorded per-row and never fails the document.
	ErrPerRowRejection ErrorKind = "per_row_rejection"
	// ErrFatal covers malformed token shape, impossible geometry, or an
	// uninitialized lexicon: the pipeline halts and the document is
	// non-extractable.
	ErrFatal ErrorKind = "fatal"
)

// PipelineError is the error type returned by stages and the top-level
// Extract call. Only ErrFatal should ever be returned as a Go error from
// Extract; the other kinds are logged or recorded in Test.ExcludedReason.
type PipelineError struct {
	Kind ErrorKind
	Msg  string
	Code string // machine-readable reason code, e.g. "no_body", "no_band_samples"
}

func (e *PipelineError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func fatal(code, msg string, args ...any) error {
	return &PipelineError{Kind: ErrFatal, Code: code, Msg: fmt.Sprintf(msg, args...)}
}
