// Package token defines the geometric token and line types that flow
// through the lab-report extraction pipeline (spec §3.1-3.2).
package token

import "fmt"

// Origin explains how a token came to exist. Tokens imported from a sheet
// start as OriginOCR; tokens decoded from JSON carry an empty Origin;
// later stages may synthesize additional tokens and tag them so debug output
// can always explain provenance (spec §3.1 _origin).
type Origin string

const (
	OriginOCR                 Origin = "ocr"
	OriginSplitValue          Origin = "split_value"
	OriginSplitUnitCandidate  Origin = "split_unit_candidate"
	OriginNameMerge           Origin = "name_merge"
	OriginRefSplit            Origin = "ref_split"
)

// ValueFlag is the decomposed flag letter of a numeric-with-flag token
// such as "12.3H" (spec §3.1).
type ValueFlag string

const (
	FlagHigh   ValueFlag = "H"
	FlagLow    ValueFlag = "L"
	FlagNormal ValueFlag = "N"
	FlagNone   ValueFlag = ""
)

// Token is an immutable geometric record produced by OCR, annotated
// additively by later pipeline stages (spec §3.1, §3.7 invariant 1). JSON
// tags define the wire contract consumed by cmd/extract and POST
// /v1/extract (spec §6.1): callers only need to populate text and geometry,
// the rest are pipeline-internal annotations with omitempty zero values.
type Token struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"` // nil means absent, never dropped by the confidence filter

	XLeft  int `json:"x_left"`
	XRight int `json:"x_right"`
	YTop    int `json:"y_top"`
	YBottom int `json:"y_bottom"`
	YCenter int `json:"y_center"`

	// LineIndex is assigned by LineGrouper; before grouping it holds whatever
	// the producer set (0 for tokens decoded from JSON).
	LineIndex int `json:"-"`

	// RawUnit / RawValue snapshot the original surface form when a token has
	// been split or normalized, for provenance (spec §3.1).
	RawUnit  string `json:"-"`
	RawValue string `json:"-"`

	// ValueNum / ValueFlag decompose a "<num><H|L|N>" token without mutating Text.
	ValueNum  *float64  `json:"-"`
	ValueFlag ValueFlag `json:"-"`

	Origin Origin `json:"-"`
}

// RawH returns the token's pixel height (spec §3.1 raw_h).
func (t Token) RawH() int {
	return t.YBottom - t.YTop
}

// XCenter returns the horizontal center used for banding and assignment.
func (t Token) XCenter() float64 {
	return float64(t.XLeft+t.XRight) / 2.0
}

// Validate checks the fatal geometry invariants from spec §7 ("impossible
// geometry such as x_right < x_left"). Tokens failing this check must halt
// the pipeline rather than be silently coerced.
func (t Token) Validate() error {
	if t.Text == "" {
		return fmt.Errorf("token: empty text")
	}
	if t.XRight < t.XLeft {
		return fmt.Errorf("token %q: x_right (%d) < x_left (%d)", t.Text, t.XRight, t.XLeft)
	}
	if t.YBottom < t.YTop {
		return fmt.Errorf("token %q: y_bottom (%d) < y_top (%d)", t.Text, t.YBottom, t.YTop)
	}
	if t.YCenter < t.YTop || t.YCenter > t.YBottom {
		return fmt.Errorf("token %q: y_center (%d) not within [y_top, y_bottom]", t.Text, t.YCenter)
	}
	if t.Confidence != nil && (*t.Confidence < 0 || *t.Confidence > 1) {
		return fmt.Errorf("token %q: confidence %v out of [0,1]", t.Text, *t.Confidence)
	}
	return nil
}

// Line is an ordered sequence of tokens sharing a LineIndex, sorted
// left-to-right by XLeft (spec §3.2). Lines are never reordered once built.
type Line []Token

// FirstText returns the text of the first token, or "" for an empty line.
func (l Line) FirstText() string {
	if len(l) == 0 {
		return ""
	}
	return l[0].Text
}

// Texts returns the plain text of every token in order, used by rule-based
// header inference and sampling.
func (l Line) Texts() []string {
	out := make([]string, len(l))
	for i, t := range l {
		out[i] = t.Text
	}
	return out
}

func Float64(v float64) *float64 { return &v }
