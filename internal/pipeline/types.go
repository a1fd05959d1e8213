// Package pipeline implements the deterministic, rule-based lab-report
// extraction core: LineGrouper, BodyDetector, HeaderInferer, ColumnBander,
// CellAssigner, RowNormalizer and MergeEngine (spec §2, §4).
package pipeline

import "github.com/yourorg/labreport-extract/internal/token"

// Role is the semantic function of a body column (spec §3.4).
type Role string

const (
	RoleName      Role = "name"
	RoleResult    Role = "result"
	RoleUnit      Role = "unit"
	RoleReference Role = "reference"
	RoleMin       Role = "min"
	RoleMax       Role = "max"
	RoleDate      Role = "date"
)

// RoleSource records which strategy produced a role assignment.
type RoleSource string

const (
	SourceOCR      RoleSource = "ocr"
	SourceInferred RoleSource = "inferred"
	SourceLLM      RoleSource = "llm"
)

// RoleAssignment is one entry of HeaderRoles (spec §3.4).
type RoleAssignment struct {
	Role           Role
	ColIndex       int
	Confidence     float64
	Source         RoleSource
	MeetsThreshold bool
}

// HeaderRoles is the canonical, standardized column-role map. Assignments are
// kept in the order the producing stage appended them, not sorted by
// ColIndex. The invariants from spec §3.4 (unique col_index;
// reference xor (min, max)) are enforced by Validate, not by construction,
// because different stages build this incrementally.
type HeaderRoles struct {
	Assignments []RoleAssignment
}

// ByRole looks up the assignment for a role, if any.
func (h HeaderRoles) ByRole(r Role) (RoleAssignment, bool) {
	for _, a := range h.Assignments {
		if a.Role == r {
			return a, true
		}
	}
	return RoleAssignment{}, false
}

// MaxColIndex returns the largest col_index across all assignments, or -1 if empty.
func (h HeaderRoles) MaxColIndex() int {
	max := -1
	for _, a := range h.Assignments {
		if a.ColIndex > max {
			max = a.ColIndex
		}
	}
	return max
}

// Validate enforces the HeaderRoles invariants from spec §3.4: unique
// col_index, and reference mutually exclusive with (min, max).
func (h HeaderRoles) Validate() error {
	seen := make(map[int]Role)
	for _, a := range h.Assignments {
		if other, ok := seen[a.ColIndex]; ok {
			return &PipelineError{Kind: ErrFatal, Msg: "duplicate col_index " + itoa(a.ColIndex) + " for roles " + string(other) + " and " + string(a.Role)}
		}
		seen[a.ColIndex] = a.Role
	}
	_, hasRef := h.ByRole(RoleReference)
	_, hasMin := h.ByRole(RoleMin)
	_, hasMax := h.ByRole(RoleMax)
	if hasRef && (hasMin || hasMax) {
		return &PipelineError{Kind: ErrFatal, Msg: "reference and min/max roles are mutually exclusive"}
	}
	return nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Band is a half-open horizontal interval representing one column (spec GLOSSARY).
type Band struct {
	Left, Right float64
	Center      float64
}

// Contains reports whether x falls within [Left, Right).
func (b Band) Contains(x float64) bool {
	return x >= b.Left && x < b.Right
}

// ExcludedReason enumerates why a candidate Test was dropped (spec §3.5).
type ExcludedReason string

const (
	ReasonUnknownValue   ExcludedReason = "unknown_value"
	ReasonLowConfidence  ExcludedReason = "low_confidence"
	ReasonDuplicateCode  ExcludedReason = "duplicated_code_kept_last"
	ReasonMissingRef     ExcludedReason = "missing_reference"
	ReasonInvalidUnit    ExcludedReason = "invalid_unit"
)

// Row is a body line after CellAssigner (spec §3.3).
type Row struct {
	Cells      []string
	LineIdx    int
	Bands      []Band
	SrcTokens  map[Role]token.Token
	Dropped    bool
	DropReason string
}

// Test is the output unit of a single row (spec §3.5).
type Test struct {
	Code         string   `json:"code"`
	Value        *float64 `json:"value,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	ReferenceMin *float64 `json:"reference_min,omitempty"`
	ReferenceMax *float64 `json:"reference_max,omitempty"`

	ValueConf      float64        `json:"value_confidence"`
	ExcludedReason ExcludedReason `json:"excluded_reason,omitempty"` // "" when the test survives
}

// DocumentResult is the top-level output of one extraction (spec §3.6, §6.2).
type DocumentResult struct {
	HospitalName   string `json:"hospital_name,omitempty"`
	ClientName     string `json:"client_name,omitempty"`
	PatientName    string `json:"patient_name,omitempty"`
	InspectionDate string `json:"inspection_date,omitempty"`
	Tests          []Test `json:"tests"`
}
