package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yourorg/labreport-extract/internal/lexicon"
	"github.com/yourorg/labreport-extract/internal/token"
)

// RowNormalizerOptions carries the tunables from spec §4.5.
type RowNormalizerOptions struct {
	ValueConfidenceThreshold float64
	FallbackValueConfidence  float64
}

var reReferenceRange = regexp.MustCompile(`^\s*([+-]?\d+(?:[.,]\d+)?)\s*[\-–~]\s*([+-]?\d+(?:[.,]\d+)?)\s*$`)

// splitReferenceRange implements spec §4.5.1.
func splitReferenceRange(cell string) (min, max string, ok bool) {
	if cell == "" || cell == unknownCell {
		return unknownCell, unknownCell, true
	}
	m := reReferenceRange.FindStringSubmatch(cell)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func parseFloatPtr(s string) *float64 {
	if s == "" || s == unknownCell {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return token.Float64(v)
}

// NormalizeRow turns one banded body row into a candidate Test, applying
// reference-range splitting, unit/value canonicalization, and confidence
// filtering (spec §4.5.1-4.5.4). The returned bool reports whether the Test
// survives; when false, Test.ExcludedReason explains why.
func NormalizeRow(line token.Line, row Row, roles HeaderRoles, codeLexicon *lexicon.CodeLexicon, opts RowNormalizerOptions) (Test, bool) {
	nameAssignment, _ := roles.ByRole(RoleName)
	resultAssignment, hasResult := roles.ByRole(RoleResult)
	unitAssignment, hasUnit := roles.ByRole(RoleUnit)
	refAssignment, hasRef := roles.ByRole(RoleReference)
	minAssignment, hasMin := roles.ByRole(RoleMin)
	maxAssignment, hasMax := roles.ByRole(RoleMax)

	code := cellAt(row, nameAssignment.ColIndex)
	if resolved, ok := codeLexicon.ResolveCode(code); ok {
		code = resolved
	}

	var minNorm, maxNorm string
	if hasRef {
		refCell := cellAt(row, refAssignment.ColIndex)
		if min, max, ok := splitReferenceRange(refCell); ok {
			minNorm, maxNorm = min, max
		}
	} else if hasMin && hasMax {
		if v, ok := lexicon.ParseNumericNorm(cellAt(row, minAssignment.ColIndex)); ok {
			minNorm = v
		}
		if v, ok := lexicon.ParseNumericNorm(cellAt(row, maxAssignment.ColIndex)); ok {
			maxNorm = v
		}
	}

	var unitCanonical string
	unitRaw := ""
	if hasUnit {
		unitRaw = cellAt(row, unitAssignment.ColIndex)
		if unitRaw != "" && unitRaw != unknownCell {
			if canon, ok := lexicon.NormalizeUnitSimple(unitRaw); ok {
				unitCanonical = canon
			}
		}
	}

	var resultNorm string
	var resultCell string
	if hasResult {
		resultCell = cellAt(row, resultAssignment.ColIndex)
		if v, ok := lexicon.ParseNumericNorm(resultCell); ok {
			resultNorm = v
		}
	}

	test := Test{Code: code}
	if unitCanonical != "" {
		test.Unit = &unitCanonical
	} else if unitRaw != "" && unitRaw != unknownCell {
		test.Unit = &unitRaw
	}
	test.ReferenceMin = parseFloatPtr(minNorm)
	test.ReferenceMax = parseFloatPtr(maxNorm)
	test.Value = parseFloatPtr(resultNorm)

	if test.Value == nil {
		test.ExcludedReason = ReasonUnknownValue
		return test, false
	}

	test.ValueConf = resultConfidence(line, resultAssignment, hasResult, resultNorm, row, opts)
	threshold := opts.ValueConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.94
	}
	if test.ValueConf < threshold {
		test.ExcludedReason = ReasonLowConfidence
		return test, false
	}

	return test, true
}

func cellAt(row Row, col int) string {
	if col < 0 || col >= len(row.Cells) {
		return unknownCell
	}
	return row.Cells[col]
}

// resultConfidence implements the three-step confidence cascade from spec
// §4.5.4.
func resultConfidence(line token.Line, resultAssignment RoleAssignment, hasResult bool, resultNorm string, row Row, opts RowNormalizerOptions) float64 {
	if hasResult && resultNorm != "" && resultAssignment.ColIndex < len(row.Bands) {
		band := row.Bands[resultAssignment.ColIndex]
		for _, t := range line {
			if t.Confidence == nil {
				continue
			}
			numText, ok := lexicon.ParseNumericNorm(t.Text)
			if !ok || numText != resultNorm {
				continue
			}
			if band.Contains(t.XCenter()) {
				return *t.Confidence
			}
		}
	}
	if hasResult && resultAssignment.Confidence > 0 {
		return resultAssignment.Confidence
	}
	fallback := opts.FallbackValueConfidence
	if fallback <= 0 {
		fallback = 0.5
	}
	return fallback
}

// DedupeTests groups surviving Tests by (code, unit) and keeps the last
// occurrence (spec §4.5.5). Earlier occurrences are dropped without being
// tagged or counted.
func DedupeTests(tests []Test) []Test {
	type key struct {
		code, unit string
	}
	keep := make(map[key]int)
	for i, t := range tests {
		u := ""
		if t.Unit != nil {
			u = *t.Unit
		}
		keep[key{t.Code, u}] = i
	}

	out := make([]Test, 0, len(keep))
	for i, t := range tests {
		u := ""
		if t.Unit != nil {
			u = *t.Unit
		}
		if keep[key{t.Code, u}] != i {
			continue
		}
		out = append(out, t)
	}
	return out
}
