package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/yourorg/labreport-extract/internal/token"
)

// HeaderInfererOptions carries the tunables from spec §4.3.
type HeaderInfererOptions struct {
	RoleMinDistinctHits      int
	RangeFractionThreshold   float64
	MinRowsForInference      int
	UnitRoleThreshold        float64
	ShortTableBonus          float64
	ReferenceRoleThreshold   float64
	ResultRoleThreshold      float64
	ForcedResultNumThreshold float64
	ForcedResultDateCap      float64
	AlignmentThreshold       float64
	AlignmentSampleRows      int
	MaxSampleRows            int
}

var roleSynonyms = map[Role][]string{
	RoleName:      {"name", "검사항목", "test", "parameter", "item", "code", "analyte", "항목"},
	RoleResult:    {"result", "value", "측정값", "검사결과", "측정치", "results"},
	RoleUnit:      {"unit", "units", "단위"},
	RoleReference: {"reference", "ref", "referencerange", "정상범위", "참고치", "range", "정상치"},
	RoleMin:       {"min", "minimum", "최소", "lowerlimit"},
	RoleMax:       {"max", "maximum", "최대", "upperlimit"},
	RoleDate:      {"date", "검사일", "collectiondate", "채혈일", "일자", "collection"},
}

var reNonAlnumHeader = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func normalizeHeaderToken(s string) string {
	return reNonAlnumHeader.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// matchHeaderLine maps each column to at most one role, first-occurrence-wins
// (spec §4.3.1): walk columns left to right, and for the first column whose
// normalized text matches an unclaimed role's synonyms (or, for date, a
// date-shaped regex), claim that role for that column.
func matchHeaderLine(line token.Line) map[Role]int {
	claimed := make(map[Role]int)
	usedCols := make(map[int]bool)
	for col, t := range line {
		norm := normalizeHeaderToken(t.Text)
		if norm == "" || usedCols[col] {
			continue
		}
		for role, synonyms := range roleSynonyms {
			if _, already := claimed[role]; already {
				continue
			}
			matched := false
			for _, syn := range synonyms {
				if norm == syn {
					matched = true
					break
				}
			}
			if !matched && role == RoleDate && isDateLike(strings.TrimSpace(t.Text)) {
				matched = true
			}
			if matched {
				claimed[role] = col
				usedCols[col] = true
				break
			}
		}
	}
	return claimed
}

// findOCRHeader searches lines above the body for the best header-synonym
// match (spec §4.3.1).
func findOCRHeader(linesAboveBody []token.Line, bodyStart int, minDistinctHits int) (HeaderRoles, int, bool) {
	bestDistinct := -1
	bestDistance := -1
	bestIdx := -1
	var bestMatch map[Role]int

	for i, line := range linesAboveBody {
		matched := matchHeaderLine(line)
		distinct := len(matched)
		distance := bodyStart - i
		if distinct > bestDistinct || (distinct == bestDistinct && distance < bestDistance) {
			bestDistinct = distinct
			bestDistance = distance
			bestMatch = matched
			bestIdx = i
		}
	}

	if bestDistinct < minDistinctHits {
		return HeaderRoles{}, -1, false
	}

	roles := HeaderRoles{}
	for role, col := range bestMatch {
		roles.Assignments = append(roles.Assignments, RoleAssignment{
			Role: role, ColIndex: col, Confidence: 1.0, Source: SourceOCR, MeetsThreshold: true,
		})
	}

	// Special rule: a date role with no result role is really the result
	// column on reports that place the sample date there (spec §4.3.1).
	if _, hasDate := roles.ByRole(RoleDate); hasDate {
		if _, hasResult := roles.ByRole(RoleResult); !hasResult {
			for i, a := range roles.Assignments {
				if a.Role == RoleDate {
					roles.Assignments[i].Role = RoleResult
					break
				}
			}
		}
	}

	return roles, bestIdx, true
}

// alignmentScore implements the alignment gate from spec §4.3.4.
func alignmentScore(body []token.Line, roles HeaderRoles, sampleRows int) float64 {
	n := sampleRows
	if n > len(body) {
		n = len(body)
	}
	if n == 0 {
		return 0
	}

	fractionFor := func(col int, expect func(CellKind) bool) float64 {
		matches := 0
		for i := 0; i < n; i++ {
			line := body[i]
			if col >= len(line) {
				continue
			}
			if expect(ClassifyCell(line[col].Text)) {
				matches++
			}
		}
		return float64(matches) / float64(n)
	}

	var subscores []float64
	if a, ok := roles.ByRole(RoleResult); ok {
		subscores = append(subscores, fractionFor(a.ColIndex, func(k CellKind) bool { return k == CellNumber }))
	}
	if a, ok := roles.ByRole(RoleUnit); ok {
		subscores = append(subscores, fractionFor(a.ColIndex, func(k CellKind) bool { return k == CellUnit }))
	}
	if a, ok := roles.ByRole(RoleReference); ok {
		subscores = append(subscores, fractionFor(a.ColIndex, func(k CellKind) bool { return k == CellRange }))
	} else if minA, okMin := roles.ByRole(RoleMin); okMin {
		if maxA, okMax := roles.ByRole(RoleMax); okMax {
			minScore := fractionFor(minA.ColIndex, func(k CellKind) bool { return k == CellNumber })
			maxScore := fractionFor(maxA.ColIndex, func(k CellKind) bool { return k == CellNumber })
			subscores = append(subscores, (minScore+maxScore)/2)
		}
	}

	if len(subscores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range subscores {
		sum += s
	}
	return sum / float64(len(subscores))
}

// columnFractions is the per-column type-fraction table computed over the
// sample rows (spec §4.3.2).
type columnFractions struct {
	num, rng, unit, date float64
}

func buildSample(body []token.Line, k int, maxSample int) [][]string {
	var sample [][]string
	for _, line := range body {
		if len(line) != k {
			continue
		}
		texts := line.Texts()
		hasUnit, hasNumOrRange := false, false
		for j := 1; j < k; j++ {
			switch ClassifyCell(texts[j]) {
			case CellUnit:
				hasUnit = true
			case CellNumber, CellRange:
				hasNumOrRange = true
			}
		}
		if !hasUnit || !hasNumOrRange {
			continue
		}
		sample = append(sample, texts)
		if len(sample) >= maxSample {
			break
		}
	}
	return sample
}

func computeColumnFractions(sample [][]string, k int) []columnFractions {
	fracs := make([]columnFractions, k)
	if len(sample) == 0 {
		return fracs
	}
	counts := make([]struct{ num, rng, unit, date int }, k)
	for _, row := range sample {
		for j := 1; j < k; j++ {
			switch ClassifyCell(row[j]) {
			case CellNumber:
				counts[j].num++
			case CellRange:
				counts[j].rng++
			case CellUnit:
				counts[j].unit++
			case CellDate:
				counts[j].date++
			}
		}
	}
	n := float64(len(sample))
	for j := 1; j < k; j++ {
		fracs[j] = columnFractions{
			num:  float64(counts[j].num) / n,
			rng:  float64(counts[j].rng) / n,
			unit: float64(counts[j].unit) / n,
			date: float64(counts[j].date) / n,
		}
	}
	return fracs
}

// ruleBasedInference implements spec §4.3.2.
func ruleBasedInference(body []token.Line, opts HeaderInfererOptions) (HeaderRoles, [][]string, bool) {
	if len(body) == 0 {
		return HeaderRoles{}, nil, false
	}

	rangeRowCount := 0
	for _, line := range body {
		for _, t := range line {
			if ClassifyCell(t.Text) == CellRange {
				rangeRowCount++
				break
			}
		}
	}
	r := float64(rangeRowCount) / float64(len(body))

	var k int
	switch {
	case r >= opts.RangeFractionThreshold:
		k = 4 // name, reference, result, unit
	case r == 0:
		k = 5 // name, min, max, result, unit
	default:
		return HeaderRoles{}, nil, false
	}

	maxSample := opts.MaxSampleRows
	if maxSample <= 0 {
		maxSample = 20
	}
	sample := buildSample(body, k, maxSample)
	if len(sample) == 0 {
		return HeaderRoles{}, nil, false
	}

	fracs := computeColumnFractions(sample, k)
	chosen := map[int]Role{0: RoleName}
	roles := HeaderRoles{Assignments: []RoleAssignment{{Role: RoleName, ColIndex: 0, Confidence: 1.0, Source: SourceInferred, MeetsThreshold: true}}}

	unitThreshold := opts.UnitRoleThreshold
	if len(sample) < opts.MinRowsForInference {
		unitThreshold -= opts.ShortTableBonus
	}
	unitCol := -1
	bestUnit := -1.0
	for j := 1; j < k; j++ {
		if fracs[j].unit > bestUnit {
			bestUnit = fracs[j].unit
			unitCol = j
		}
	}
	if unitCol == -1 || bestUnit < unitThreshold {
		return HeaderRoles{}, sample, false
	}
	chosen[unitCol] = RoleUnit
	roles.Assignments = append(roles.Assignments, RoleAssignment{Role: RoleUnit, ColIndex: unitCol, Confidence: bestUnit, Source: SourceInferred, MeetsThreshold: true})

	refCol := -1
	bestRef := -1.0
	for j := 1; j < k; j++ {
		if chosen[j] != "" {
			continue
		}
		if fracs[j].rng > bestRef {
			bestRef = fracs[j].rng
			refCol = j
		}
	}
	if refCol != -1 && bestRef >= opts.ReferenceRoleThreshold {
		chosen[refCol] = RoleReference
		roles.Assignments = append(roles.Assignments, RoleAssignment{Role: RoleReference, ColIndex: refCol, Confidence: bestRef, Source: SourceInferred, MeetsThreshold: true})
	}

	resultCol := -1
	bestResultScore := -1.0
	for j := 1; j < k; j++ {
		if chosen[j] != "" {
			continue
		}
		if fracs[j].date > opts.ForcedResultDateCap {
			continue
		}
		score := fracs[j].num
		if j == unitCol-1 {
			score += 0.05
		}
		score -= 0.5 * fracs[j].date
		if score > bestResultScore {
			bestResultScore = score
			resultCol = j
		}
	}
	if resultCol != -1 && bestResultScore >= opts.ResultRoleThreshold {
		chosen[resultCol] = RoleResult
		roles.Assignments = append(roles.Assignments, RoleAssignment{Role: RoleResult, ColIndex: resultCol, Confidence: bestResultScore, Source: SourceInferred, MeetsThreshold: true})
	} else {
		resultCol = -1
	}

	if resultCol == -1 && unitCol != -1 {
		for _, cand := range []int{unitCol - 1, unitCol + 1} {
			if cand < 1 || cand >= k || chosen[cand] != "" {
				continue
			}
			if fracs[cand].num >= opts.ForcedResultNumThreshold && fracs[cand].date <= opts.ForcedResultDateCap {
				chosen[cand] = RoleResult
				roles.Assignments = append(roles.Assignments, RoleAssignment{Role: RoleResult, ColIndex: cand, Confidence: fracs[cand].num, Source: SourceInferred, MeetsThreshold: true})
				resultCol = cand
				break
			}
		}
	}

	if k == 5 {
		// min/max columns are whatever's left unclaimed, in column order.
		var remaining []int
		for j := 1; j < k; j++ {
			if chosen[j] == "" {
				remaining = append(remaining, j)
			}
		}
		if len(remaining) >= 2 {
			chosen[remaining[0]] = RoleMin
			chosen[remaining[1]] = RoleMax
			roles.Assignments = append(roles.Assignments,
				RoleAssignment{Role: RoleMin, ColIndex: remaining[0], Confidence: fracs[remaining[0]].num, Source: SourceInferred, MeetsThreshold: true},
				RoleAssignment{Role: RoleMax, ColIndex: remaining[1], Confidence: fracs[remaining[1]].num, Source: SourceInferred, MeetsThreshold: true},
			)
		}
	}

	if !isValidHeaderRoles(roles) {
		return HeaderRoles{}, sample, false
	}
	return roles, sample, true
}

func isValidHeaderRoles(roles HeaderRoles) bool {
	_, hasName := roles.ByRole(RoleName)
	_, hasUnit := roles.ByRole(RoleUnit)
	_, hasResult := roles.ByRole(RoleResult)
	_, hasRef := roles.ByRole(RoleReference)
	_, hasMin := roles.ByRole(RoleMin)
	_, hasMax := roles.ByRole(RoleMax)
	if !hasName || !hasUnit || !hasResult {
		return false
	}
	if !hasRef && !(hasMin && hasMax) {
		return false
	}
	return roles.Validate() == nil
}

// InferHeader runs the full §4.3 cascade: OCR header path with alignment
// gate, then rule-based inference, then the optional external fallback.
func InferHeader(ctx context.Context, linesAboveBody []token.Line, bodyStart int, body []token.Line, opts HeaderInfererOptions, fallback HeaderRoleFallback) (HeaderRoles, RoleSource, int, error) {
	if roles, headerIdx, ok := findOCRHeader(linesAboveBody, bodyStart, opts.RoleMinDistinctHits); ok {
		sampleRows := opts.AlignmentSampleRows
		if sampleRows <= 0 {
			sampleRows = 20
		}
		if alignmentScore(body, roles, sampleRows) >= opts.AlignmentThreshold {
			return roles, SourceOCR, headerIdx, nil
		}
	}

	if roles, _, ok := ruleBasedInference(body, opts); ok {
		return roles, SourceInferred, -1, nil
	}

	if fallback != nil {
		maxSample := opts.MaxSampleRows
		if maxSample <= 0 {
			maxSample = 20
		}
		var raw [][]string
		for _, line := range body {
			raw = append(raw, line.Texts())
			if len(raw) >= maxSample {
				break
			}
		}
		if roles, ok := fallback.InferHeaderRoles(ctx, raw); ok {
			if err := roles.Validate(); err == nil {
				for i := range roles.Assignments {
					roles.Assignments[i].Source = SourceLLM
				}
				return roles, SourceLLM, -1, nil
			}
		}
	}

	return HeaderRoles{}, "", -1, &PipelineError{Kind: ErrRecoverableDegradation, Code: "header_inference_failed", Msg: "no header role assignment passed validation"}
}
