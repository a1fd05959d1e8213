package pipeline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yourorg/labreport-extract/internal/token"
)

// LineGrouperOptions carries the tunables from spec §4.1.
type LineGrouperOptions struct {
	MinConfidence float64
	Alpha         float64
	NameMergeGap  float64
	NameMergeGapRatio float64
}

var (
	reStatusWord  = regexp.MustCompile(`(?i)^(NORMAL|LOW|HIGH)$`)
	reValueFlag   = regexp.MustCompile(`^([-+]?\d+(?:\.\d+)?)([HLN])$`)
	reShortParen  = regexp.MustCompile(`^\([^)]{1,12}\)$`)
	reSpaceParen  = regexp.MustCompile(`\s+\(`)

	numberPattern  = `[-+]?(?:\d+(?:[.,]\d+)?|\.\d+)(?:\s*[x×]\s*10\^?-?\d+)?`
	reFullSplit    = regexp.MustCompile(`^\s*([<>=≤≥~≈]?)\s*(` + numberPattern + `)\s+([\p{L}%‰/][^\s]*)\s*$`)
	reGluedSplit   = regexp.MustCompile(`^\s*([<>=≤≥~≈]?)\s*(` + numberPattern + `)([\p{L}%‰/][^\s]*)\s*$`)
	reRangeSep     = regexp.MustCompile(`[-–~]`)
)

// GroupLines runs the full LineGrouper algorithm (spec §4.1) and returns the
// ordered list of Lines. Returns a fatal PipelineError if any token has
// invalid geometry.
func GroupLines(tokens []token.Token, opts LineGrouperOptions) ([]token.Line, error) {
	for _, t := range tokens {
		if err := t.Validate(); err != nil {
			return nil, fatal("invalid_token", "%v", err)
		}
	}

	filtered := filterByConfidence(tokens, opts.MinConfidence)
	if len(filtered) == 0 {
		return nil, nil
	}

	tau := computeTau(filtered, opts.Alpha)
	lines := clusterLines(filtered, tau)

	medianGap := computeMedianGap(lines)
	gapThreshold := opts.NameMergeGap
	if gapThreshold <= 0 {
		gapThreshold = 14
	}
	ratio := opts.NameMergeGapRatio
	if ratio <= 0 {
		ratio = 1.6
	}
	if v := ratio * medianGap; v > gapThreshold {
		gapThreshold = v
	}

	out := make([]token.Line, 0, len(lines))
	for _, line := range lines {
		line = mergeNameFragment(line, gapThreshold)
		line = removeSpaceBeforeParenInFirst(line)
		line = splitValueUnitTokens(line)
		line = annotateValueFlags(line)
		line = removeStatusWords(line)
		out = append(out, line)
	}
	return out, nil
}

func filterByConfidence(tokens []token.Token, minConf float64) []token.Token {
	out := make([]token.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Confidence != nil && *t.Confidence < minConf {
			continue
		}
		out = append(out, t)
	}
	return out
}

func computeTau(tokens []token.Token, alpha float64) float64 {
	var heights []float64
	for _, t := range tokens {
		if h := t.RawH(); h > 0 {
			heights = append(heights, float64(h))
		}
	}
	if len(heights) == 0 {
		return 16 * alpha
	}
	return median(heights) * alpha
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

type indexedToken struct {
	tok   token.Token
	order int
}

// clusterLines sorts tokens by y_center (tie-broken by y_top), then sweeps
// top-to-bottom assigning tokens to lines using a re-seeded band of
// half-width tau (spec §4.1 step 2), then orders each line left-to-right.
func clusterLines(tokens []token.Token, tau float64) []token.Line {
	indexed := make([]indexedToken, len(tokens))
	for i, t := range tokens {
		indexed[i] = indexedToken{tok: t, order: i}
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		ci, cj := indexed[i].tok.YCenter, indexed[j].tok.YCenter
		if ci != cj {
			return ci < cj
		}
		return indexed[i].tok.YTop < indexed[j].tok.YTop
	})

	var lineGroups [][]indexedToken
	var seed float64
	haveSeed := false
	for _, it := range indexed {
		center := float64(it.tok.YCenter)
		if !haveSeed || center < seed-tau || center > seed+tau {
			lineGroups = append(lineGroups, nil)
			seed = center
			haveSeed = true
		}
		last := len(lineGroups) - 1
		lineGroups[last] = append(lineGroups[last], it)
	}

	lines := make([]token.Line, 0, len(lineGroups))
	for li, group := range lineGroups {
		sort.SliceStable(group, func(i, j int) bool {
			xi, xj := group[i].tok.XLeft, group[j].tok.XLeft
			if xi != xj {
				return xi < xj
			}
			return group[i].order < group[j].order
		})
		line := make(token.Line, len(group))
		for i, it := range group {
			tt := it.tok
			tt.LineIndex = li
			line[i] = tt
		}
		lines = append(lines, line)
	}
	return lines
}

// computeMedianGap computes the median horizontal gap between adjacent
// tokens within the same line, across all lines, used to scale the
// name-fragment merge threshold (spec §4.1 step 4).
func computeMedianGap(lines []token.Line) float64 {
	var gaps []float64
	for _, line := range lines {
		for i := 1; i < len(line); i++ {
			gap := float64(line[i].XLeft - line[i-1].XRight)
			if gap > 0 {
				gaps = append(gaps, gap)
			}
		}
	}
	return median(gaps)
}

func looksNumericOrUnit(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil {
		return true
	}
	if reValueFlag.MatchString(trimmed) {
		return true
	}
	return false
}

// mergeNameFragment fuses the first two tokens of a line into one when they
// form a glued-parenthesis name fragment like "SODIUM" + "(Na+)" (spec §4.1
// step 4). Applied at most once per line.
func mergeNameFragment(line token.Line, gapThreshold float64) token.Line {
	if len(line) < 2 {
		return line
	}
	first, second := line[0], line[1]
	gap := float64(second.XLeft - first.XRight)
	if gap > gapThreshold || gap < 0 {
		return line
	}
	if looksNumericOrUnit(first.Text) {
		return line
	}
	if !reShortParen.MatchString(strings.TrimSpace(second.Text)) {
		return line
	}

	merged := first
	merged.Text = first.Text + second.Text
	merged.XRight = second.XRight
	merged.Origin = token.OriginNameMerge
	if second.YBottom > merged.YBottom {
		merged.YBottom = second.YBottom
	}
	if second.YTop < merged.YTop {
		merged.YTop = second.YTop
	}

	out := make(token.Line, 0, len(line)-1)
	out = append(out, merged)
	out = append(out, line[2:]...)
	return out
}

func removeSpaceBeforeParenInFirst(line token.Line) token.Line {
	if len(line) == 0 {
		return line
	}
	if !strings.Contains(line[0].Text, " (") && !reSpaceParen.MatchString(line[0].Text) {
		return line
	}
	out := append(token.Line(nil), line...)
	first := out[0]
	first.Text = reSpaceParen.ReplaceAllString(first.Text, "(")
	out[0] = first
	return out
}

func unitLikeRejected(unit string) bool {
	u := strings.TrimSpace(unit)
	if u == "" || len(u) > 12 {
		return true
	}
	if reValueFlag.MatchString(u) || reStatusWord.MatchString(u) {
		return true
	}
	if u == "H" || u == "L" || u == "N" {
		return true
	}
	if reRangeSep.MatchString(u) {
		return true
	}
	return false
}

// splitValueUnitTokens splits tokens matching the "full" (space-separated)
// or "glued" number+unit patterns into two tokens (spec §4.1 step 6).
func splitValueUnitTokens(line token.Line) token.Line {
	out := make(token.Line, 0, len(line))
	for _, t := range line {
		if left, right, ok := trySplitValueUnit(t); ok {
			out = append(out, left, right)
			continue
		}
		out = append(out, t)
	}
	return out
}

func trySplitValueUnit(t token.Token) (token.Token, token.Token, bool) {
	text := t.Text
	m := reFullSplit.FindStringSubmatch(text)
	if m == nil {
		m = reGluedSplit.FindStringSubmatch(text)
	}
	if m == nil {
		return token.Token{}, token.Token{}, false
	}
	prefix, numPart, unitPart := m[1], m[2], m[3]
	if unitLikeRejected(unitPart) {
		return token.Token{}, token.Token{}, false
	}

	valueText := prefix + numPart
	mid := (t.XLeft + t.XRight) / 2

	left := t
	left.Text = valueText
	left.XRight = mid
	left.RawValue = text
	left.Origin = token.OriginSplitValue

	right := t
	right.Text = unitPart
	right.XLeft = mid
	right.RawUnit = text
	right.Origin = token.OriginSplitUnitCandidate

	return left, right, true
}

func annotateValueFlags(line token.Line) token.Line {
	out := make(token.Line, len(line))
	for i, t := range line {
		if m := reValueFlag.FindStringSubmatch(t.Text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				t.ValueNum = token.Float64(v)
				switch m[2] {
				case "H":
					t.ValueFlag = token.FlagHigh
				case "L":
					t.ValueFlag = token.FlagLow
				case "N":
					t.ValueFlag = token.FlagNormal
				}
			}
		}
		out[i] = t
	}
	return out
}

func removeStatusWords(line token.Line) token.Line {
	out := make(token.Line, 0, len(line))
	for _, t := range line {
		if reStatusWord.MatchString(strings.TrimSpace(t.Text)) {
			continue
		}
		out = append(out, t)
	}
	return out
}
