package pipeline

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/yourorg/labreport-extract/internal/token"
)

// MetadataOptions carries the tunables from spec §4.7.
type MetadataOptions struct {
	NameConcatMaxTokens        int
	NameConcatMinGapPx         float64
	NameConcatMaxGapMultiplier float64
}

func defaultMetadataOptions(opts MetadataOptions) MetadataOptions {
	if opts.NameConcatMaxTokens <= 0 {
		opts.NameConcatMaxTokens = 3
	}
	if opts.NameConcatMinGapPx <= 0 {
		opts.NameConcatMinGapPx = 16
	}
	if opts.NameConcatMaxGapMultiplier <= 0 {
		opts.NameConcatMaxGapMultiplier = 1.8
	}
	return opts
}

var (
	patientLabels = []string{"환자명", "환자", "반려동물", "동물명", "동물이름", "pet", "animal", "name", "patient"}
	clientLabels  = []string{"의뢰인", "보호자", "owner", "client", "고객", "고객명", "의뢰"}

	datePositiveLabels = []string{"검사일", "검사일자", "채혈", "채취", "collection", "collected"}
	dateNeutralLabels  = []string{"일자", "date"}
	dateNegativeLabels = []string{"보고", "출력", "발행", "인쇄", "등록", "접수"}

	reDateFull  = regexp.MustCompile(`\b\d{4}[-./]\d{1,2}[-./]\d{1,2}\b`)
	reDateShort = regexp.MustCompile(`\b\d{2}[-./]\d{1,2}[-./]\d{1,2}\b`)
	reDateFull4 = regexp.MustCompile(`^\d{4}[-./]\d{1,2}[-./]\d{1,2}$`)
	reLongDigit = regexp.MustCompile(`^\d{6,}$`)

	reKorHospital = regexp.MustCompile(`([가-힣A-Za-z0-9&'"()·\- ]{1,60}?(?:동물)?병원)(?:[^가-힣A-Za-z0-9_]|$)`)
	reEngHospital = regexp.MustCompile(`(?i)([A-Za-z0-9&' .\-]{2,80}?(?:Animal Hospital|Veterinary (?:Clinic|Hospital|Center|Centre)|Animal Medical Center|Pet Clinic|Vet Clinic|Animal Clinic))`)

	negativeAddressTokens = []string{"tel", "fax", "전화", "mobile", "http", "www", "@", "e-mail", "email", "주소", "address", "도로명"}
	headerLikeTokens      = []string{"name", "unit", "result", "reference", "min", "max", "ref range", "ref. range", "range", "parameter", "test", "value"}
	separatorTokens       = map[string]bool{":": true, "：": true, "-": true, "~": true, "–": true, "—": true}
)

func normSpace(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func joinLineText(line token.Line) string {
	parts := make([]string, len(line))
	for i, t := range line {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// metaCandidate is one scored guess for a metadata field (spec §4.7).
type metaCandidate struct {
	Value     string
	Score     float64
	LineIndex int
}

func metaDateLike(s string) bool {
	if reDateFull.MatchString(s) || reDateShort.MatchString(s) {
		return true
	}
	return reLongDigit.MatchString(s)
}

func pruneTrailingIDOrDate(val string) string {
	parts := strings.Fields(normSpace(val))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if reLongDigit.MatchString(p) {
			break
		}
		if metaDateLike(p) {
			break
		}
		out = append(out, p)
	}
	return normSpace(strings.Join(out, " "))
}

func extractAfterLabel(text, label string) (string, bool) {
	low := strings.ToLower(text)
	idx := strings.Index(low, strings.ToLower(label))
	if idx < 0 {
		return "", false
	}
	tail := strings.TrimLeft(text[idx+len(label):], " \t")
	if tail == "" {
		return "", false
	}
	r := []rune(tail)
	if separatorTokens[string(r[0])] {
		rest := strings.TrimLeft(tail[len(string(r[0])):], " \t")
		if rest != "" {
			return normSpace(rest), true
		}
		return "", false
	}
	return normSpace(tail), true
}

func medianGapPx(line token.Line) float64 {
	var gaps []float64
	for i := 0; i+1 < len(line); i++ {
		g := float64(line[i+1].XLeft - line[i].XRight)
		if g >= 0 {
			gaps = append(gaps, g)
		}
	}
	return median(gaps)
}

// extractNameAfterLabelByGeometry concatenates tokens to the right of a
// label anchor within a gap budget (spec §4.7 patient/client name geometry rule).
func extractNameAfterLabelByGeometry(line token.Line, label string, opts MetadataOptions) (string, bool) {
	anchor := -1
	labLow := strings.ToLower(label)
	for i, t := range line {
		if strings.Contains(strings.ToLower(t.Text), labLow) {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return "", false
	}

	gapThresh := math.Max(opts.NameConcatMinGapPx, opts.NameConcatMaxGapMultiplier*medianGapPx(line))
	gapThresh = math.Max(gapThresh, opts.NameConcatMinGapPx)

	var collected []string
	prevRight := line[anchor].XRight
	for j := anchor + 1; j < len(line); j++ {
		t := line[j]
		if t.Text == "" {
			continue
		}
		if separatorTokens[t.Text] {
			prevRight = t.XRight
			continue
		}
		gap := float64(t.XLeft - prevRight)
		if gap > gapThresh {
			break
		}
		if reLongDigit.MatchString(t.Text) || metaDateLike(t.Text) {
			break
		}
		collected = append(collected, t.Text)
		prevRight = t.XRight
		if len(collected) >= opts.NameConcatMaxTokens {
			break
		}
	}

	val := normSpace(strings.Join(collected, " "))
	if val == "" {
		return "", false
	}
	return pruneTrailingIDOrDate(val), true
}

func looksLikeName(v string) bool {
	v = normSpace(v)
	if v == "" || len(v) > 40 {
		return false
	}
	if regexp.MustCompile(`^[^\p{L}]+$`).MatchString(v) {
		return false
	}
	low := strings.ToLower(v)
	for _, bad := range []string{"male", "female", "m/", "f/", "성별", "sex:"} {
		if strings.Contains(low, bad) {
			return false
		}
	}
	return true
}

func isHeaderLikeText(text string) bool {
	low := strings.ToLower(normSpace(text))
	count := 0
	for _, w := range headerLikeTokens {
		if strings.Contains(low, w) {
			count++
		}
	}
	return count >= 2
}

func dateScoreContext(lowText string) float64 {
	score := 0.0
	for _, p := range datePositiveLabels {
		if strings.Contains(lowText, strings.ToLower(p)) {
			score += 2.0
		}
	}
	for _, p := range dateNeutralLabels {
		if strings.Contains(lowText, strings.ToLower(p)) {
			score += 0.5
		}
	}
	for _, n := range dateNegativeLabels {
		if strings.Contains(lowText, strings.ToLower(n)) {
			score -= 1.5
		}
	}
	return score
}

func pickBest(items []metaCandidate) string {
	if len(items) == 0 {
		return ""
	}
	best := items[0]
	bestKey := best.Score + 0.1*math.Log1p(float64(best.LineIndex))
	for _, it := range items[1:] {
		key := it.Score + 0.1*math.Log1p(float64(it.LineIndex))
		if key > bestKey {
			best, bestKey = it, key
		}
	}
	return normSpace(best.Value)
}

// ExtractMetadata scans the region above the body for hospital/client/patient
// names and the inspection date (spec §4.7). headerIndex is -1 when no OCR
// header line was found.
func ExtractMetadata(ctx context.Context, region []token.Line, headerIndex int, fallback PatientNameFallback, opts MetadataOptions) DocumentResult {
	opts = defaultMetadataOptions(opts)
	if fallback == nil {
		fallback = noopPatientNameFallback{}
	}

	candidates := map[string][]metaCandidate{
		"hospital_name":   nil,
		"client_name":     nil,
		"patient_name":    nil,
		"inspection_date": nil,
	}

	for i, line := range region {
		text := joinLineText(line)
		low := strings.ToLower(text)

		// English hospital names ("Sample Animal Hospital", "Happy Pet Clinic")
		// contain patient label words; they are not searched for labels.
		patientLow := strings.ToLower(reEngHospital.ReplaceAllString(text, ""))
		for _, lab := range patientLabels {
			if !strings.Contains(patientLow, strings.ToLower(lab)) {
				continue
			}
			val, ok := extractNameAfterLabelByGeometry(line, lab, opts)
			if !ok {
				if v, ok2 := extractAfterLabel(text, lab); ok2 {
					val, ok = pruneTrailingIDOrDate(v), true
				}
			}
			if lab == "name" {
				if i == headerIndex || (ok && isHeaderLikeText(text)) || (ok && isHeaderLikeText(val)) {
					ok = false
				}
			}
			if ok && looksLikeName(val) {
				candidates["patient_name"] = append(candidates["patient_name"], metaCandidate{Value: val, Score: 1.0, LineIndex: i})
				break
			}
		}

		hasAddressToken := false
		for _, tok := range negativeAddressTokens {
			if strings.Contains(low, tok) {
				hasAddressToken = true
				break
			}
		}
		if !hasAddressToken {
			for _, m := range reKorHospital.FindAllStringSubmatch(text, -1) {
				cand := normSpace(m[1])
				if cand == "" || cand == "병원" || cand == "동물병원" || len(cand) < 3 || len(cand) > 60 {
					continue
				}
				suffixBonus := 1.2
				if strings.HasSuffix(cand, "동물병원") {
					suffixBonus = 1.6
				}
				lenBonus := math.Min(float64(len([]rune(cand)))/18.0, 1.0)
				idxBonus := -0.2 * math.Log1p(float64(i))
				score := 1.0 + suffixBonus + lenBonus + idxBonus
				candidates["hospital_name"] = append(candidates["hospital_name"], metaCandidate{Value: cand, Score: score, LineIndex: i})
			}
			for _, m := range reEngHospital.FindAllStringSubmatch(text, -1) {
				cand := normSpace(m[1])
				if len(cand) < 4 || len(cand) > 80 || !regexp.MustCompile(`[A-Za-z]`).MatchString(cand) {
					continue
				}
				lowC := strings.ToLower(cand)
				var suf float64
				switch {
				case strings.Contains(lowC, "animal hospital"):
					suf = 1.4
				case strings.Contains(lowC, "veterinary hospital"):
					suf = 1.3
				case strings.Contains(lowC, "veterinary clinic"):
					suf = 1.1
				case strings.Contains(lowC, "animal medical center"):
					suf = 1.2
				case strings.Contains(lowC, "vet clinic"), strings.Contains(lowC, "pet clinic"), strings.Contains(lowC, "animal clinic"):
					suf = 0.9
				default:
					suf = 0.8
				}
				idxBonus := -0.2 * math.Log1p(float64(i))
				lenBonus := math.Min(float64(len(cand))/20.0, 1.0)
				score := 1.0 + suf + lenBonus + idxBonus
				candidates["hospital_name"] = append(candidates["hospital_name"], metaCandidate{Value: cand, Score: score, LineIndex: i})
			}
		}

		for _, lab := range clientLabels {
			if !strings.Contains(low, strings.ToLower(lab)) {
				continue
			}
			val, ok := extractNameAfterLabelByGeometry(line, lab, opts)
			if !ok {
				if v, ok2 := extractAfterLabel(text, lab); ok2 {
					val, ok = pruneTrailingIDOrDate(v), true
				}
			}
			if i == headerIndex || (ok && isHeaderLikeText(text)) {
				ok = false
			}
			if ok && looksLikeName(val) {
				candidates["client_name"] = append(candidates["client_name"], metaCandidate{Value: val, Score: 0.9, LineIndex: i})
				break
			}
		}

		if ds := dateScoreContext(low); ds > -0.5 {
			for _, re := range []*regexp.Regexp{reDateFull, reDateShort} {
				m := re.FindString(text)
				if m == "" {
					continue
				}
				val := normSpace(m)
				bonus := 0.7
				if reDateFull4.MatchString(val) {
					bonus = 1.5
				}
				candidates["inspection_date"] = append(candidates["inspection_date"], metaCandidate{Value: val, Score: ds + bonus, LineIndex: i})
				break
			}
		}
	}

	result := DocumentResult{
		HospitalName:   pickBest(candidates["hospital_name"]),
		ClientName:     pickBest(candidates["client_name"]),
		PatientName:    pickBest(candidates["patient_name"]),
		InspectionDate: pickBest(candidates["inspection_date"]),
	}

	if result.PatientName == "" {
		headerText := make([]string, len(region))
		for i, line := range region {
			headerText[i] = joinLineText(line)
		}
		if name, ok := fallback.ExtractPatientName(ctx, strings.Join(headerText, "\n"), result.ClientName); ok {
			if name != "" && name != result.ClientName {
				result.PatientName = name
			}
		}
	}

	return result
}
