package lexicon

import "sync"

// UnitLexicon is the canonical-unit counterpart to CodeLexicon (spec §4.6).
// It is built from the units that appear in the test reference table plus a
// curated set of power-of-ten variants, and exposes the same upper/alnum
// lookup contract.
type UnitLexicon struct {
	canonical  map[string]bool
	upperIndex map[string]string
	alnumIndex map[string][]string
}

// curatedUnitVariants lists additional raw spellings that should resolve to a
// canonical unit even though they never appear verbatim in the reference
// table (spec §4.6: "add curated variants of power-of-ten forms").
var curatedUnitVariants = map[string]string{
	"10^3/µL":  "K/µL",
	"10^3/ul":  "K/µL",
	"X10^3/UL": "K/µL",
	"k/ul":     "K/µL",
	"K/ul":     "K/µL",
	"10^6/µL":  "M/µL",
	"10^6/ul":  "M/µL",
	"X10^6/UL": "M/µL",
	"m/ul":     "M/µL",
}

func buildUnitLexicon() *UnitLexicon {
	lx := &UnitLexicon{
		canonical:  make(map[string]bool),
		upperIndex: make(map[string]string),
		alnumIndex: make(map[string][]string),
	}

	add := func(unit string) {
		if unit == "" {
			return
		}
		canonical, ok := NormalizeUnitSimple(unit)
		if !ok || canonical == "" {
			return
		}
		if lx.canonical[canonical] {
			return
		}
		lx.canonical[canonical] = true
		upperKey, alnumKey := codeVariants(canonical)
		lx.upperIndex[upperKey] = canonical
		lx.alnumIndex[alnumKey] = append(lx.alnumIndex[alnumKey], canonical)
	}

	for _, e := range referenceTests {
		add(e.Unit)
	}
	for _, canonical := range curatedUnitVariants {
		add(canonical)
	}

	return lx
}

var (
	unitLexiconOnce sync.Once
	unitLexiconVal  *UnitLexicon
)

// GetUnitLexicon returns the process-wide cached unit lexicon.
func GetUnitLexicon() *UnitLexicon {
	unitLexiconOnce.Do(func() {
		unitLexiconVal = buildUnitLexicon()
	})
	return unitLexiconVal
}

// ResolveUnit resolves a raw unit string to a canonical spelling using the
// same normalize-then-index-lookup contract as ResolveCode (spec §4.6).
// Unlike NormalizeUnitSimple (the single normalization site used inline by
// RowNormalizer), this also validates the result against the known-unit set.
// NormalizeUnitSimple does not call it: its whitelisted OCR corrections are
// applied without this check.
func (lx *UnitLexicon) ResolveUnit(token string) (string, bool) {
	normalized, ok := NormalizeUnitSimple(token)
	if !ok {
		return "", false
	}
	if lx.canonical[normalized] {
		return normalized, true
	}
	upperKey, alnumKey := codeVariants(normalized)
	if canonical, ok := lx.upperIndex[upperKey]; ok {
		return canonical, true
	}
	if candidates := lx.alnumIndex[alnumKey]; len(candidates) == 1 {
		return candidates[0], true
	}
	return "", false
}

// IsKnownUnit reports whether a canonical unit string is present in the
// lexicon (exact match, no normalization). The pipeline does not call it;
// NormalizeUnitSimple applies its OCR corrections without a lexicon check.
func (lx *UnitLexicon) IsKnownUnit(canonical string) bool {
	return lx.canonical[canonical]
}
