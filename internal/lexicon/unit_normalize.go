package lexicon

import (
	"regexp"
	"strings"
)

// unitOverrides are curated, whitelisted OCR-variant corrections (spec §4.5.2).
// They are applied as listed, without a lookup in the unit lexicon, and not
// every target is a unit of the reference table ("IU/L" is not). Keys are
// lowercased with all whitespace removed.
var unitOverrides = map[string]string{
	"mg/d":    "mg/dL",
	"pg":      "pg",
	"mmh":     "mmHg",
	"mmol":    "mmol/L",
	"g/d":     "g/dL",
	"ng/m":    "ng/mL",
	"iu/":     "IU/L",
	"meq/":    "mEq/L",
	"mg/d1":   "mg/dL",
	"u/1":     "U/L",
	"ugd":     "µg/dL",
	"mmo1/l":  "mmol/L",
	"ug/d1":   "µg/dL",
	"u/l":     "U/L",
}

var (
	reValuePrefix   = regexp.MustCompile(`^[-+]?(?:\d+(?:[.,]\d+)?|\.\d+)\s+\S`)
	reSlashSpaces   = regexp.MustCompile(`\s*/\s*`)
	reCaretSpaces   = regexp.MustCompile(`\s*\^\s*`)
	reExp3          = regexp.MustCompile(`(?i)^(?:10\s*\^?\s*3|10³|[x×]\s*10\s*\^?\s*3|k)\s*/?\s*[uµμ][lℓ]?$`)
	reExp6          = regexp.MustCompile(`(?i)^(?:10\s*\^?\s*6|10⁶|[x×]\s*10\s*\^?\s*6|m)\s*/?\s*[uµμ][lℓ]?$`)
	reMicroFoldable = regexp.MustCompile(`(^|/|[KM])u`)
	reLiterFold     = regexp.MustCompile(`/([lℓ])`)
	reDecorative    = regexp.MustCompile(`[|\x{200B}]`)
	reMultiSpace    = regexp.MustCompile(`\s+`)
)

// NormalizeUnitSimple is the single normalization site for unit strings
// (spec §4.5.2). It returns ok=false for the empty string or the UNKNOWN
// sentinel; every other input returns a (possibly unchanged) string.
//
// The function is idempotent: NormalizeUnitSimple(NormalizeUnitSimple(u)) ==
// NormalizeUnitSimple(u) for all u, because every branch below either leaves
// already-canonical forms untouched or maps straight to a canonical form that
// re-enters the same branch on a second pass.
func NormalizeUnitSimple(raw string) (string, bool) {
	s := reDecorative.ReplaceAllString(raw, "")
	s = strings.TrimFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ':' || r == ' ' || r == '\t' || r == '\n'
	})
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if s == "" || strings.EqualFold(s, "UNKNOWN") {
		return "", false
	}

	// A leading number followed by more text is a value+unit mixture, not a
	// bare unit; preserve it unchanged (spec: "12.5 mg/dL" -> unchanged).
	if reValuePrefix.MatchString(s) {
		return s, true
	}

	s = reSlashSpaces.ReplaceAllString(s, "/")
	s = reCaretSpaces.ReplaceAllString(s, "^")

	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if canonical, ok := unitOverrides[key]; ok {
		return canonical, true
	}

	if reExp3.MatchString(s) {
		return "K/µL", true
	}
	if reExp6.MatchString(s) {
		return "M/µL", true
	}

	s = strings.ReplaceAll(s, "μ", "µ")
	s = reMicroFoldable.ReplaceAllString(s, "${1}µ")
	s = reLiterFold.ReplaceAllString(s, "/L")

	s = reSlashSpaces.ReplaceAllString(s, "/")
	s = reCaretSpaces.ReplaceAllString(s, "^")

	return s, true
}

var reLeadingNumber = regexp.MustCompile(`^\s*([+-]?(?:\d+(?:[.,]\d+)?|\.\d+))\s*[HLN]?\s*$`)

// ParseNumericNorm extracts the leading numeric portion of a cell value,
// allowing a comma decimal separator and an optional trailing flag letter
// (spec §4.5.2). It returns the plain numeric string (dot decimal) or
// ok=false when the cell doesn't parse.
func ParseNumericNorm(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "UNKNOWN") {
		return "", false
	}
	m := reLeadingNumber.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(m[1], ",", "."), true
}
