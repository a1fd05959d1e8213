// Package lexicon builds the canonical test-code and unit reference tables
// used to recognize a table body and normalize its cells (spec §4.2, §4.5,
// §4.6). Both lexicons are built once from literal data and cached.
package lexicon

import (
	"regexp"
	"strings"
	"sync"
)

// TestEntry is one canonical veterinary clinical-chemistry/CBC test code.
type TestEntry struct {
	Code string
	Name string
	Unit string // "" means the test has no unit (e.g. pH, ratios, qualitative)
}

// referenceTests mirrors the veterinary reference panel this codebase was
// built against: blood gas, CBC, chemistry, coagulation, immunology, urine,
// and endocrine/special tests. OCR case variants are handled by upper_index;
// the few entries that differ only by case (e.g. "GLU" and "Glu") collapse
// to one canonical spelling in BuildCodeLexicon.
var referenceTests = []TestEntry{
	// Blood gas
	{"AG", "Anion Gap", "mmol/L"},
	{"AnGap", "Anion Gap", "mmol/L"},
	{"BB", "Buffer Base", "mmol/L"},
	{"BE", "Base Excess", "mmol/L"},
	{"BE(Art)", "Base Excess (Arterial)", "mmol/L"},
	{"BE(Ven)", "Base Excess (Venous)", "mmol/L"},
	{"BE-Ecf", "Base Excess (Extracellular Fluid)", "mmol/L"},
	{"COHb", "Carboxyhemoglobin", "%"},
	{"FHHb", "Deoxyhemoglobin Fraction", "%"},
	{"FO2Hb", "Oxyhemoglobin Fraction", "%"},
	{"HCO3", "Bicarbonate", "mmol/L"},
	{"HCO3(Art)", "Bicarbonate (Arterial)", "mmol/L"},
	{"HCO3(Ven)", "Bicarbonate (Venous)", "mmol/L"},
	{"HCO3-Std", "Standard Bicarbonate", "mmol/L"},
	{"iCa-pH7.4", "Ionized Calcium (pH 7.4)", "mmol/L"},
	{"LAC", "Lactate", "mmol/L"},
	{"Lac(Art)", "Lactate (Arterial)", "mmol/L"},
	{"Lac(Ven)", "Lactate (Venous)", "mmol/L"},
	{"MetHb", "Methemoglobin", "%"},
	{"O2SAT", "O2 Saturation", "%"},
	{"pCO2", "Partial Pressure of CO2", "mmHg"},
	{"pCO2(Art)", "Partial Pressure of CO2 (Arterial)", "mmHg"},
	{"pCO2(Ven)", "Partial Pressure of CO2 (Venous)", "mmHg"},
	{"PCO2(T)", "Temperature-corrected pCO2", "mmHg"},
	{"pH", "Blood pH", ""},
	{"pH(Art)", "Blood pH (Arterial)", ""},
	{"pH(Ven)", "Blood pH (Venous)", ""},
	{"PH(T)", "Temperature-corrected pH", ""},
	{"pO2", "Partial Pressure of O2", "mmHg"},
	{"pO2(Art)", "Partial Pressure of O2 (Arterial)", "mmHg"},
	{"pO2(Ven)", "Partial Pressure of O2 (Venous)", "mmHg"},
	{"pO2(A-a)", "Alveolar-Arterial Oxygen Gradient", "mmHg"},
	{"PO2(T)", "Temperature-corrected pO2", "mmHg"},
	{"sO2", "O2 Saturation", "%"},
	{"sO2(Art)", "O2 Saturation (Arterial)", "%"},
	{"sO2(Ven)", "O2 Saturation (Venous)", "%"},
	{"TCO2", "Total CO2", "mmol/L"},
	{"TCO2(Art)", "Total CO2 (Arterial)", "mmol/L"},
	{"TCO2(Ven)", "Total CO2 (Venous)", "mmol/L"},
	{"tHb", "Total Hemoglobin", "g/dL"},

	// CBC
	{"BASO", "Basophils (Absolute)", "K/µL"},
	{"BASO%", "Basophils %", "%"},
	{"CHr", "Reticulocyte Hemoglobin Content", "pg"},
	{"EOSIN", "Eosinophils (Absolute)", "K/µL"},
	{"EOS%", "Eosinophils %", "%"},
	{"HCT", "Hematocrit", "%"},
	{"HGB", "Hemoglobin", "g/dL"},
	{"LYMPH%", "Lymphocytes %", "%"},
	{"LYMPH", "Lymphocytes (Absolute)", "K/µL"},
	{"LYM", "Lymphocytes (Absolute)", "K/µL"},
	{"LYM%", "Lymphocytes %", "%"},
	{"LYMPHO%", "Lymphocytes %", "%"},
	{"Retics%", "Reticulocyte Percentage", "%"},
	{"MCH", "Mean Corpuscular Hemoglobin", "pg"},
	{"MCHC", "Mean Corpuscular Hemoglobin Concentration", "g/dL"},
	{"MCV", "Mean Corpuscular Volume", "fL"},
	{"MCVr", "Mean Corpuscular Volume (retic)", "fL"},
	{"MONO", "Monocytes (Absolute)", "K/µL"},
	{"MONO%", "Monocytes %", "%"},
	{"NEUT", "Neutrophils (Absolute)", "K/µL"},
	{"NEU%", "Neutrophils %", "%"},
	{"NEU", "Neutrophils (Absolute)", "K/µL"},
	{"NEUTROPHILS%", "Neutrophils %", "%"},
	{"PCT", "Plateletcrit", "%"},
	{"PCT%", "Plateletcrit %", "%"},
	{"PDW", "Platelet Distribution Width", "fL"},
	{"PLT", "Platelets", "K/µL"},
	{"RBC", "Red Blood Cells", "M/µL"},
	{"RDW", "Red Cell Distribution Width", "%"},
	{"RDW-CV", "Red Cell Distribution Width (CV)", "%"},
	{"RDW-SD", "Red Cell Distribution Width (SD)", "fL"},
	{"RETIC", "Reticulocyte Count", "K/µL"},
	{"RETIC-HGB", "Reticulocyte Hemoglobin Content", "pg"},
	{"RETHGB", "Reticulocyte Hemoglobin Content", "pg"},
	{"WBC", "White Blood Cells", "K/µL"},
	{"WBC-A", "White Blood Cells (Analyzer variant)", "K/µL"},
	{"WBC-BASO", "Basophils (Absolute)", "K/µL"},
	{"WBC-BASO%", "Basophils %", "%"},
	{"WBC-EOS", "Eosinophils (Absolute)", "K/µL"},
	{"WBC-EOS%", "Eosinophils %", "%"},
	{"WBC-LYM", "Lymphocytes (Absolute)", "K/µL"},
	{"WBC-LYM%", "Lymphocytes %", "%"},
	{"WBC-MONO", "Monocytes (Absolute)", "K/µL"},
	{"WBC-MONO%", "Monocytes %", "%"},
	{"WBC-NEU", "Neutrophils (Absolute)", "K/µL"},
	{"WBC-NEU%", "Neutrophils %", "%"},
	{"MPV", "Mean Platelet Volume", "fL"},

	// Chemistry
	{"A_G", "Albumin/Globulin Ratio", ""},
	{"ALB", "Albumin", "g/dL"},
	{"Albumin", "Albumin", "g/dL"},
	{"ALP", "Alkaline Phosphatase", "U/L"},
	{"ALT", "Alanine Aminotransferase", "U/L"},
	{"AST", "Aspartate Aminotransferase", "U/L"},
	{"BA", "Bile Acids", "µmol/L"},
	{"BIL-Total", "Bilirubin, Total", "mg/dL"},
	{"BUN", "Blood Urea Nitrogen", "mg/dL"},
	{"BUN/CRE", "BUN/Creatinine Ratio", ""},
	{"BUN/CREA", "BUN/Creatinine Ratio", ""},
	{"Ca", "Calcium", "mg/dL"},
	{"Ca++", "Ionized Calcium", "mmol/L"},
	{"CHOL", "Cholesterol", "mg/dL"},
	{"CHOL_HDL_RATIO", "Cholesterol/HDL Ratio", ""},
	{"CK", "Creatine Kinase", "U/L"},
	{"Cl-", "Chloride", "mEq/L"},
	{"CPK", "Creatine Phosphokinase", "U/L"},
	{"CRE", "Creatinine", "mg/dL"},
	{"CREA", "Creatinine", "mg/dL"},
	{"GGT", "Gamma-Glutamyl Transferase", "U/L"},
	{"GLOB", "Globulin (calculated)", "g/dL"},
	{"GLOB(calc)", "Globulin (calculated)", "g/dL"},
	{"Globulin", "Globulin", "g/dL"},
	{"GLU", "Glucose", "mg/dL"},
	{"Glu", "Glucose", "mg/dL"},
	{"HDL_C", "High-Density Lipoprotein Cholesterol", "mg/dL"},
	{"IP", "Inorganic Phosphorus", "mg/dL"},
	{"K+", "Potassium", "mEq/L"},
	{"LDH", "Lactate Dehydrogenase", "U/L"},
	{"LDL_C", "Low-Density Lipoprotein Cholesterol", "mg/dL"},
	{"Mg", "Magnesium", "mg/dL"},
	{"Na/K", "Sodium/Potassium Ratio", ""},
	{"Na_K", "Sodium/Potassium Ratio", ""},
	{"Na+", "Sodium", "mEq/L"},
	{"NH3", "Ammonia", "µg/dL"},
	{"PHOS", "Phosphorus", "mg/dL"},
	{"T.Billirubin", "Total Bilirubin", "mg/dL"},
	{"T.Protein", "Total Protein", "g/dL"},
	{"T4", "Total Thyroxine", "µg/dL"},
	{"TBIL", "Total Bilirubin", "mg/dL"},
	{"TCHO", "Total Cholesterol", "mg/dL"},
	{"TG", "Triglyceride", "mg/dL"},
	{"TP", "Total Protein", "g/dL"},
	{"v-AMYL", "Amylase (Vet)", "U/L"},
	{"v-LIP", "Lipase (Vet)", "U/L"},
	{"ALKP", "Alkaline Phosphatase", "U/L"},
	{"AMYL", "Amylase", "U/L"},
	{"LIPA", "Lipase", "U/L"},
	{"AST/GOT", "Aspartate Aminotransferase", "U/L"},
	{"ALB/GLOB", "Albumin/Globulin Ratio", ""},
	{"Triglyceride(TG)", "Triglycerides", "mg/dL"},
	{"SDMA", "Symmetric Dimethylarginine", "µg/dL"},
	{"Fructosamine", "Fructosamine", "µmol/L"},
	{"Lactate", "Lactate", "mmol/L"},

	// Coagulation
	{"aPTT", "Activated Partial Thromboplastin Time", "sec"},
	{"FIB", "Fibrinogen", "mg/dL"},
	{"PT", "Prothrombin Time", "sec"},

	// Immunology
	{"CORT", "Cortisol", "µg/dL"},
	{"cPL", "Canine Pancreatic Lipase", "µg/L"},
	{"CRP", "C-Reactive Protein", "mg/dL"},
	{"fPL", "Feline Pancreatic Lipase", "µg/L"},
	{"FSAA", "Feline Serum Amyloid A", "µg/mL"},
	{"FT4", "Free Thyroxine", "ng/dL"},
	{"proBNP", "NT-proBNP", "pmol/L"},
	{"SAA", "Serum Amyloid A", "µg/mL"},
	{"SAA-Vcheck", "Serum Amyloid A (Vcheck)", "µg/mL"},
	{"TSH", "Thyroid Stimulating Hormone", "ng/mL"},

	// Urine
	{"Bacteria", "Bacteria", ""},
	{"BIL", "Bilirubin", "mg/dL"},
	{"BLO", "Blood (Hemoglobin)", ""},
	{"Crystals", "Crystals", ""},
	{"GLU_U", "Urine Glucose", "mg/dL"},
	{"KET", "Ketones", "mg/dL"},
	{"pH_U", "Urine pH", ""},
	{"PRO", "Urine Protein", "mg/dL"},
	{"RBC_U", "RBC (Urine)", "/hpf"},
	{"SG", "Specific Gravity", ""},
	{"WBC_U", "WBC (Urine)", "/hpf"},

	// Endocrine / special
	{"Heartworm Ag", "Heartworm Antigen Test", "Positive/Negative"},
	{"FeLV", "Feline Leukemia Virus Antigen", "Positive/Negative"},
	{"FIV", "Feline Immunodeficiency Virus Antibody", "Positive/Negative"},

	// Other
	{"BP", "Blood Pressure", "mmHg"},
}

// CodeLexicon is the built, immutable lookup structure for canonical test
// codes (spec §4.6).
type CodeLexicon struct {
	canonical  map[string]TestEntry   // canonical code -> entry
	upperIndex map[string]string      // upper_key -> canonical code
	alnumIndex map[string][]string    // alnum_key -> canonical codes sharing it
}

var (
	codeLexiconOnce sync.Once
	codeLexiconVal  *CodeLexicon
)

var reWhitespace = regexp.MustCompile(`\s+`)
var reNonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

func codeVariants(code string) (upperKey, alnumKey string) {
	upperKey = reWhitespace.ReplaceAllString(strings.ToUpper(code), "")
	alnumKey = reNonAlnum.ReplaceAllString(upperKey, "")
	return upperKey, alnumKey
}

// BuildCodeLexicon builds the lexicon from referenceTests. Entries sharing an
// upper_key (pure case/whitespace variants) collapse to one canonical
// spelling, preferring the fully-uppercase form (spec §4.6 "canonical code
// selection").
func BuildCodeLexicon() *CodeLexicon {
	byUpper := make(map[string][]TestEntry)
	for _, e := range referenceTests {
		key, _ := codeVariants(e.Code)
		byUpper[key] = append(byUpper[key], e)
	}

	lx := &CodeLexicon{
		canonical:  make(map[string]TestEntry),
		upperIndex: make(map[string]string),
		alnumIndex: make(map[string][]string),
	}

	for _, variants := range byUpper {
		chosen := variants[0]
		for _, v := range variants[1:] {
			if scoreBeats(v.Code, chosen.Code) {
				chosen = v
			}
		}
		lx.canonical[chosen.Code] = chosen
	}

	for code := range lx.canonical {
		upperKey, alnumKey := codeVariants(code)
		if existing, ok := lx.upperIndex[upperKey]; ok {
			if existing != strings.ToUpper(existing) && code == strings.ToUpper(code) {
				lx.upperIndex[upperKey] = code
			}
		} else {
			lx.upperIndex[upperKey] = code
		}
		lx.alnumIndex[alnumKey] = append(lx.alnumIndex[alnumKey], code)
	}

	return lx
}

// uppercaseScore ranks candidate spellings when collapsing case variants:
// fully uppercase wins, then more uppercase letters, then shorter, then
// lexical order (mirrors the Python reference implementation's tie-break).
func uppercaseScore(s string) (allUpper int, upperCount int, negLen int) {
	if s == strings.ToUpper(s) {
		allUpper = 1
	}
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			upperCount++
		}
	}
	return allUpper, upperCount, -len(s)
}

// scoreBeats reports whether candidate a should replace candidate b as the
// canonical spelling for a collapsed case-variant group.
func scoreBeats(a, b string) bool {
	aAll, aUp, aLen := uppercaseScore(a)
	bAll, bUp, bLen := uppercaseScore(b)
	if aAll != bAll {
		return aAll > bAll
	}
	if aUp != bUp {
		return aUp > bUp
	}
	if aLen != bLen {
		return aLen > bLen
	}
	return a < b
}

// GetCodeLexicon returns the process-wide cached lexicon, building it on
// first use.
func GetCodeLexicon() *CodeLexicon {
	codeLexiconOnce.Do(func() {
		codeLexiconVal = BuildCodeLexicon()
	})
	return codeLexiconVal
}

var (
	rePercentParen = regexp.MustCompile(`\(\s*%\s*\)`)
	rePercentSpace = regexp.MustCompile(`\s+%`)
	reHashParen    = regexp.MustCompile(`\(\s*#\s*\)`)
	reHashSpace    = regexp.MustCompile(`\s+#`)
	reTrailingHash = regexp.MustCompile(`#\s*$`)
)

func normalizePercentHashVariants(s string) string {
	s = rePercentParen.ReplaceAllString(s, "%")
	s = rePercentSpace.ReplaceAllString(s, "%")
	s = reHashParen.ReplaceAllString(s, "#")
	s = reHashSpace.ReplaceAllString(s, "#")
	return s
}

var symbolHints = []string{"+", "-", "%", "/", "_", "."}

func presentSymbols(s string) map[string]bool {
	present := make(map[string]bool)
	for _, h := range symbolHints {
		if strings.Contains(s, h) {
			present[h] = true
		}
	}
	return present
}

func filterBySymbols(candidates []string, present map[string]bool) []string {
	if len(present) == 0 || len(candidates) == 0 {
		return candidates
	}
	var filtered []string
	for _, c := range candidates {
		for h := range present {
			if strings.Contains(c, h) {
				filtered = append(filtered, c)
				break
			}
		}
	}
	return filtered
}

// ResolveCode resolves an OCR-extracted token to its canonical test code
// (spec §4.6). It returns ok=false when the token is empty or remains
// ambiguous after every fallback — callers must not guess in that case.
func (lx *CodeLexicon) ResolveCode(token string) (string, bool) {
	raw := strings.TrimSpace(token)
	if raw == "" {
		return "", false
	}

	rawNorm := normalizePercentHashVariants(raw)

	// A token ending in "#" whose base (without the "#") is already a known
	// code resolves to the base, not a literal "<CODE>#" entry (spec §8:
	// "RETIC#" -> "RETIC" when "RETIC#" itself is absent).
	if reTrailingHash.MatchString(rawNorm) {
		base := reTrailingHash.ReplaceAllString(rawNorm, "")
		baseKey := reWhitespace.ReplaceAllString(strings.ToUpper(base), "")
		if canonical, ok := lx.upperIndex[baseKey]; ok {
			return canonical, true
		}
	}

	upperKey := reWhitespace.ReplaceAllString(strings.ToUpper(rawNorm), "")
	if canonical, ok := lx.upperIndex[upperKey]; ok {
		return canonical, true
	}

	alnumKey := reNonAlnum.ReplaceAllString(upperKey, "")
	candidates := append([]string(nil), lx.alnumIndex[alnumKey]...)
	if len(candidates) == 1 {
		return candidates[0], true
	}

	present := presentSymbols(rawNorm)
	if filtered := filterBySymbols(candidates, present); len(filtered) > 0 {
		if len(filtered) == 1 {
			return filtered[0], true
		}
		candidates = filtered
	}

	// OCR 0/O confusion fallback (spec §8: "p02" -> "pO2").
	upperKeyO := strings.ReplaceAll(upperKey, "0", "O")
	if upperKeyO != upperKey {
		if canonical, ok := lx.upperIndex[upperKeyO]; ok {
			return canonical, true
		}
		alnumKeyO := reNonAlnum.ReplaceAllString(upperKeyO, "")
		if alnumKeyO != alnumKey {
			candidatesO := lx.alnumIndex[alnumKeyO]
			if len(candidatesO) == 1 {
				return candidatesO[0], true
			}
			if filteredO := filterBySymbols(candidatesO, present); len(filteredO) == 1 {
				return filteredO[0], true
			}
		}
	}

	return "", false
}

// ListAllCodes returns every canonical code, for diagnostics and tests.
func (lx *CodeLexicon) ListAllCodes() []string {
	out := make([]string, 0, len(lx.canonical))
	for code := range lx.canonical {
		out = append(out, code)
	}
	return out
}

// Entry returns the full reference entry for a canonical code.
func (lx *CodeLexicon) Entry(canonicalCode string) (TestEntry, bool) {
	e, ok := lx.canonical[canonicalCode]
	return e, ok
}
