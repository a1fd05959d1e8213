package pipeline

import (
	"testing"

	"github.com/yourorg/labreport-extract/internal/token"
)

// TestMatchHeaderLine_FirstOccurrenceWins is spec §4.3.1: each role claims at
// most one column, first matching column left-to-right.
func TestMatchHeaderLine_FirstOccurrenceWins(t *testing.T) {
	line := token.Line{tok("Name", 0, 60, 0), tok("Result", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 400, 0)}
	claimed := matchHeaderLine(line)
	if claimed[RoleName] != 0 || claimed[RoleResult] != 1 || claimed[RoleUnit] != 2 || claimed[RoleReference] != 3 {
		t.Errorf("unexpected role assignment: %+v", claimed)
	}
}

// TestMatchHeaderLine_KoreanSynonyms checks the bilingual header synonyms.
func TestMatchHeaderLine_KoreanSynonyms(t *testing.T) {
	line := token.Line{tok("검사항목", 0, 60, 0), tok("측정값", 100, 160, 0), tok("단위", 200, 260, 0), tok("참고치", 300, 400, 0)}
	claimed := matchHeaderLine(line)
	if claimed[RoleName] != 0 || claimed[RoleResult] != 1 || claimed[RoleUnit] != 2 || claimed[RoleReference] != 3 {
		t.Errorf("unexpected role assignment: %+v", claimed)
	}
}

// TestMatchHeaderLine_DateWithoutResultBecomesResult is the special rule in
// findOCRHeader: a date-shaped column with no result column is reinterpreted
// as the result column (some reports place the sample date there instead).
func TestMatchHeaderLine_DateWithoutResultBecomesResult(t *testing.T) {
	line := token.Line{tok("Name", 0, 60, 0), tok("2026-01-05", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 400, 0)}
	roles, _, ok := findOCRHeader([]token.Line{line}, 1, 3)
	if !ok {
		t.Fatalf("expected header to be found")
	}
	a, hasResult := roles.ByRole(RoleResult)
	if !hasResult || a.ColIndex != 1 {
		t.Errorf("expected date column reinterpreted as result at col 1, got %+v", roles)
	}
	if _, hasDate := roles.ByRole(RoleDate); hasDate {
		t.Errorf("date role should have been reassigned to result, got %+v", roles)
	}
}

// TestFindOCRHeader_BelowMinDistinctHitsFails ensures too few role hits on
// any candidate line rejects the OCR header path entirely.
func TestFindOCRHeader_BelowMinDistinctHitsFails(t *testing.T) {
	line := token.Line{tok("Name", 0, 60, 0), tok("Foo", 100, 160, 0)}
	_, _, ok := findOCRHeader([]token.Line{line}, 1, 3)
	if ok {
		t.Errorf("expected header inference to fail with only 1 distinct role hit")
	}
}

// TestRuleBasedInference_K4NameResultUnitReference is spec §4.3.2's
// range-fraction branch: no OCR header, but body rows show a consistent
// name/result/unit/reference shape across enough rows.
func TestRuleBasedInference_K4NameResultUnitReference(t *testing.T) {
	rows := [][4]string{
		{"WBC", "8.5", "K/µL", "5.5-19.5"},
		{"RBC", "7.1", "M/µL", "5.5-8.5"},
		{"HGB", "14.2", "g/dL", "12.0-18.0"},
		{"HCT", "45.0", "%", "37.0-55.0"},
		{"PLT", "300", "K/µL", "200-500"},
		{"ALT", "30", "U/L", "10-100"},
		{"AST", "25", "U/L", "10-88"},
		{"BUN", "15", "mg/dL", "7-27"},
		{"ALB", "3.5", "g/dL", "2.3-4.0"},
		{"Ca", "9.8", "mg/dL", "7.9-12.0"},
	}
	var body []token.Line
	for _, r := range rows {
		body = append(body, token.Line{
			tok(r[0], 0, 60, 0), tok(r[1], 100, 140, 0), tok(r[2], 200, 260, 0), tok(r[3], 300, 400, 0),
		})
	}

	roles, _, ok := ruleBasedInference(body, DefaultOptions().HeaderInferer)
	if !ok {
		t.Fatalf("expected rule-based inference to succeed")
	}
	if a, has := roles.ByRole(RoleName); !has || a.ColIndex != 0 {
		t.Errorf("name role = %+v", roles)
	}
	if a, has := roles.ByRole(RoleResult); !has || a.ColIndex != 1 {
		t.Errorf("result role = %+v, want col 1", a)
	}
	if a, has := roles.ByRole(RoleUnit); !has || a.ColIndex != 2 {
		t.Errorf("unit role = %+v, want col 2", a)
	}
	if a, has := roles.ByRole(RoleReference); !has || a.ColIndex != 3 {
		t.Errorf("reference role = %+v, want col 3", a)
	}
}

// TestRuleBasedInference_EmptyBodyFails checks the trivial rejection case:
// an empty body can never satisfy either the K=4 or K=5 shape.
func TestRuleBasedInference_EmptyBodyFails(t *testing.T) {
	_, _, ok := ruleBasedInference(nil, DefaultOptions().HeaderInferer)
	if ok {
		t.Errorf("expected empty body to fail inference")
	}
}
