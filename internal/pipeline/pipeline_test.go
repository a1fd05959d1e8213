package pipeline

import (
	"context"
	"testing"

	"github.com/yourorg/labreport-extract/internal/token"
)

func tok(text string, xl, xr, y int) token.Token {
	return token.Token{Text: text, XLeft: xl, XRight: xr, YTop: y, YBottom: y + 20, YCenter: y + 10}
}

func tokConf(text string, xl, xr, y int, conf float64) token.Token {
	t := tok(text, xl, xr, y)
	t.Confidence = token.Float64(conf)
	return t
}

// TestEndToEnd_SingleCleanRow is spec §8 end-to-end scenario 1.
func TestEndToEnd_SingleCleanRow(t *testing.T) {
	tokens := []token.Token{
		tok("Name", 0, 60, 0), tok("Result", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 400, 0),
		tok("WBC", 0, 60, 40), tok("8.5", 100, 140, 40), tok("K/µL", 200, 260, 40), tok("5.5-19.5", 300, 380, 40),
	}
	e := New()
	doc, err := e.Extract(context.Background(), tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Tests) != 1 {
		t.Fatalf("expected 1 test, got %d: %+v", len(doc.Tests), doc.Tests)
	}
	got := doc.Tests[0]
	if got.Code != "WBC" {
		t.Errorf("code = %q, want WBC", got.Code)
	}
	if got.Value == nil || *got.Value != 8.5 {
		t.Errorf("value = %v, want 8.5", got.Value)
	}
	if got.Unit == nil || *got.Unit != "K/µL" {
		t.Errorf("unit = %v, want K/µL", got.Unit)
	}
	if got.ReferenceMin == nil || *got.ReferenceMin != 5.5 {
		t.Errorf("reference_min = %v, want 5.5", got.ReferenceMin)
	}
	if got.ReferenceMax == nil || *got.ReferenceMax != 19.5 {
		t.Errorf("reference_max = %v, want 19.5", got.ReferenceMax)
	}
}

// TestEndToEnd_RangeSplit is spec §8 scenario 2.
func TestEndToEnd_RangeSplit(t *testing.T) {
	tokens := []token.Token{
		tok("Name", 0, 60, 0), tok("Result", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 420, 0),
		tok("ALT", 0, 60, 40), tok("30", 100, 130, 40), tok("U/L", 200, 250, 40), tok("6.54 - 12.2", 300, 400, 40),
	}
	doc, err := New().Extract(context.Background(), tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Tests) != 1 {
		t.Fatalf("expected 1 test, got %d", len(doc.Tests))
	}
	got := doc.Tests[0]
	if got.ReferenceMin == nil || *got.ReferenceMin != 6.54 {
		t.Errorf("reference_min = %v, want 6.54", got.ReferenceMin)
	}
	if got.ReferenceMax == nil || *got.ReferenceMax != 12.2 {
		t.Errorf("reference_max = %v, want 12.2", got.ReferenceMax)
	}
}

// TestEndToEnd_UnknownValueFiltered is spec §8 scenario 4.
func TestEndToEnd_UnknownValueFiltered(t *testing.T) {
	tokens := []token.Token{
		tok("Name", 0, 60, 0), tok("Result", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 420, 0),
		tok("ALT", 0, 60, 40), tok("N/A", 100, 140, 40), tok("U/L", 200, 250, 40), tok("6.54-12.2", 300, 400, 40),
	}
	doc, err := New().Extract(context.Background(), tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Tests) != 0 {
		t.Fatalf("expected 0 tests (unknown_value), got %d: %+v", len(doc.Tests), doc.Tests)
	}
}

// TestEndToEnd_LowConfidenceFiltered is spec §8 scenario 5.
func TestEndToEnd_LowConfidenceFiltered(t *testing.T) {
	tokens := []token.Token{
		tok("Name", 0, 60, 0), tok("Result", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 420, 0),
		tok("ALT", 0, 60, 40), tokConf("30", 100, 130, 40, 0.9), tok("U/L", 200, 250, 40), tok("6.54-12.2", 300, 400, 40),
	}
	doc, err := New().Extract(context.Background(), tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Tests) != 0 {
		t.Fatalf("expected 0 tests (low_confidence), got %d: %+v", len(doc.Tests), doc.Tests)
	}
}

// TestDedupeTests_KeepLast is spec §8 scenario 6 and property 7.
func TestDedupeTests_KeepLast(t *testing.T) {
	unit := "U/L"
	tests := []Test{
		{Code: "ALT", Value: token.Float64(50), Unit: &unit},
		{Code: "ALT", Value: token.Float64(55), Unit: &unit},
	}
	out := DedupeTests(tests)
	if len(out) != 1 {
		t.Fatalf("expected 1 test after dedup, got %d", len(out))
	}
	if *out[0].Value != 55 {
		t.Errorf("value = %v, want 55 (last occurrence kept)", *out[0].Value)
	}
}

// TestMergeDocuments_MultiPage is spec §8 scenario 7.
func TestMergeDocuments_MultiPage(t *testing.T) {
	unit := "K/µL"
	d1 := DocumentResult{
		HospitalName: "Sample Animal Hospital", ClientName: "Hong", PatientName: "Nabi",
		InspectionDate: "2026-01-05",
		Tests:          []Test{{Code: "WBC", Value: token.Float64(8.5), Unit: &unit}},
	}
	d2 := DocumentResult{
		HospitalName: "Sample Animal Hospital", ClientName: "Hong", PatientName: "Nabi",
		InspectionDate: "",
		Tests:          []Test{{Code: "RBC", Value: token.Float64(7.1), Unit: &unit}},
	}
	merged, stats := MergeDocuments([]DocumentResult{d1, d2})
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged document, got %d", len(merged))
	}
	if len(merged[0].Tests) != 2 {
		t.Fatalf("expected 2 tests in merged document, got %d", len(merged[0].Tests))
	}
	if merged[0].Tests[0].Code != "WBC" || merged[0].Tests[1].Code != "RBC" {
		t.Errorf("merge order not preserved: %+v", merged[0].Tests)
	}
	if merged[0].InspectionDate != "2026-01-05" {
		t.Errorf("inspection_date = %q, want inherited from first", merged[0].InspectionDate)
	}
	if stats.MergedLen != 1 || stats.PrunedEmpty != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// TestMergeDocuments_Idempotence is property 6.
func TestMergeDocuments_Idempotence(t *testing.T) {
	unit := "K/µL"
	d := DocumentResult{
		HospitalName: "Sample Animal Hospital", PatientName: "Nabi", InspectionDate: "2026-01-05",
		Tests: []Test{{Code: "WBC", Value: token.Float64(8.5), Unit: &unit}},
	}
	once, _ := MergeDocuments([]DocumentResult{d})
	twice, _ := MergeDocuments(once)
	if len(once) != len(twice) || len(once[0].Tests) != len(twice[0].Tests) {
		t.Fatalf("merge is not idempotent: once=%+v twice=%+v", once, twice)
	}
}

// TestMergeDocuments_PrunesEmpty covers the empty-tests pruning step.
func TestMergeDocuments_PrunesEmpty(t *testing.T) {
	empty := DocumentResult{HospitalName: "X"}
	unit := "K/µL"
	full := DocumentResult{HospitalName: "X", Tests: []Test{{Code: "WBC", Value: token.Float64(1), Unit: &unit}}}
	merged, stats := MergeDocuments([]DocumentResult{empty, full})
	if len(merged) != 1 {
		t.Fatalf("expected empty result pruned, got %d documents", len(merged))
	}
	if stats.PrunedEmpty != 1 {
		t.Errorf("pruned_empty = %d, want 1", stats.PrunedEmpty)
	}
}

// TestAssignCells_ExactlyKCells is spec §8 invariant 8.
func TestAssignCells_ExactlyKCells(t *testing.T) {
	line := token.Line{tok("WBC", 0, 60, 0), tok("8.5", 100, 140, 0), tok("K/µL", 200, 260, 0)}
	bands := []Band{{Left: -100, Right: 75, Center: 30}, {Left: 75, Right: 175, Center: 120}, {Left: 175, Right: 400, Center: 230}}
	row := AssignCells(line, bands, ModeNearest, 0)
	if len(row.Cells) != len(bands) {
		t.Fatalf("cells = %d, want %d (K)", len(row.Cells), len(bands))
	}
}

// TestNearestBand_UsesMedianCenterNotEdgeMidpoint builds bands from an
// asymmetric sample (a wide name column, two narrow columns packed close
// together) and checks that ModeNearest routes by the true per-column
// median center (spec.md §4.4 "place into the band whose center[j] is
// closest to x_center"), not by the midpoint of a band's own edges, which
// diverges from the median center whenever columns aren't evenly spaced.
func TestNearestBand_UsesMedianCenterNotEdgeMidpoint(t *testing.T) {
	roles := HeaderRoles{Assignments: []RoleAssignment{
		{Role: RoleName, ColIndex: 0}, {Role: RoleResult, ColIndex: 1}, {Role: RoleUnit, ColIndex: 2},
	}}
	body := []token.Line{
		{tok("WBC", 0, 100, 0), tok("8.5", 600, 640, 0), tok("K/µL", 640, 660, 0)},
	}
	bands, err := BuildBands(body, roles, ColumnBanderOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bands[1].Center != 620 {
		t.Fatalf("band 1 center = %v, want 620 (median x_center of the result column)", bands[1].Center)
	}

	// x=600 is closer to the result column's true center (620, dist 20)
	// than to the unit column's (650, dist 50). The edge-midpoint of band 1,
	// ((335+635)/2=485 given these inputs), is far enough from 620 that the
	// old bug misrouted x=600 to band 2 instead.
	col := nearestBand(600, bands)
	if col != 1 {
		t.Errorf("nearestBand(600) = %d, want 1 (the result column by true median center)", col)
	}
}

// TestMetadataExtraction_LabeledAndUnlabeled is spec §8 scenario 8, with a
// PatientNameFallback stub standing in for the LLM fallback leg.
func TestMetadataExtraction_LabeledAndUnlabeled(t *testing.T) {
	region := []token.Line{
		{tok("Sample Animal Hospital", 0, 200, 0)},
		{tok("의뢰인:", 0, 60, 30), tok("홍길동", 70, 130, 30)},
		{tok("나비", 0, 60, 60)},
	}
	stub := stubPatientFallback{name: "나비"}
	doc := ExtractMetadata(context.Background(), region, -1, stub, MetadataOptions{})
	if doc.ClientName != "홍길동" {
		t.Errorf("client_name = %q, want 홍길동", doc.ClientName)
	}
	if doc.PatientName != "나비" {
		t.Errorf("patient_name = %q, want 나비 (from fallback)", doc.PatientName)
	}
}

// TestEndToEnd_MinMaxColumns is spec §8 scenario 3: separate Min/Max header
// columns instead of a combined Reference column.
func TestEndToEnd_MinMaxColumns(t *testing.T) {
	tokens := []token.Token{
		tok("Name", 0, 60, 0), tok("Min", 100, 140, 0), tok("Max", 160, 200, 0), tok("Result", 220, 280, 0), tok("Unit", 300, 360, 0),
		tok("RBC", 0, 60, 40), tok("5.5", 100, 140, 40), tok("10.0", 160, 200, 40), tok("7.8", 220, 280, 40), tok("M/µL", 300, 360, 40),
	}
	doc, err := New().Extract(context.Background(), tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Tests) != 1 {
		t.Fatalf("expected 1 test, got %d: %+v", len(doc.Tests), doc.Tests)
	}
	got := doc.Tests[0]
	if got.Code != "RBC" {
		t.Errorf("code = %q, want RBC", got.Code)
	}
	if got.Value == nil || *got.Value != 7.8 {
		t.Errorf("value = %v, want 7.8", got.Value)
	}
	if got.ReferenceMin == nil || *got.ReferenceMin != 5.5 {
		t.Errorf("reference_min = %v, want 5.5", got.ReferenceMin)
	}
	if got.ReferenceMax == nil || *got.ReferenceMax != 10.0 {
		t.Errorf("reference_max = %v, want 10.0", got.ReferenceMax)
	}
}

// TestInvariant_ReferenceMinNeverExceedsMax is spec §8 property 2, checked
// across every end-to-end scenario that produces a surviving test with both
// bounds present.
func TestInvariant_ReferenceMinNeverExceedsMax(t *testing.T) {
	cases := [][]token.Token{
		{
			tok("Name", 0, 60, 0), tok("Result", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 400, 0),
			tok("WBC", 0, 60, 40), tok("8.5", 100, 140, 40), tok("K/µL", 200, 260, 40), tok("5.5-19.5", 300, 380, 40),
		},
		{
			tok("Name", 0, 60, 0), tok("Min", 100, 140, 0), tok("Max", 160, 200, 0), tok("Result", 220, 280, 0), tok("Unit", 300, 360, 0),
			tok("RBC", 0, 60, 40), tok("5.5", 100, 140, 40), tok("10.0", 160, 200, 40), tok("7.8", 220, 280, 40), tok("M/µL", 300, 360, 40),
		},
	}
	for i, tokens := range cases {
		doc, err := New().Extract(context.Background(), tokens)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}
		for _, test := range doc.Tests {
			if test.ReferenceMin != nil && test.ReferenceMax != nil && *test.ReferenceMin > *test.ReferenceMax {
				t.Errorf("case %d: reference_min (%v) > reference_max (%v) for %q", i, *test.ReferenceMin, *test.ReferenceMax, test.Code)
			}
		}
	}
}

// TestInvariant_CodeIsIdempotentUnderLexiconLookup is spec §8 property 3:
// every surviving test's code already equals its own lexicon resolution.
func TestInvariant_CodeIsIdempotentUnderLexiconLookup(t *testing.T) {
	tokens := []token.Token{
		tok("Name", 0, 60, 0), tok("Result", 100, 160, 0), tok("Unit", 200, 260, 0), tok("Reference", 300, 400, 0),
		tok("wbc", 0, 60, 40), tok("8.5", 100, 140, 40), tok("K/µL", 200, 260, 40), tok("5.5-19.5", 300, 380, 40),
	}
	e := New()
	doc, err := e.Extract(context.Background(), tokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, test := range doc.Tests {
		resolved, ok := e.codeLexicon.ResolveCode(test.Code)
		if !ok || resolved != test.Code {
			t.Errorf("code %q is not idempotent under ResolveCode: got (%q, %v)", test.Code, resolved, ok)
		}
	}
}

type stubPatientFallback struct{ name string }

func (s stubPatientFallback) ExtractPatientName(_ context.Context, _ string, knownClient string) (string, bool) {
	if s.name == knownClient {
		return "", false
	}
	return s.name, true
}
