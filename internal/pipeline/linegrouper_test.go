package pipeline

import (
	"testing"

	"github.com/yourorg/labreport-extract/internal/token"
)

// TestMergeNameFragment_GluedParenSuffix is spec §4.1 step 4: "SODIUM" +
// "(Na+)" glued with a small gap fuses into one name token.
func TestMergeNameFragment_GluedParenSuffix(t *testing.T) {
	line := token.Line{
		tok("SODIUM", 0, 100, 0),
		tok("(Na+)", 104, 150, 0),
		tok("140", 200, 230, 0),
	}
	out := mergeNameFragment(line, 14)
	if len(out) != 2 {
		t.Fatalf("expected merge to drop one token, got %d: %+v", len(out), out)
	}
	if out[0].Text != "SODIUM(Na+)" {
		t.Errorf("merged text = %q, want SODIUM(Na+)", out[0].Text)
	}
	if out[0].Origin != token.OriginNameMerge {
		t.Errorf("origin = %v, want OriginNameMerge", out[0].Origin)
	}
}

// TestMergeNameFragment_GapTooWideDoesNotMerge checks the threshold boundary.
func TestMergeNameFragment_GapTooWideDoesNotMerge(t *testing.T) {
	line := token.Line{
		tok("SODIUM", 0, 100, 0),
		tok("(Na+)", 150, 200, 0),
	}
	out := mergeNameFragment(line, 14)
	if len(out) != 2 {
		t.Fatalf("expected no merge across a wide gap, got %d tokens", len(out))
	}
}

// TestMergeNameFragment_NumericFirstTokenSkipped ensures a numeric first
// token (not a name) is never fused with a following short-paren token.
func TestMergeNameFragment_NumericFirstTokenSkipped(t *testing.T) {
	line := token.Line{
		tok("8.5", 0, 40, 0),
		tok("(H)", 44, 80, 0),
	}
	out := mergeNameFragment(line, 14)
	if len(out) != 2 {
		t.Fatalf("expected no merge when first token looks numeric, got %d tokens", len(out))
	}
}

// TestSplitValueUnitTokens_Glued is spec §4.1 step 6: a glued number+unit
// token like "8.5K/µL" splits into a value token and a unit-candidate token.
func TestSplitValueUnitTokens_Glued(t *testing.T) {
	line := token.Line{tok("8.5K/µL", 0, 100, 0)}
	out := splitValueUnitTokens(line)
	if len(out) != 2 {
		t.Fatalf("expected split into 2 tokens, got %d: %+v", len(out), out)
	}
	if out[0].Text != "8.5" {
		t.Errorf("value text = %q, want 8.5", out[0].Text)
	}
	if out[1].Text != "K/µL" {
		t.Errorf("unit text = %q, want K/µL", out[1].Text)
	}
	if out[0].Origin != token.OriginSplitValue {
		t.Errorf("value origin = %v, want OriginSplitValue", out[0].Origin)
	}
	if out[1].Origin != token.OriginSplitUnitCandidate {
		t.Errorf("unit origin = %v, want OriginSplitUnitCandidate", out[1].Origin)
	}
}

// TestSplitValueUnitTokens_SpaceSeparated covers the "full" (space-separated)
// split pattern as opposed to the glued one.
func TestSplitValueUnitTokens_SpaceSeparated(t *testing.T) {
	line := token.Line{tok("30 U/L", 0, 100, 0)}
	out := splitValueUnitTokens(line)
	if len(out) != 2 {
		t.Fatalf("expected split into 2 tokens, got %d: %+v", len(out), out)
	}
	if out[0].Text != "30" || out[1].Text != "U/L" {
		t.Errorf("split = (%q, %q), want (30, U/L)", out[0].Text, out[1].Text)
	}
}

// TestSplitValueUnitTokens_RejectsRangeLikeSuffix ensures a number followed
// by a range separator (not a unit) is left unsplit.
func TestSplitValueUnitTokens_RejectsRangeLikeSuffix(t *testing.T) {
	line := token.Line{tok("5.5-19.5", 0, 100, 0)}
	out := splitValueUnitTokens(line)
	if len(out) != 1 {
		t.Fatalf("expected range token left unsplit, got %d tokens: %+v", len(out), out)
	}
}

// TestAnnotateValueFlags_HighLowNormal covers the single-letter H/L/N flag
// suffix (spec §4.1 step 7).
func TestAnnotateValueFlags_HighLowNormal(t *testing.T) {
	line := token.Line{tok("12.3H", 0, 60, 0), tok("4.1L", 60, 120, 0), tok("7.0N", 120, 180, 0)}
	out := annotateValueFlags(line)
	if out[0].ValueFlag != token.FlagHigh || out[0].ValueNum == nil || *out[0].ValueNum != 12.3 {
		t.Errorf("token 0 = %+v, want FlagHigh/12.3", out[0])
	}
	if out[1].ValueFlag != token.FlagLow || out[1].ValueNum == nil || *out[1].ValueNum != 4.1 {
		t.Errorf("token 1 = %+v, want FlagLow/4.1", out[1])
	}
	if out[2].ValueFlag != token.FlagNormal || out[2].ValueNum == nil || *out[2].ValueNum != 7.0 {
		t.Errorf("token 2 = %+v, want FlagNormal/7.0", out[2])
	}
}

// TestRemoveStatusWords drops bare status tokens like "NORMAL" or "HIGH".
func TestRemoveStatusWords(t *testing.T) {
	line := token.Line{tok("WBC", 0, 60, 0), tok("HIGH", 60, 120, 0), tok("8.5", 120, 180, 0)}
	out := removeStatusWords(line)
	if len(out) != 2 {
		t.Fatalf("expected status word removed, got %d tokens: %+v", len(out), out)
	}
	for _, tt := range out {
		if tt.Text == "HIGH" {
			t.Errorf("status word HIGH was not removed")
		}
	}
}
