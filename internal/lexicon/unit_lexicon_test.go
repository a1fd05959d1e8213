package lexicon

import "testing"

func TestResolveUnit_ReferenceTableUnitsRoundTrip(t *testing.T) {
	lx := GetUnitLexicon()
	for _, unit := range []string{"K/µL", "M/µL", "U/L", "mmol/L", "%", "mg/dL", "mmHg", "g/dL"} {
		got, ok := lx.ResolveUnit(unit)
		if !ok || got != unit {
			t.Errorf("ResolveUnit(%q) = (%q, %v), want (%q, true)", unit, got, ok, unit)
		}
	}
}

func TestResolveUnit_OverrideVariants(t *testing.T) {
	lx := GetUnitLexicon()
	cases := map[string]string{
		"u/l":   "U/L",
		"U/l":   "U/L",
		"mmol":  "mmol/L",
		"mmh":   "mmHg",
		"g/d":   "g/dL",
		"mg/d":  "mg/dL",
	}
	for raw, want := range cases {
		got, ok := lx.ResolveUnit(raw)
		if !ok || got != want {
			t.Errorf("ResolveUnit(%q) = (%q, %v), want (%q, true)", raw, got, ok, want)
		}
	}
}

func TestResolveUnit_PowerOfTenCuratedVariants(t *testing.T) {
	lx := GetUnitLexicon()
	for _, raw := range []string{"10^3/µL", "10^3/ul", "X10^3/UL", "k/ul", "K/ul"} {
		got, ok := lx.ResolveUnit(raw)
		if !ok || got != "K/µL" {
			t.Errorf("ResolveUnit(%q) = (%q, %v), want (K/µL, true)", raw, got, ok)
		}
	}
	for _, raw := range []string{"10^6/µL", "10^6/ul", "X10^6/UL", "m/ul"} {
		got, ok := lx.ResolveUnit(raw)
		if !ok || got != "M/µL" {
			t.Errorf("ResolveUnit(%q) = (%q, %v), want (M/µL, true)", raw, got, ok)
		}
	}
}

func TestResolveUnit_UnknownReturnsFalse(t *testing.T) {
	lx := GetUnitLexicon()
	if _, ok := lx.ResolveUnit("banana"); ok {
		t.Errorf("ResolveUnit(banana) should not resolve")
	}
}

func TestResolveUnit_Empty(t *testing.T) {
	lx := GetUnitLexicon()
	if _, ok := lx.ResolveUnit(""); ok {
		t.Errorf("ResolveUnit(\"\") should not resolve")
	}
}

func TestIsKnownUnit_ExactCanonicalOnly(t *testing.T) {
	lx := GetUnitLexicon()
	if !lx.IsKnownUnit("K/µL") {
		t.Errorf("IsKnownUnit(K/µL) = false, want true")
	}
	if lx.IsKnownUnit("k/µl") {
		t.Errorf("IsKnownUnit(k/µl) = true, want false (exact match only, not normalized)")
	}
	if lx.IsKnownUnit("nonsense") {
		t.Errorf("IsKnownUnit(nonsense) = true, want false")
	}
}
