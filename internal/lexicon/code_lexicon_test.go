package lexicon

import "testing"

func TestResolveCode_CaseAndWhitespaceVariants(t *testing.T) {
	lx := GetCodeLexicon()
	for _, tok := range []string{"WBC", "wbc", "Wbc", " W B C "} {
		got, ok := lx.ResolveCode(tok)
		if !ok || got != "WBC" {
			t.Errorf("ResolveCode(%q) = (%q, %v), want (WBC, true)", tok, got, ok)
		}
	}
}

func TestResolveCode_ZeroOFallback(t *testing.T) {
	lx := GetCodeLexicon()
	got, ok := lx.ResolveCode("p02")
	if !ok || got != "pO2" {
		t.Errorf("ResolveCode(p02) = (%q, %v), want (pO2, true)", got, ok)
	}
}

func TestResolveCode_PercentVariants(t *testing.T) {
	lx := GetCodeLexicon()
	for _, tok := range []string{"LYMPH%", "LYMPH(%)", "LYMPH (%)"} {
		got, ok := lx.ResolveCode(tok)
		if !ok || got != "LYMPH%" {
			t.Errorf("ResolveCode(%q) = (%q, %v), want (LYMPH%%, true)", tok, got, ok)
		}
	}
}

func TestResolveCode_UnknownReturnsFalse(t *testing.T) {
	lx := GetCodeLexicon()
	if _, ok := lx.ResolveCode("XXXYYY"); ok {
		t.Errorf("ResolveCode(XXXYYY) should not resolve")
	}
}

func TestResolveCode_HashSuffixFallsBackToBase(t *testing.T) {
	lx := GetCodeLexicon()
	got, ok := lx.ResolveCode("RETIC#")
	if !ok || got != "RETIC" {
		t.Errorf("ResolveCode(RETIC#) = (%q, %v), want (RETIC, true)", got, ok)
	}
}

func TestResolveCode_Empty(t *testing.T) {
	lx := GetCodeLexicon()
	if _, ok := lx.ResolveCode(""); ok {
		t.Errorf("ResolveCode(\"\") should not resolve")
	}
}
