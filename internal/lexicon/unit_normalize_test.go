package lexicon

import "testing"

func TestNormalizeUnitSimple_Table(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10^3/µL", "K/µL", true},
		{"10³/µL", "K/µL", true},
		{"k/ul", "K/µL", true},
		{"K / UL", "K/µL", true},
		{"mg/d", "mg/dL", true},
		{"ug/mL", "µg/mL", true},
		{"mmol", "mmol/L", true},
		{"Pg", "pg", true},
		{"mmH", "mmHg", true},
		{"mg/d1", "mg/dL", true},
		{"neg pos/n", "neg pos/n", true},
		{"12.5 mg/dL", "12.5 mg/dL", true},
		{"", "", false},
		{"UNKNOWN", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeUnitSimple(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("NormalizeUnitSimple(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestNormalizeUnitSimple_Idempotent(t *testing.T) {
	inputs := []string{"10^3/µL", "k/ul", "mg/d", "ug/mL", "mmol", "Pg", "mmH", "neg pos/n", "K/µL"}
	for _, in := range inputs {
		first, ok1 := NormalizeUnitSimple(in)
		if !ok1 {
			continue
		}
		second, ok2 := NormalizeUnitSimple(first)
		if !ok2 || first != second {
			t.Errorf("NormalizeUnitSimple not idempotent for %q: first=%q second=%q", in, first, second)
		}
	}
}

func TestParseNumericNorm(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"8.5", "8.5", true},
		{"8,5", "8.5", true},
		{"8.5H", "8.5", true},
		{"-1.2", "-1.2", true},
		{"UNKNOWN", "", false},
		{"abc", "", false},
	}
	for _, c := range cases {
		got, ok := ParseNumericNorm(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("ParseNumericNorm(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
