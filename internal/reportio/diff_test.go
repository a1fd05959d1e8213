package reportio

import (
	"strings"
	"testing"

	"github.com/yourorg/labreport-extract/internal/pipeline"
)

func TestDiffDocuments_DetectsAddedAndRemovedTests(t *testing.T) {
	unit := "U/L"
	before := pipeline.DocumentResult{
		PatientName: "Nabi",
		Tests: []pipeline.Test{
			{Code: "ALT", Value: floatPtr(30), Unit: &unit},
		},
	}
	after := pipeline.DocumentResult{
		PatientName: "Nabi",
		Tests: []pipeline.Test{
			{Code: "ALT", Value: floatPtr(35), Unit: &unit},
			{Code: "AST", Value: floatPtr(20), Unit: &unit},
		},
	}

	d := DiffDocuments(before, after)
	if d.Added == 0 {
		t.Error("expected at least one added line")
	}
	if d.Removed == 0 {
		t.Error("expected at least one removed line (ALT value changed)")
	}

	out := FormatUnified(d)
	if !strings.Contains(out, "AST") {
		t.Errorf("unified diff missing new test: %s", out)
	}
}

func TestDiffDocuments_IdenticalDocumentsHaveNoHunks(t *testing.T) {
	unit := "U/L"
	doc := pipeline.DocumentResult{
		Tests: []pipeline.Test{{Code: "ALT", Value: floatPtr(30), Unit: &unit}},
	}
	d := DiffDocuments(doc, doc)
	if len(d.Hunks) != 0 {
		t.Errorf("expected no hunks for identical documents, got %d", len(d.Hunks))
	}
	if d.Added != 0 || d.Removed != 0 {
		t.Errorf("expected zero added/removed, got added=%d removed=%d", d.Added, d.Removed)
	}
}
