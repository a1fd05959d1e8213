package reportio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/labreport-extract/internal/pipeline"
)

func TestWriteXLSX_RoundTripsViaExcelize(t *testing.T) {
	unit := "K/µL"
	doc := pipeline.DocumentResult{
		HospitalName: "Sample Animal Hospital",
		PatientName:  "Nabi",
		Tests: []pipeline.Test{
			{Code: "WBC", Value: floatPtr(8.5), Unit: &unit, ReferenceMin: floatPtr(5.5), ReferenceMax: floatPtr(19.5)},
		},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, doc); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) < 4 {
		t.Fatalf("expected at least 4 rows (meta, blank, header, 1 test), got %d", len(rows))
	}
	if !strings.Contains(rows[0][1], "Sample Animal Hospital") {
		t.Errorf("metadata row = %v, want hospital name present", rows[0])
	}
	if rows[2][0] != "Code" {
		t.Errorf("header row = %v, want first cell Code", rows[2])
	}
	if rows[3][0] != "WBC" {
		t.Errorf("data row = %v, want code WBC", rows[3])
	}
}

func TestImportTokenDump_SkipsShortRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rowsIn := [][]interface{}{
		{"WBC", "10", "50", "100", "120", "0.95"},
		{"too", "short"},
	}
	for i, row := range rowsIn {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+1)
			_ = f.SetCellValue("Sheet1", cell, v)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	rows, err := ImportTokenDump(&buf, "Sheet1")
	if err != nil {
		t.Fatalf("ImportTokenDump: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 surviving row, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "WBC" {
		t.Errorf("row[0] = %q, want WBC", rows[0][0])
	}
}

func floatPtr(f float64) *float64 { return &f }
