// Package reportio renders a pipeline.DocumentResult to XLSX and computes a
// unified diff between two DocumentResults, for the batch CLI and HTTP
// surfaces built on top of the extraction core.
package reportio

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/labreport-extract/internal/pipeline"
)

const sheetName = "Tests"

var reportHeader = []string{"Code", "Value", "Unit", "ReferenceMin", "ReferenceMax", "ExcludedReason"}

// WriteXLSX renders doc's metadata and test rows into an XLSX workbook and
// writes it to w. One metadata row sits above the header, mirroring the
// header-region layout the core itself reads (spec §4.7).
func WriteXLSX(w io.Writer, doc pipeline.DocumentResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}

	metaRow := []interface{}{
		"Hospital", doc.HospitalName, "Client", doc.ClientName,
		"Patient", doc.PatientName, "Date", doc.InspectionDate,
	}
	if err := setRow(f, sheetName, 1, metaRow); err != nil {
		return err
	}

	headerRow := make([]interface{}, len(reportHeader))
	for i, h := range reportHeader {
		headerRow[i] = h
	}
	if err := setRow(f, sheetName, 3, headerRow); err != nil {
		return err
	}

	for i, test := range doc.Tests {
		row := []interface{}{
			test.Code,
			formatFloatPtr(test.Value),
			formatStringPtr(test.Unit),
			formatFloatPtr(test.ReferenceMin),
			formatFloatPtr(test.ReferenceMax),
			string(test.ExcludedReason),
		}
		if err := setRow(f, sheetName, 4+i, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			return fmt.Errorf("cell coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatStringPtr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// tokenDumpColumns is the fixed row layout ImportTokenDump expects: one OCR
// token's geometry per row, same shape as the sheets-import path (spec §6.1
// OCR input contract), for re-feeding a previously-exported token dump back
// through the pipeline.
const tokenDumpColumns = 6

// ImportTokenDump reads a raw OCR-token-geometry sheet (text, x_left,
// x_right, y_top, y_bottom, confidence per row) from an XLSX workbook and
// returns the rows as string cells, ready for the caller to decode into
// token.Token — mirroring the teacher's ParseReader/GetRows pattern.
func ImportTokenDump(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets found in workbook")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	kept := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < tokenDumpColumns {
			continue
		}
		kept = append(kept, row)
	}
	return kept, nil
}
