package reportio

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/yourorg/labreport-extract/internal/pipeline"
)

// DiffLine is one line of a unified diff hunk.
type DiffLine struct {
	Type    string // "add", "remove", "context"
	LineNum int
	Content string
}

// DiffHunk is one contiguous region of change.
type DiffHunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []DiffLine
}

// UnifiedDiff is the result of comparing two DocumentResults.
type UnifiedDiff struct {
	Hunks   []DiffHunk
	Added   int
	Removed int
}

// DiffDocuments renders both documents as one line per test (plus a
// metadata line) and diffs those lines with go-difflib's SequenceMatcher —
// the same engine and hunk shape the teacher uses for spec-version diffing,
// repurposed here for before/after re-extraction comparisons.
func DiffDocuments(before, after pipeline.DocumentResult) *UnifiedDiff {
	oldLines := renderLines(before)
	newLines := renderLines(after)
	return diffLines(oldLines, newLines)
}

func renderLines(doc pipeline.DocumentResult) []string {
	lines := make([]string, 0, len(doc.Tests)+1)
	lines = append(lines, fmt.Sprintf("meta: hospital=%s client=%s patient=%s date=%s",
		doc.HospitalName, doc.ClientName, doc.PatientName, doc.InspectionDate))
	for _, test := range doc.Tests {
		lines = append(lines, renderTestLine(test))
	}
	return lines
}

func renderTestLine(t pipeline.Test) string {
	var b strings.Builder
	b.WriteString(t.Code)
	b.WriteString(": value=")
	b.WriteString(formatFloatPtr(t.Value))
	b.WriteString(" unit=")
	b.WriteString(formatStringPtr(t.Unit))
	b.WriteString(" ref=")
	b.WriteString(formatFloatPtr(t.ReferenceMin))
	b.WriteString("-")
	b.WriteString(formatFloatPtr(t.ReferenceMax))
	if t.ExcludedReason != "" {
		b.WriteString(" excluded=")
		b.WriteString(string(t.ExcludedReason))
	}
	return b.String()
}

const diffContextLines = 3

func diffLines(oldLines, newLines []string) *UnifiedDiff {
	matcher := difflib.NewMatcher(oldLines, newLines)
	opcodes := matcher.GetOpCodes()

	hunks := make([]DiffHunk, 0, len(opcodes))
	added, removed := 0, 0

	for _, op := range opcodes {
		tag := string(op.Tag)
		if tag == "e" {
			continue
		}

		oldStart, oldEnd := op.I1, op.I2
		newStart, newEnd := op.J1, op.J2

		hunkStart := maxInt(oldStart-diffContextLines, 0)
		hunkEnd := minInt(oldEnd+diffContextLines, len(oldLines))
		newHunkStart := maxInt(newStart-diffContextLines, 0)
		newHunkEnd := minInt(newEnd+diffContextLines, len(newLines))

		hunk := DiffHunk{
			OldStart: hunkStart + 1,
			OldCount: hunkEnd - hunkStart,
			NewStart: newHunkStart + 1,
			NewCount: newHunkEnd - newHunkStart,
		}

		for i := hunkStart; i < oldStart; i++ {
			hunk.Lines = append(hunk.Lines, DiffLine{Type: "context", LineNum: i + 1, Content: oldLines[i]})
		}

		switch tag {
		case "r":
			for i := oldStart; i < oldEnd; i++ {
				hunk.Lines = append(hunk.Lines, DiffLine{Type: "remove", LineNum: i + 1, Content: oldLines[i]})
				removed++
			}
			for i := newStart; i < newEnd; i++ {
				hunk.Lines = append(hunk.Lines, DiffLine{Type: "add", LineNum: i + 1, Content: newLines[i]})
				added++
			}
		case "d":
			for i := oldStart; i < oldEnd; i++ {
				hunk.Lines = append(hunk.Lines, DiffLine{Type: "remove", LineNum: i + 1, Content: oldLines[i]})
				removed++
			}
		case "i":
			for i := newStart; i < newEnd; i++ {
				hunk.Lines = append(hunk.Lines, DiffLine{Type: "add", LineNum: i + 1, Content: newLines[i]})
				added++
			}
		}

		for i := oldEnd; i < hunkEnd; i++ {
			hunk.Lines = append(hunk.Lines, DiffLine{Type: "context", LineNum: i + 1, Content: oldLines[i]})
		}

		hunks = append(hunks, hunk)
	}

	return &UnifiedDiff{Hunks: hunks, Added: added, Removed: removed}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FormatUnified renders d in classic unified-diff text form.
func FormatUnified(d *UnifiedDiff) string {
	var b strings.Builder
	b.WriteString("--- before\n")
	b.WriteString("+++ after\n")
	for _, hunk := range d.Hunks {
		b.WriteString(fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount))
		for _, line := range hunk.Lines {
			switch line.Type {
			case "remove":
				b.WriteString("-" + line.Content + "\n")
			case "add":
				b.WriteString("+" + line.Content + "\n")
			case "context":
				b.WriteString(" " + line.Content + "\n")
			}
		}
	}
	return b.String()
}
