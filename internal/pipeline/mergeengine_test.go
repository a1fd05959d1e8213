package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/labreport-extract/internal/token"
)

// TestMergeDocuments_TableDriven is spec §8 property 7 (merge ordering is
// concatenation order of the inputs) exercised across several input shapes;
// table-driven comparisons read more clearly with require.Equal than a long
// chain of t.Errorf calls.
func TestMergeDocuments_TableDriven(t *testing.T) {
	unit := "K/µL"
	wbc := Test{Code: "WBC", Value: token.Float64(8.5), Unit: &unit}
	rbc := Test{Code: "RBC", Value: token.Float64(7.1), Unit: &unit}
	alt := Test{Code: "ALT", Value: token.Float64(30), Unit: &unit}

	cases := []struct {
		name          string
		docs          []DocumentResult
		wantCodes     []string
		wantMergedLen int
	}{
		{
			name:          "single document passes through unchanged",
			docs:          []DocumentResult{{HospitalName: "H", Tests: []Test{wbc}}},
			wantCodes:     []string{"WBC"},
			wantMergedLen: 1,
		},
		{
			name: "disjoint codes across undated second page concatenate",
			docs: []DocumentResult{
				{HospitalName: "H", ClientName: "C", PatientName: "P", InspectionDate: "2026-01-05", Tests: []Test{wbc}},
				{HospitalName: "H", ClientName: "C", PatientName: "P", Tests: []Test{rbc}},
			},
			wantCodes:     []string{"WBC", "RBC"},
			wantMergedLen: 1,
		},
		{
			name: "different patient identity stays a separate document",
			docs: []DocumentResult{
				{HospitalName: "H", PatientName: "P1", InspectionDate: "2026-01-05", Tests: []Test{wbc}},
				{HospitalName: "H", PatientName: "P2", Tests: []Test{rbc}},
			},
			wantCodes:     []string{"WBC"},
			wantMergedLen: 2,
		},
		{
			name: "duplicate code across merged pages keeps the first occurrence",
			docs: []DocumentResult{
				{HospitalName: "H", PatientName: "P", InspectionDate: "2026-01-05", Tests: []Test{alt, wbc}},
				{HospitalName: "H", PatientName: "P", Tests: []Test{alt}},
			},
			wantCodes:     []string{"ALT", "WBC"},
			wantMergedLen: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merged, stats := MergeDocuments(tc.docs)
			require.Equal(t, tc.wantMergedLen, len(merged), "merged document count")

			var gotCodes []string
			for _, tst := range merged[0].Tests {
				gotCodes = append(gotCodes, tst.Code)
			}
			require.Equal(t, tc.wantCodes, gotCodes, "merged test code order")
			require.Equal(t, tc.wantMergedLen, stats.MergedLen)
		})
	}
}
