package pipeline

import "strings"

// MergeStats reports the bookkeeping counts from spec §4.5.6.
type MergeStats struct {
	PrunedEmpty int
	BeforeDedup int
	AfterDedup  int
	MergedLen   int
}

// MergeDocuments combines a sequence of per-page DocumentResults into a
// single batch in source order (spec §4.5.6 MergeEngine). The merge is
// idempotent: merging an already-merged sequence again is a no-op because
// empty-tests pruning and the dedup pass are both stable under repetition.
func MergeDocuments(docs []DocumentResult) ([]DocumentResult, MergeStats) {
	var stats MergeStats

	kept := make([]DocumentResult, 0, len(docs))
	for _, d := range docs {
		if len(d.Tests) == 0 {
			stats.PrunedEmpty++
			continue
		}
		kept = append(kept, d)
	}

	merged := make([]DocumentResult, 0, len(kept))
	for _, cur := range kept {
		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			if normKey(prev.InspectionDate) != "" && normKey(cur.InspectionDate) == "" &&
				sameIdentity(*prev, cur) {
				prev.Tests = append(prev.Tests, cur.Tests...)
				continue
			}
		}
		merged = append(merged, cur)
	}

	for i := range merged {
		stats.BeforeDedup += len(merged[i].Tests)
		merged[i].Tests = dedupKeepFirst(merged[i].Tests)
		stats.AfterDedup += len(merged[i].Tests)
	}
	stats.MergedLen = len(merged)

	return merged, stats
}

func normKey(s string) string {
	return strings.TrimSpace(s)
}

func sameIdentity(a, b DocumentResult) bool {
	return normKey(a.HospitalName) == normKey(b.HospitalName) &&
		normKey(a.ClientName) == normKey(b.ClientName) &&
		normKey(a.PatientName) == normKey(b.PatientName)
}

// dedupKeepFirst groups by (code, unit) and keeps the first occurrence,
// the reverse of RowNormalizer's own keep-last rule (spec §4.5.6 step 3).
func dedupKeepFirst(tests []Test) []Test {
	type key struct{ code, unit string }
	seen := make(map[key]bool, len(tests))
	out := make([]Test, 0, len(tests))
	for _, t := range tests {
		u := ""
		if t.Unit != nil {
			u = *t.Unit
		}
		k := key{t.Code, u}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
