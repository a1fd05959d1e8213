package pipeline

import (
	"math"

	"github.com/yourorg/labreport-extract/internal/token"
)

// ColumnBanderOptions carries the tunables from spec §4.4.
type ColumnBanderOptions struct {
	MaxSampleRows  int
	BandEdgeMargin float64
}

// BuildBands computes K column bands from a representative sample of body
// rows (spec §4.4 ColumnBander). K is max(col_index of HeaderRoles) + 1
// (spec §3.7 invariant 4).
func BuildBands(body []token.Line, roles HeaderRoles, opts ColumnBanderOptions) ([]Band, error) {
	k := roles.MaxColIndex() + 1
	if k <= 0 {
		return nil, fatal("invalid_header_roles", "HeaderRoles has no assignments")
	}

	maxSample := opts.MaxSampleRows
	if maxSample <= 0 {
		maxSample = 20
	}
	margin := opts.BandEdgeMargin
	if margin <= 0 {
		margin = 20
	}

	samples := make([][]token.Token, k)
	count := 0
	for _, line := range body {
		if len(line) != k {
			continue
		}
		for j := 0; j < k; j++ {
			samples[j] = append(samples[j], line[j])
		}
		count++
		if count >= maxSample {
			break
		}
	}
	if count == 0 {
		return nil, &PipelineError{Kind: ErrInputInsufficient, Code: "no_band_samples", Msg: "no body row has exactly K tokens"}
	}

	centers := make([]float64, k)
	for j := 0; j < k; j++ {
		xs := make([]float64, len(samples[j]))
		for i, t := range samples[j] {
			xs[i] = t.XCenter()
		}
		centers[j] = median(xs)
	}

	edges := make([]float64, k+1)
	if k == 1 {
		edges[0] = math.Inf(-1)
		edges[1] = math.Inf(1)
	} else {
		edges[0] = centers[0] - maxFloat(margin, (centers[1]-centers[0])/2)
		for j := 1; j < k; j++ {
			edges[j] = (centers[j-1] + centers[j]) / 2
		}
		edges[k] = centers[k-1] + maxFloat(margin, (centers[k-1]-centers[k-2])/2)
	}

	bands := make([]Band, k)
	for j := 0; j < k; j++ {
		bands[j] = Band{Left: edges[j], Right: edges[j+1], Center: centers[j]}
	}
	return bands, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
