package pipeline

import (
	"math"
	"strings"

	"github.com/yourorg/labreport-extract/internal/token"
)

// AssignMode is the CellAssigner band-membership strategy (spec §4.4).
type AssignMode int

const (
	ModeNearest AssignMode = iota
	ModeInclude
	ModeHybrid
)

const unknownCell = "UNKNOWN"

// AssignCells places every token of a body line into its band and
// concatenates same-band tokens (space-separated) to build the row's cells
// (spec §4.4 CellAssigner). Default mode is ModeNearest.
func AssignCells(line token.Line, bands []Band, mode AssignMode, lineIdx int) Row {
	k := len(bands)
	texts := make([][]string, k)

	for _, t := range line {
		x := t.XCenter()
		col := assignBand(x, bands, mode)
		if col < 0 {
			continue
		}
		texts[col] = append(texts[col], t.Text)
	}

	cells := make([]string, k)
	for j := 0; j < k; j++ {
		if len(texts[j]) == 0 {
			cells[j] = unknownCell
			continue
		}
		cells[j] = strings.Join(texts[j], " ")
	}

	return Row{Cells: cells, LineIdx: lineIdx, Bands: bands}
}

func assignBand(x float64, bands []Band, mode AssignMode) int {
	switch mode {
	case ModeInclude:
		for j, b := range bands {
			if b.Contains(x) {
				return j
			}
		}
		return -1
	case ModeHybrid:
		for j, b := range bands {
			if b.Contains(x) {
				return j
			}
		}
		return nearestBand(x, bands)
	default: // ModeNearest
		return nearestBand(x, bands)
	}
}

func nearestBand(x float64, bands []Band) int {
	if len(bands) == 1 {
		// Unbounded edges (K==1 case): any x belongs to the sole band.
		return 0
	}
	best := -1
	bestDist := math.Inf(1)
	for j, b := range bands {
		dist := math.Abs(x - b.Center)
		if dist < bestDist {
			bestDist = dist
			best = j
		}
	}
	return best
}
