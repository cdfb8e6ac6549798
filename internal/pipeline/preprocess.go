package pipeline

import (
	"math"
	"strings"

	"github.com/banshee-data/bremcorr/internal/candidate"
)

// Columns kept whatever their name.
var keepColumns = map[string]bool{
	candidate.EventNumber: true,
	candidate.RunNumber:   true,
	"nbrem":               true,
	candidate.Block:       true,
	"Jpsi_TRUEM":          true,
	"B_TRUEM":             true,
	"Jpsi_BPVX":           true,
	"Jpsi_BPVY":           true,
	"Jpsi_BPVZ":           true,
	"B_BPVX":              true,
	"B_BPVY":              true,
	"B_BPVZ":              true,
	"Jpsi_END_VX":         true,
	"Jpsi_END_VY":         true,
	"Jpsi_END_VZ":         true,
	"B_END_VX":            true,
	"B_END_VY":            true,
	"B_END_VZ":            true,
}

// Substrings of particle columns that are dropped, checked before kept.
var dropParts = []string{"NVPHITS", "CHI2", "HYPOID", "HYPODELTA"}

// Substrings of particle columns that are kept.
var keepParts = []string{"PT", "ETA", "PHI", "PX", "PY", "PZ", "BREMHYPO"}

// PickColumn reports whether an input column is needed by the
// recomputation.
func PickColumn(name string) bool {
	if keepColumns[name] {
		return true
	}
	switch {
	case strings.HasSuffix(name, "MC_ISPROMPT"),
		strings.HasPrefix(name, "H_BREM"),
		strings.HasPrefix(name, "H_TRACK_P"),
		strings.Contains(name, "_TRUE"):
		return false
	}
	if !strings.HasPrefix(name, "L1") && !strings.HasPrefix(name, "L2") && !strings.HasPrefix(name, "H") {
		return false
	}
	if strings.Contains(name, candidate.BremTrackBasedEnergy) || strings.Contains(name, candidate.HasBremAdded) {
		return true
	}
	for _, p := range dropParts {
		if strings.Contains(name, p) {
			return false
		}
	}
	for _, p := range keepParts {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// IsMC reports whether the table comes from simulation.
func IsMC(t *candidate.Table) bool {
	return t.HasSuffixColumn("_" + candidate.TrueID)
}

// PreprocessStats summarises Preprocess.
type PreprocessStats struct {
	In      int
	Kept    int
	Columns int
}

// Preprocess selects the needed columns, normalises the brem columns of
// every particle and drops rows with any NaN left. It returns a new table
// of new rows; the input is not modified.
//
// Per particle: the brem flag becomes 0 or 1, the brem hypothesis energy
// is zeroed without brem, and a NaN track-based brem energy becomes 0.
func Preprocess(t *candidate.Table) (*candidate.Table, PreprocessStats) {
	var cols []string
	for _, c := range t.Columns {
		if PickColumn(c) {
			cols = append(cols, c)
		}
	}
	out := candidate.NewTable(cols)
	stats := PreprocessStats{In: t.Len(), Columns: len(cols)}
	diagf("Using %d of %d columns", len(cols), len(t.Columns))

	nanCount := map[string]int{}
	for _, in := range t.Rows {
		row := candidate.NewRow()
		for _, c := range cols {
			if v, err := in.Get(c); err == nil {
				row.Set(c, v)
			}
		}
		for _, s := range candidate.Slots {
			normaliseBrem(row, s)
		}
		for _, c := range cols {
			if v, err := row.Get(c); err == nil && math.IsNaN(v) {
				nanCount[c]++
			}
		}
		if row.HasNaN() {
			continue
		}
		out.Append(row)
	}

	for _, c := range cols {
		if n := nanCount[c]; n > 0 {
			tracef("%-25s %8d NaNs %6.2f%%", c, n, 100*float64(n)/float64(stats.In))
		}
	}
	stats.Kept = out.Len()
	if stats.Kept != stats.In {
		opsf("Dropping rows with NaNs %d -> %d", stats.In, stats.Kept)
	}
	return out, stats
}

func normaliseBrem(row *candidate.Row, s candidate.Slot) {
	flagCol := candidate.Column(s, candidate.HasBremAdded)
	hasBrem := false
	if v, err := row.Get(flagCol); err == nil {
		if !math.IsNaN(v) && v != 0 {
			hasBrem = true
			row.Set(flagCol, 1)
		} else if !math.IsNaN(v) {
			row.Set(flagCol, 0)
		}
	}

	energyCol := candidate.Column(s, candidate.BremHypoEnergy)
	if row.Has(energyCol) && !hasBrem {
		row.Set(energyCol, 0)
	}

	trackCol := candidate.Column(s, candidate.BremTrackBasedEnergy)
	if v, err := row.Get(trackCol); err == nil && math.IsNaN(v) {
		row.Set(trackCol, 0)
	}
}
