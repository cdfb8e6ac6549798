package diagnostics

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bremcorr/internal/candidate"
)

func massTable(col string, vs ...float64) *candidate.Table {
	t := candidate.NewTable([]string{col})
	for _, v := range vs {
		t.Append(candidate.RowFromMap(map[string]float64{col: v}))
	}
	return t
}

func TestReportFill(t *testing.T) {
	r := NewReport(map[string]Range{"B_M": {Bins: 10, Min: 5000, Max: 5500}})
	before := massTable("B_M", 5100, 5200, math.NaN(), -1)
	after := massTable("B_M_brem_track_2", 5270, 5280, 5290)

	r.Fill(before, after, "brem_track_2")
	c, ok := r.Get("B_M")
	require.True(t, ok)

	b := Summarise(c.Before)
	assert.Equal(t, int64(2), b.Entries)
	assert.InDelta(t, 5150, b.Mean, 1e-9)

	a := Summarise(c.After)
	assert.Equal(t, int64(3), a.Entries)
	assert.InDelta(t, 5280, a.Mean, 1e-9)
	assert.InDelta(t, 10, a.StdDev, 1e-9)
	assert.Contains(t, a.String(), "entries=3")
}

func TestReportMissingColumns(t *testing.T) {
	r := NewReport(DefaultRanges)
	r.Fill(massTable("X"), massTable("Y"), "")
	assert.Equal(t, []string{"B_M", "Jpsi_M"}, r.Names())
	for _, n := range r.Names() {
		c, _ := r.Get(n)
		assert.Equal(t, Summary{}, Summarise(c.Before))
		assert.Equal(t, Summary{}, Summarise(c.After))
	}
}

func TestReportSave(t *testing.T) {
	r := NewReport(DefaultRanges)
	r.Fill(massTable("B_M", 5100, 5200), massTable("B_M", 5279), "")

	paths, err := r.Save(t.TempDir(), "png")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
