package masscorr

import (
	"math"

	"github.com/banshee-data/bremcorr/internal/candidate"
)

// Output column names.
const (
	ColBM        = "B_M"
	ColJpsiM     = "Jpsi_M"
	ColBPT       = "B_PT"
	ColJpsiPT    = "Jpsi_PT"
	ColJpsiMSmr  = "Jpsi_M_smr"
	ColBMSmr     = "B_M_smr"
	ColBDira     = "B_DIRA_OWNPV"
	ColJpsiDira  = "Jpsi_DIRA_OWNPV"
	colL1Brem    = "L1_" + candidate.HasBremAdded
	colL2Brem    = "L2_" + candidate.HasBremAdded
	leptonFields = 4
)

var leptonColumns = []string{candidate.PX, candidate.PY, candidate.PZ, candidate.PT}

// Lepton is the corrected momentum of one lepton.
type Lepton struct {
	PX, PY, PZ, PT float64
}

func (l Lepton) values() [leptonFields]float64 {
	return [leptonFields]float64{l.PX, l.PY, l.PZ, l.PT}
}

// Output is the recomputed record of one candidate.
type Output struct {
	BM, JpsiM       Mass
	BPT, JpsiPT     float64
	L1, L2          Lepton
	L1Brem, L2Brem  float64
	JpsiMSmr, BMSmr float64
	BDira, JpsiDira float64
}

// Columns returns the output columns in their fixed order.
func Columns() []string {
	cols := []string{ColBM, ColJpsiM, ColBPT, ColJpsiPT}
	for _, s := range candidate.Leptons {
		for _, f := range leptonColumns {
			cols = append(cols, candidate.Column(s, f))
		}
	}
	return append(cols, colL1Brem, colL2Brem, ColJpsiMSmr, ColBMSmr, ColBDira, ColJpsiDira)
}

// Values returns the output in the order of Columns. Invalid masses are
// written as InvalidMass.
func (o Output) Values() []float64 {
	out := []float64{o.BM.Float(), o.JpsiM.Float(), o.BPT, o.JpsiPT}
	l1, l2 := o.L1.values(), o.L2.values()
	out = append(out, l1[:]...)
	out = append(out, l2[:]...)
	return append(out, o.L1Brem, o.L2Brem, o.JpsiMSmr, o.BMSmr, o.BDira, o.JpsiDira)
}

// HasNaN reports whether any output value is NaN.
func (o Output) HasNaN() bool {
	for _, v := range o.Values() {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Row returns the output as a row, with suffix appended to every column
// name when it is not empty.
func (o Output) Row(suffix string) *candidate.Row {
	row := candidate.NewRow()
	vals := o.Values()
	for i, c := range Columns() {
		if suffix != "" {
			c += "_" + suffix
		}
		row.Set(c, vals[i])
	}
	return row
}
