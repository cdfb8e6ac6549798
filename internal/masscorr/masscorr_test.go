package masscorr

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bremcorr/internal/brem"
	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/kinematics"
)

const (
	bMass    = 5279.0
	jpsiMass = 3097.0
)

func setMomentum(row *candidate.Row, s candidate.Slot, p r3.Vec) {
	pt, eta, phi := kinematics.PtEtaPhi(p)
	row.Set(candidate.Column(s, candidate.PX), p.X)
	row.Set(candidate.Column(s, candidate.PY), p.Y)
	row.Set(candidate.Column(s, candidate.PZ), p.Z)
	row.Set(candidate.Column(s, candidate.PT), pt)
	row.Set(candidate.Column(s, candidate.ETA), eta)
	row.Set(candidate.Column(s, candidate.PHI), phi)
}

func setTrack(row *candidate.Row, s candidate.Slot, p r3.Vec) {
	row.Set(candidate.TrackColumn(s, candidate.PX), p.X)
	row.Set(candidate.TrackColumn(s, candidate.PY), p.Y)
	row.Set(candidate.TrackColumn(s, candidate.PZ), p.Z)
}

// decayRow returns a B+ -> K+ J/psi(-> e+ e-) candidate with a boosted B.
// L1 has brem attached. L2 lost 15% of its momentum to an unrecovered
// brem photon of brem2 MeV when lossy is set.
func decayRow(lossy bool) (row *candidate.Row, brem2 float64) {
	l1 := r3.Vec{X: 218.2541, Y: 6.3843, Z: 38822.485}
	l2 := r3.Vec{X: -25.1878, Y: -1377.9445, Z: 7657.1096}
	k := r3.Vec{X: 2806.9337, Y: -128.4398, Z: 43520.4054}

	row = candidate.NewRow()
	setMomentum(row, candidate.L1, l1)
	setTrack(row, candidate.L1, r3.Scale(0.8, l1))
	row.Set("L1_HASBREMADDED", 1)
	row.Set("L1_BREMTRACKBASEDENERGY", 7000)

	if lossy {
		t2 := r3.Scale(0.85, l2)
		full := kinematics.FromCartesian(l2, kinematics.ElectronMass)
		track := kinematics.FromCartesian(t2, kinematics.ElectronMass)
		brem2 = full.E() - track.E()
		l2 = t2
	}
	setMomentum(row, candidate.L2, l2)
	setTrack(row, candidate.L2, l2)
	row.Set("L2_HASBREMADDED", 0)
	row.Set("L2_BREMTRACKBASEDENERGY", brem2)

	setMomentum(row, candidate.H, k)

	sv := r3.Vec{X: 0.3325, Y: -0.1663, Z: 9.976}
	for _, p := range []string{candidate.B, candidate.Jpsi} {
		row.Set(p+"_BPVX", 0)
		row.Set(p+"_BPVY", 0)
		row.Set(p+"_BPVZ", 0)
		row.Set(p+"_END_VX", sv.X)
		row.Set(p+"_END_VY", sv.Y)
		row.Set(p+"_END_VZ", sv.Z)
	}
	row.Set("B_TRUEM", bMass)
	row.Set("Jpsi_TRUEM", jpsiMass)
	row.Set("block", 3)
	return row, brem2
}

func recomputer(t *testing.T, opts Options) *Recomputer {
	t.Helper()
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestProcessNominal(t *testing.T) {
	row, _ := decayRow(false)
	r := recomputer(t, Options{
		Strategy: brem.TrackBremRescaled{Threshold: DefaultThreshold},
		Engine:   brem.NewEngine(brem.Options{}),
	})

	out, err := r.Process(row)
	require.NoError(t, err)
	require.True(t, out.BM.Valid)
	assert.Greater(t, out.BM.Value, 5000.0)
	assert.Less(t, out.BM.Value, 5400.0)
	assert.InDelta(t, bMass, out.BM.Value, 1)
	assert.InDelta(t, jpsiMass, out.JpsiM.Value, 1)
	assert.InDelta(t, 1, out.BDira, 1e-4)
	assert.Greater(t, out.JpsiDira, 0.99)
	// Data: smeared masses are the reconstructed ones.
	assert.Equal(t, out.BM.Value, out.BMSmr)
	assert.Equal(t, out.JpsiM.Value, out.JpsiMSmr)
	assert.Equal(t, 1.0, out.L1Brem)
	assert.Equal(t, 0.0, out.L2Brem)
	assert.False(t, out.HasNaN())
}

func TestProcessRecoversBrem(t *testing.T) {
	lossy, e := decayRow(true)
	require.Greater(t, e, DefaultThreshold)

	skip := recomputer(t, Options{SkipCorrection: true})
	before, err := skip.Process(lossy.Clone())
	require.NoError(t, err)
	assert.Less(t, before.BM.Value, bMass-200)

	r := recomputer(t, Options{
		Strategy: brem.TrackBremRescaled{Threshold: DefaultThreshold},
		Engine:   brem.NewEngine(brem.Options{}),
	})
	after, err := r.Process(lossy)
	require.NoError(t, err)
	assert.InDelta(t, bMass, after.BM.Value, 1)
	assert.Equal(t, 1.0, after.L2Brem)
	assert.Greater(t, after.L2.PT, before.L2.PT)
}

func TestProcessSkipCorrectionKeepsRow(t *testing.T) {
	row, _ := decayRow(true)
	want := row.Map()

	r := recomputer(t, Options{SkipCorrection: true})
	_, err := r.Process(row)
	require.NoError(t, err)
	if diff := cmp.Diff(want, row.Map()); diff != "" {
		t.Errorf("row changed (-want +got):\n%s", diff)
	}
}

type shiftSmearer struct {
	calls [][2]int
}

func (s *shiftSmearer) Mass(nBrem, block int, reco, truth float64) (float64, error) {
	s.calls = append(s.calls, [2]int{nBrem, block})
	if reco == InvalidMass {
		return reco, nil
	}
	return truth + 2*(reco-truth), nil
}

func TestProcessSmearsSimulation(t *testing.T) {
	row, _ := decayRow(true)
	sm := &shiftSmearer{}
	r := recomputer(t, Options{
		Strategy: brem.TrackBremRescaled{Threshold: DefaultThreshold},
		Engine:   brem.NewEngine(brem.Options{}),
		IsMC:     true,
		Smearer:  sm,
	})

	out, err := r.Process(row)
	require.NoError(t, err)
	assert.InDelta(t, bMass+2*(out.BM.Value-bMass), out.BMSmr, 1e-9)
	assert.InDelta(t, jpsiMass+2*(out.JpsiM.Value-jpsiMass), out.JpsiMSmr, 1e-9)
	// Brem multiplicity is read after the correction.
	assert.Equal(t, [][2]int{{2, 3}, {2, 3}}, sm.calls)
}

type failingEngine struct{}

func (failingEngine) Correct(*candidate.Row, candidate.Slot, brem.Strategy) (brem.Result, error) {
	return brem.Result{}, errors.New("broken")
}

func TestProcessErrors(t *testing.T) {
	row, _ := decayRow(false)
	r := recomputer(t, Options{Strategy: brem.CaloBias{}, Engine: failingEngine{}})
	_, err := r.Process(row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correcting L1")

	row, _ = decayRow(false)
	row.Delete("Jpsi_END_VZ")
	r = recomputer(t, Options{SkipCorrection: true})
	_, err = r.Process(row)
	assert.ErrorIs(t, err, candidate.ErrFieldNotFound)

	row, _ = decayRow(false)
	row.Delete("block")
	r = recomputer(t, Options{SkipCorrection: true, IsMC: true, Smearer: &shiftSmearer{}})
	_, err = r.Process(row)
	assert.ErrorIs(t, err, candidate.ErrFieldNotFound)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Strategy: brem.CaloBias{}})
	assert.Error(t, err)
	_, err = New(Options{Engine: brem.NewEngine(brem.Options{})})
	assert.ErrorIs(t, err, brem.ErrUnsupportedStrategy)
	_, err = New(Options{SkipCorrection: true, IsMC: true})
	assert.Error(t, err)
}

func TestProcessNaNInput(t *testing.T) {
	row, _ := decayRow(false)
	row.Set("L1_PT", math.NaN())
	out, err := recomputer(t, Options{SkipCorrection: true}).Process(row)
	require.NoError(t, err)
	assert.False(t, out.BM.Valid)
	assert.False(t, out.JpsiM.Valid)
	assert.Equal(t, InvalidMass, out.Values()[0])
	assert.Equal(t, InvalidMass, out.BMSmr)
	assert.True(t, out.HasNaN())
}

func TestColumns(t *testing.T) {
	want := []string{
		"B_M", "Jpsi_M", "B_PT", "Jpsi_PT",
		"L1_PX", "L1_PY", "L1_PZ", "L1_PT",
		"L2_PX", "L2_PY", "L2_PZ", "L2_PT",
		"L1_HASBREMADDED", "L2_HASBREMADDED",
		"Jpsi_M_smr", "B_M_smr",
		"B_DIRA_OWNPV", "Jpsi_DIRA_OWNPV",
	}
	if diff := cmp.Diff(want, Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	assert.Len(t, Output{}.Values(), len(want))

	row := Output{BM: NewMass(5279), L2Brem: 1}.Row("brem_track_2")
	v, err := row.Get("B_M_brem_track_2")
	require.NoError(t, err)
	assert.Equal(t, 5279.0, v)
	v, err = row.Get("Jpsi_M_brem_track_2")
	require.NoError(t, err)
	assert.Equal(t, InvalidMass, v)
}

func TestMass(t *testing.T) {
	assert.Equal(t, InvalidMass, NewMass(math.NaN()).Float())
	assert.Equal(t, InvalidMass, NewMass(math.Inf(1)).Float())
	assert.Equal(t, 3.5, NewMass(3.5).Float())
	assert.Equal(t, "invalid", Mass{}.String())
	assert.Equal(t, "3097.000", NewMass(3097).String())
}
