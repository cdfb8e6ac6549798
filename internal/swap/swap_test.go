package swap

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bremcorr/internal/candidate"
)

// backToBack places H along +x and L1, L2 along -x, all with |p| = q.
func backToBack(q float64, hID, l1ID, l2ID float64) *candidate.Row {
	return candidate.RowFromMap(map[string]float64{
		"EVENTNUMBER": 7,
		"H_ID":        hID, "H_PX": q, "H_PY": 0, "H_PZ": 0,
		"L1_ID": l1ID, "L1_PX": -q, "L1_PY": 0, "L1_PZ": 0,
		"L2_ID": l2ID, "L2_PX": -q, "L2_PY": 0, "L2_PZ": 0,
	})
}

func pair(q, ma, mb float64) float64 {
	return math.Sqrt(ma*ma+q*q) + math.Sqrt(mb*mb+q*q)
}

func dzero(t *testing.T, sameSign bool) *Calculator {
	t.Helper()
	c, err := New(Options{
		Prefix:   "dzero_misid",
		Leptons:  []Hypothesis{{candidate.L1, 211}, {candidate.L2, 211}},
		Hadron:   Hypothesis{candidate.H, 321},
		SameSign: sameSign,
	})
	require.NoError(t, err)
	return c
}

func TestLookup(t *testing.T) {
	e, err := Lookup(11)
	require.NoError(t, err)
	assert.Equal(t, -1, e.Charge)
	assert.Equal(t, "e-", e.Name)

	pos, err := Lookup(-11)
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Charge)
	assert.Equal(t, "e+", pos.Name)
	assert.Equal(t, e.Mass, pos.Mass)

	pbar, err := Lookup(-2212)
	require.NoError(t, err)
	assert.Equal(t, "anti-p", pbar.Name)
	assert.Equal(t, -1, pbar.Charge)

	_, err = Lookup(999)
	assert.ErrorIs(t, err, ErrUnknownParticle)
}

func TestMassesOppositeSign(t *testing.T) {
	c := dzero(t, false)
	// K+ with e- in L1 and e+ in L2: L1 is the opposite sign track.
	org, swp, err := c.Masses(backToBack(1000, 321, 11, -11))
	require.NoError(t, err)

	k, _ := Lookup(321)
	e, _ := Lookup(11)
	pi, _ := Lookup(211)
	assert.InDelta(t, pair(1000, k.Mass, e.Mass), org, 1e-6)
	assert.InDelta(t, pair(1000, k.Mass, pi.Mass), swp, 1e-6)
	assert.Greater(t, swp, org)
}

func TestMassesSameSign(t *testing.T) {
	c := dzero(t, true)
	// K+ with e- in L1 and e+ in L2: L2 is the same sign track.
	l2 := backToBack(1000, 321, 11, -11)
	l2.Set("L2_PX", -500)
	org, _, err := c.Masses(l2)
	require.NoError(t, err)

	k, _ := Lookup(321)
	e, _ := Lookup(11)
	want := math.Sqrt(math.Pow(math.Hypot(k.Mass, 1000)+math.Hypot(e.Mass, 500), 2) - 500*500)
	assert.InDelta(t, want, org, 1e-6)
}

func TestMassesNoCombination(t *testing.T) {
	c := dzero(t, false)
	// Both leptons carry the kaon charge.
	org, swp, err := c.Masses(backToBack(1000, 321, -11, -11))
	require.NoError(t, err)
	assert.Equal(t, float64(NoCombination), org)
	assert.Equal(t, float64(NoCombination), swp)
}

func TestMassesErrors(t *testing.T) {
	c := dzero(t, false)

	row := backToBack(1000, 321, 11, -11)
	row.Set("L1_ID", 0)
	_, _, err := c.Masses(row)
	assert.ErrorIs(t, err, ErrUnknownParticle)

	row = backToBack(1000, 321, 11, -11)
	row.Delete("H_PZ")
	_, _, err = c.Masses(row)
	assert.ErrorIs(t, err, candidate.ErrFieldNotFound)
}

func TestNewValidates(t *testing.T) {
	valid := Options{
		Prefix:  "jpsi_misid",
		Leptons: []Hypothesis{{candidate.L1, 13}},
		Hadron:  Hypothesis{candidate.H, 13},
	}
	_, err := New(valid)
	require.NoError(t, err)

	noPrefix := valid
	noPrefix.Prefix = ""
	_, err = New(noPrefix)
	assert.Error(t, err)

	noLeptons := valid
	noLeptons.Leptons = nil
	_, err = New(noLeptons)
	assert.Error(t, err)

	badID := valid
	badID.Hadron = Hypothesis{candidate.H, 42}
	_, err = New(badID)
	assert.ErrorIs(t, err, ErrUnknownParticle)
}

func TestProcess(t *testing.T) {
	c := dzero(t, false)
	in := candidate.NewTable([]string{"EVENTNUMBER", "H_ID"})
	in.Append(backToBack(1000, 321, 11, -11), backToBack(1000, 321, -11, -11))

	out, err := c.Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"dzero_misid_mass_org", "dzero_misid_mass_swp", "EVENTNUMBER"}, out.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []float64{7, 7}, out.Column("EVENTNUMBER"))
	assert.Equal(t, float64(NoCombination), out.Column("dzero_misid_mass_swp")[1])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Process(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessMissingEventNumber(t *testing.T) {
	c := dzero(t, false)
	noEvent := backToBack(1000, 321, 11, -11)
	noEvent.Delete(candidate.EventNumber)
	in := candidate.NewTable([]string{candidate.EventNumber, "H_ID"})
	in.Append(backToBack(1000, 321, 11, -11), noEvent)

	_, err := c.Process(context.Background(), in)
	require.ErrorIs(t, err, candidate.ErrFieldNotFound)
	assert.Contains(t, err.Error(), "row 1")
}
