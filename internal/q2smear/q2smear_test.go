package q2smear

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTable = `
params:
  0:
    1: {scale: 1.0, shift: 0}
    2: {scale: 1.5, shift: -10}
  1:
    1: {scale: 2.0, shift: 5}
`

func TestMass(t *testing.T) {
	tbl, err := Load(strings.NewReader(testTable))
	require.NoError(t, err)

	tests := []struct {
		name        string
		nBrem       int
		block       int
		reco, truth float64
		want        float64
	}{
		{"identity", 0, 1, 3050, 3097, 3050},
		{"wider and shifted", 0, 2, 3050, 3097, 3097 + 1.5*(3050-3097) - 10},
		{"reco above truth", 1, 1, 3120, 3097, 3097 + 2*23 + 5},
		{"invalid passes through", 1, 1, InvalidMass, 3097, InvalidMass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tbl.Mass(tt.nBrem, tt.block, tt.reco, tt.truth)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	got, err := tbl.Mass(0, 1, math.NaN(), 3097)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))
}

func TestMassUnknownCategory(t *testing.T) {
	tbl, err := Load(strings.NewReader(testTable))
	require.NoError(t, err)

	_, err = tbl.Mass(1, 2, 3050, 3097)
	assert.ErrorIs(t, err, ErrUnknownBlock)

	_, err = tbl.Mass(2, 1, 3050, 3097)
	assert.ErrorIs(t, err, ErrUnknownBrem)
}

func TestLoadInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":         "params: {}\n",
		"zero scale":    "params:\n  0:\n    1: {scale: 0, shift: 1}\n",
		"unknown field": "params:\n  0:\n    1: {scale: 1, offset: 1}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrTable)
		})
	}
}

func TestDefault(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)
	for nb := 0; nb <= 2; nb++ {
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, tbl.Blocks(nb))
	}

	var _ Smearer = tbl
}
