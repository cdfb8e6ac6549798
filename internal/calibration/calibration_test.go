package calibration

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/fmom"

	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/kinematics"
)

func leptonRow() *candidate.Row {
	return candidate.RowFromMap(map[string]float64{
		"L1_HASBREMADDED":         0,
		"L2_HASBREMADDED":         1,
		"L1_PT":                   2000,
		"L1_ETA":                  3,
		"L1_PHI":                  0.5,
		"L1_BREMTRACKBASEDENERGY": 500,
		"L1_PX":                   1755,
		"L1_PY":                   958.8,
		"L1_PZ":                   20036,
		"L1_TRUEP_X":              1800,
		"L1_TRUEP_Y":              980,
		"L1_TRUEP_Z":              20500,
	})
}

func TestDefaultFeatures(t *testing.T) {
	row := leptonRow()
	f, err := DefaultFeatures{}.BuildFeatures(row, candidate.L1, true)
	require.NoError(t, err)
	assert.Equal(t, candidate.L1, f.Lep)
	assert.Equal(t, map[string]float64{
		"lep":                  1,
		"L1_brem":              0,
		"L2_brem":              1,
		"PT":                   2000,
		"ETA":                  3,
		"PHI":                  0.5,
		"BREMTRACKBASEDENERGY": 500,
	}, f.Values)

	// The row itself is not extended with the brem copies.
	assert.False(t, row.Has("L1_brem"))

	brem, err := f.Brem()
	require.NoError(t, err)
	assert.Equal(t, 0, brem)
}

func TestDefaultFeaturesTarget(t *testing.T) {
	f, err := DefaultFeatures{}.BuildFeatures(leptonRow(), candidate.L1, false)
	require.NoError(t, err)
	mu, err := f.Get(FeatureMu)
	require.NoError(t, err)
	assert.Greater(t, mu, 0.9)
	assert.Less(t, mu, 1.0)
}

func TestDefaultFeaturesErrors(t *testing.T) {
	_, err := DefaultFeatures{}.BuildFeatures(leptonRow(), candidate.H, true)
	assert.Error(t, err)

	_, err = DefaultFeatures{}.BuildFeatures(leptonRow(), candidate.L2, true)
	assert.ErrorIs(t, err, candidate.ErrFieldNotFound)
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Models, 2)
	assert.Less(t, cfg.MinMu, 1.0)
	assert.Greater(t, cfg.MaxMu, 1.0)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "features: [PT]\nmin_mu: 0.5\nmax_mu: 2\nfoo: 1\n"},
		{"no features", "min_mu: 0.5\nmax_mu: 2\n"},
		{"bad range", "features: [PT]\nmin_mu: 2\nmax_mu: 1\n"},
		{"weights mismatch", "features: [PT]\nmin_mu: 0.5\nmax_mu: 2\nmodels:\n  - brem: 0\n    weights: [1, 2]\n  - brem: 1\n    weights: [1]\n"},
		{"missing category", "features: [PT]\nmin_mu: 0.5\nmax_mu: 2\nmodels:\n  - brem: 0\n    weights: [1]\n"},
		{"duplicate category", "features: [PT]\nmin_mu: 0.5\nmax_mu: 2\nmodels:\n  - brem: 0\n    weights: [1]\n  - brem: 0\n    weights: [1]\n"},
		{"bad category", "features: [PT]\nmin_mu: 0.5\nmax_mu: 2\nmodels:\n  - brem: 3\n    weights: [1]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

const flatConfig = `
features: [PT]
min_mu: 0.5
max_mu: 2
models:
  - brem: 0
    intercept: 0.8
    weights: [0]
  - brem: 1
    intercept: 1.0
    weights: [0.001]
`

func TestLinearRegressor(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(flatConfig))
	require.NoError(t, err)
	reg, err := NewLinearRegressor(cfg)
	require.NoError(t, err)

	electron := kinematics.FromPtEtaPhi(2000, 3, 0.5, kinematics.ElectronMass)

	t.Run("scales by 1/mu", func(t *testing.T) {
		f := Features{Lep: candidate.L1, Values: map[string]float64{"L1_brem": 0, "PT": 2000}}
		got, err := reg.Run(electron, f)
		require.NoError(t, err)
		assert.InDelta(t, kinematics.Momentum(electron)/0.8, kinematics.Momentum(got), 1e-6)
		assert.InDelta(t, kinematics.ElectronMass, kinematics.InvariantMass(got), 1e-3)
	})

	t.Run("clamps", func(t *testing.T) {
		f := Features{Lep: candidate.L2, Values: map[string]float64{"L2_brem": 1, "PT": 5000}}
		mu, ok, err := reg.Mu(f)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2.0, mu)
	})

	t.Run("non finite mu", func(t *testing.T) {
		f := Features{Lep: candidate.L1, Values: map[string]float64{"L1_brem": 1, "PT": math.NaN()}}
		got, err := reg.Run(electron, f)
		require.NoError(t, err)
		assert.Equal(t, electron, got)
	})

	t.Run("missing feature", func(t *testing.T) {
		f := Features{Lep: candidate.L1, Values: map[string]float64{"L1_brem": 1}}
		_, err := reg.Run(electron, f)
		assert.ErrorIs(t, err, ErrConfig)
	})
}

type countingRegressor struct{ f float64 }

func (c countingRegressor) Run(e fmom.PxPyPzE, _ Features) (fmom.PxPyPzE, error) {
	return kinematics.ScaleMomentum(e, c.f, kinematics.ElectronMass), nil
}

func TestScalerDisabled(t *testing.T) {
	var loads atomic.Int32
	s := NewScaler(ScalerOptions{Load: func() (Regressor, error) {
		loads.Add(1)
		return countingRegressor{f: 2}, nil
	}})
	electron := kinematics.FromPtEtaPhi(2000, 3, 0.5, kinematics.ElectronMass)
	got, err := s.Scale(electron, leptonRow(), candidate.L1)
	require.NoError(t, err)
	assert.Equal(t, electron, got)
	assert.False(t, s.Enabled())
	assert.Zero(t, loads.Load())
}

func TestScalerLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	s := NewScaler(ScalerOptions{Enabled: true, Load: func() (Regressor, error) {
		loads.Add(1)
		return countingRegressor{f: 2}, nil
	}})
	electron := kinematics.FromPtEtaPhi(2000, 3, 0.5, kinematics.ElectronMass)
	for range 3 {
		got, err := s.Scale(electron, leptonRow(), candidate.L1)
		require.NoError(t, err)
		assert.InDelta(t, 2*kinematics.Momentum(electron), kinematics.Momentum(got), 1e-6)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestScalerStickyError(t *testing.T) {
	boom := errors.New("boom")
	var loads atomic.Int32
	s := NewScaler(ScalerOptions{Enabled: true, Load: func() (Regressor, error) {
		loads.Add(1)
		return nil, boom
	}})
	electron := kinematics.FromPtEtaPhi(2000, 3, 0.5, kinematics.ElectronMass)
	for range 2 {
		_, err := s.Scale(electron, leptonRow(), candidate.L1)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestScalerDefaultConfig(t *testing.T) {
	s := NewScaler(ScalerOptions{Enabled: true})
	electron := kinematics.FromPtEtaPhi(2000, 3, 0.5, kinematics.ElectronMass)
	got, err := s.Scale(electron, leptonRow(), candidate.L1)
	require.NoError(t, err)
	ratio := kinematics.Momentum(got) / kinematics.Momentum(electron)
	assert.InDelta(t, 1, ratio, 0.25)
	assert.NotEqual(t, 1.0, ratio)
}
