package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/kinematics"
)

// Feature names produced by the default builder.
const (
	FeatureLep    = "lep"
	FeatureL1Brem = "L1_brem"
	FeatureL2Brem = "L2_brem"
	FeatureMu     = "mu"
)

// Per-lepton kinematic columns copied into the feature set.
var leptonFeatures = []string{
	candidate.PT,
	candidate.ETA,
	candidate.PHI,
	candidate.BremTrackBasedEnergy,
}

// True momentum columns used for the mu target.
const (
	truePX = "TRUEP_X"
	truePY = "TRUEP_Y"
	truePZ = "TRUEP_Z"
)

// Features is the input of a regressor for one lepton.
type Features struct {
	Lep    candidate.Slot
	Values map[string]float64
}

// Get returns feature name.
func (f Features) Get(name string) (float64, error) {
	v, ok := f.Values[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing feature %q", ErrConfig, name)
	}
	return v, nil
}

// Vector returns the features in the order of names.
func (f Features) Vector(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, err := f.Get(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Brem returns the brem category of the lepton the features describe.
func (f Features) Brem() (int, error) {
	v, err := f.Get(string(f.Lep) + "_brem")
	if err != nil {
		return 0, err
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}

// FeatureBuilder extracts regressor features from a row.
type FeatureBuilder interface {
	BuildFeatures(row *candidate.Row, lep candidate.Slot, skipTarget bool) (Features, error)
}

// DefaultFeatures builds the kinematic-balance features of a lepton: its
// index, both brem flags and the lepton's PT, ETA, PHI and track-based
// brem energy. The target mu = |p_reco| / |p_true| is added unless
// skipTarget is set.
type DefaultFeatures struct{}

// BuildFeatures implements FeatureBuilder. The row is not modified.
func (DefaultFeatures) BuildFeatures(row *candidate.Row, lep candidate.Slot, skipTarget bool) (Features, error) {
	if !lep.Lepton() {
		return Features{}, fmt.Errorf("cannot build features for non-lepton %s", lep)
	}

	f := Features{Lep: lep, Values: make(map[string]float64, 8)}
	f.Values[FeatureLep] = 1
	if lep == candidate.L2 {
		f.Values[FeatureLep] = 2
	}

	for name, s := range map[string]candidate.Slot{FeatureL1Brem: candidate.L1, FeatureL2Brem: candidate.L2} {
		v, err := row.Get(candidate.Column(s, candidate.HasBremAdded))
		if err != nil {
			return Features{}, err
		}
		f.Values[name] = v
	}

	for _, field := range leptonFeatures {
		v, err := row.Get(candidate.Column(lep, field))
		if err != nil {
			return Features{}, err
		}
		f.Values[field] = v
	}

	if skipTarget {
		return f, nil
	}

	mu, err := target(row, lep)
	if err != nil {
		return Features{}, err
	}
	f.Values[FeatureMu] = mu
	return f, nil
}

func target(row *candidate.Row, lep candidate.Slot) (float64, error) {
	reco, err := kinematics.Build(row, lep, kinematics.Full)
	if err != nil {
		return 0, err
	}
	var p [3]float64
	for i, field := range []string{truePX, truePY, truePZ} {
		v, err := row.Get(candidate.Column(lep, field))
		if err != nil {
			return 0, err
		}
		p[i] = v
	}
	truth := r3.Norm(r3.Vec{X: p[0], Y: p[1], Z: p[2]})
	return kinematics.Momentum(reco) / truth, nil
}
