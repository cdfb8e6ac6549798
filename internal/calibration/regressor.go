package calibration

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/bremcorr/internal/kinematics"
)

// Regressor returns the calibrated electron for a brem-corrected electron
// and its features.
type Regressor interface {
	Run(electron fmom.PxPyPzE, f Features) (fmom.PxPyPzE, error)
}

// LinearRegressor predicts mu with one linear model per brem category and
// divides the electron momentum by it.
type LinearRegressor struct {
	byBrem  [2]Model
	minMu   float64
	maxMu   float64
	columns []string
}

// NewLinearRegressor returns a regressor for a validated config.
func NewLinearRegressor(cfg *Config) (*LinearRegressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &LinearRegressor{minMu: cfg.MinMu, maxMu: cfg.MaxMu, columns: cfg.Features}
	for _, m := range cfg.Models {
		r.byBrem[m.Brem] = m
	}
	return r, nil
}

// Mu returns the clamped mu prediction for f. ok is false when the
// prediction is not finite.
func (r *LinearRegressor) Mu(f Features) (mu float64, ok bool, err error) {
	brem, err := f.Brem()
	if err != nil {
		return 0, false, err
	}
	x, err := f.Vector(r.columns)
	if err != nil {
		return 0, false, err
	}
	m := r.byBrem[brem]
	mu = m.Intercept + floats.Dot(m.Weights, x)
	if math.IsNaN(mu) || math.IsInf(mu, 0) {
		return mu, false, nil
	}
	return math.Min(math.Max(mu, r.minMu), r.maxMu), true, nil
}

// Run implements Regressor.
func (r *LinearRegressor) Run(electron fmom.PxPyPzE, f Features) (fmom.PxPyPzE, error) {
	mu, ok, err := r.Mu(f)
	if err != nil {
		return fmom.PxPyPzE{}, err
	}
	if !ok {
		logs.Opsf("Invalid mu=%v for %s, electron not calibrated", mu, f.Lep)
		return electron, nil
	}
	logs.Tracef("Scaling %s by 1/mu, mu=%.4f", f.Lep, mu)
	return kinematics.ScaleMomentum(electron, 1/mu, kinematics.ElectronMass), nil
}
