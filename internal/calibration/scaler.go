// Package calibration rescales brem-corrected electrons by the energy
// response mu = E_reco / E_true predicted from kinematic-balance features.
package calibration

import (
	"sync"

	"go-hep.org/x/hep/fmom"

	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

var logs = monitoring.Named("calibration")

// ScalerOptions configures a Scaler.
type ScalerOptions struct {
	// Enabled turns the scaling on. A disabled Scaler returns electrons
	// unchanged and never loads a regressor.
	Enabled bool
	// Features defaults to DefaultFeatures.
	Features FeatureBuilder
	// Load returns the regressor on first use. It defaults to a
	// LinearRegressor over the packaged config.
	Load func() (Regressor, error)
}

// Scaler applies a lazily loaded Regressor. The regressor is loaded at
// most once; a load error is returned by every later call.
type Scaler struct {
	enabled   bool
	features  FeatureBuilder
	regressor func() (Regressor, error)
}

// NewScaler returns a Scaler for opts.
func NewScaler(opts ScalerOptions) *Scaler {
	if opts.Features == nil {
		opts.Features = DefaultFeatures{}
	}
	if opts.Load == nil {
		opts.Load = loadDefault
	}
	return &Scaler{
		enabled:   opts.Enabled,
		features:  opts.Features,
		regressor: sync.OnceValues(opts.Load),
	}
}

func loadDefault() (Regressor, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	return NewLinearRegressor(cfg)
}

// Enabled reports whether the scaler changes electrons.
func (s *Scaler) Enabled() bool { return s.enabled }

// Scale returns the calibrated electron for lepton lep of row.
func (s *Scaler) Scale(electron fmom.PxPyPzE, row *candidate.Row, lep candidate.Slot) (fmom.PxPyPzE, error) {
	if !s.enabled {
		return electron, nil
	}
	reg, err := s.regressor()
	if err != nil {
		return fmom.PxPyPzE{}, err
	}
	f, err := s.features.BuildFeatures(row, lep, true)
	if err != nil {
		return fmom.PxPyPzE{}, err
	}
	return reg.Run(electron, f)
}
