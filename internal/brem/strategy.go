package brem

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultThreshold is the lowest track-based brem energy, in MeV, that is
// considered a photon worth adding.
const DefaultThreshold = 300.0

// Strategy identifiers as used on the command line and in configuration.
const (
	NameCaloBias          = "ecalo_bias"
	NameTrackBrem         = "brem_track_1"
	NameTrackBremRescaled = "brem_track_2"
)

// ErrUnsupportedStrategy is returned for a strategy the engine does not know.
var ErrUnsupportedStrategy = errors.New("unsupported brem correction strategy")

// Strategy selects how the engine corrects an electron. The set of
// strategies is closed: CaloBias, TrackBrem and TrackBremRescaled.
type Strategy interface {
	Name() string
	isStrategy()
}

// CaloBias corrects the energy of an already attached brem photon with the
// ECAL bias map. Electrons without brem are left unchanged.
type CaloBias struct{}

// TrackBrem adds a photon colinear to the track, with the track-based brem
// energy, whenever that energy reaches Threshold.
type TrackBrem struct {
	Threshold float64
}

// TrackBremRescaled keeps electrons that already have brem, adds a
// colinear photon to the rest when the track-based energy reaches
// Threshold, and rescales the result with the calibration scaler.
type TrackBremRescaled struct {
	Threshold float64
}

func (CaloBias) Name() string          { return NameCaloBias }
func (TrackBrem) Name() string         { return NameTrackBrem }
func (TrackBremRescaled) Name() string { return NameTrackBremRescaled }

func (CaloBias) isStrategy()          {}
func (TrackBrem) isStrategy()         {}
func (TrackBremRescaled) isStrategy() {}

// StrategyNames lists the accepted strategy identifiers.
var StrategyNames = []string{NameCaloBias, NameTrackBrem, NameTrackBremRescaled}

// ParseStrategy maps an identifier onto a Strategy. threshold is used by
// the track-based strategies only.
func ParseStrategy(name string, threshold float64) (Strategy, error) {
	switch name {
	case NameCaloBias:
		return CaloBias{}, nil
	case NameTrackBrem:
		return TrackBrem{Threshold: threshold}, nil
	case NameTrackBremRescaled:
		return TrackBremRescaled{Threshold: threshold}, nil
	}
	return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnsupportedStrategy, name, strings.Join(StrategyNames, ", "))
}
