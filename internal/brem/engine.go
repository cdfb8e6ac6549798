// Package brem decides, per candidate and per electron, whether and how to
// add or rescale bremsstrahlung energy, and writes the corrected kinematics
// back into the row.
//
// The Engine holds no per-call state: a Request goes in, a Result comes
// out, and one Engine may be shared by any number of workers.
package brem

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/fmom"

	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/kinematics"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

// LoggerName is the monitoring stream set used by this package.
const LoggerName = "brem"

var logs = monitoring.Named(LoggerName)

// unchangedTolerance is the relative tolerance under which a bias-map
// corrected photon counts as not corrected at all.
const unchangedTolerance = 1e-5

// BiasCorrector corrects a brem photon with the ECAL bias map cell it was
// reconstructed in.
type BiasCorrector interface {
	Correct(photon fmom.PxPyPzE, row, col, area int) (fmom.PxPyPzE, error)
}

// Scaler rescales a brem-corrected electron from kinematic-balance features
// of the row.
type Scaler interface {
	Scale(electron fmom.PxPyPzE, row *candidate.Row, s candidate.Slot) (fmom.PxPyPzE, error)
}

// Options configures an Engine.
type Options struct {
	// SkipCorrection runs the strategies up to the last stage without
	// changing any electron.
	SkipCorrection bool
	// BiasMap is required by CaloBias.
	BiasMap BiasCorrector
	// Scaler is applied by TrackBremRescaled. Nil means no rescaling.
	Scaler Scaler
}

// Engine is the brem decision engine. It is immutable and safe for
// concurrent use.
type Engine struct {
	skip   bool
	bias   BiasCorrector
	scaler Scaler
}

// NewEngine returns an Engine for opts.
func NewEngine(opts Options) *Engine {
	if opts.SkipCorrection {
		logs.Opsf("Skipping electron correction")
	}
	return &Engine{
		skip:   opts.SkipCorrection,
		bias:   opts.BiasMap,
		scaler: opts.Scaler,
	}
}

// Request asks for the correction of one electron of a row. The row is
// only read.
type Request struct {
	Row      *candidate.Row
	Slot     candidate.Slot
	Strategy Strategy
}

// Result is the outcome of a correction. When Corrected is false no
// electron was produced and the prior kinematics of the row must be kept.
type Result struct {
	Electron  fmom.PxPyPzE
	Corrected bool
	Status    Status
}

func corrected(e fmom.PxPyPzE, s Status) Result {
	return Result{Electron: e, Corrected: true, Status: s}
}

var untouched = Result{Status: Unchanged}

// Correct evaluates the strategy for one electron of row, validates the
// resulting status and writes the corrected kinematics into row.
func (e *Engine) Correct(row *candidate.Row, s candidate.Slot, st Strategy) (Result, error) {
	res, err := e.Evaluate(Request{Row: row, Slot: s, Strategy: st})
	if err != nil {
		return Result{}, err
	}
	if err := Apply(row, s, res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Evaluate runs the strategy of req without modifying the row.
func (e *Engine) Evaluate(req Request) (Result, error) {
	if req.Strategy == nil {
		return Result{}, fmt.Errorf("%w: nil strategy", ErrUnsupportedStrategy)
	}
	logs.Diagf("Correcting %s with %s", req.Slot, req.Strategy.Name())

	track, err := kinematics.Build(req.Row, req.Slot, kinematics.Track)
	if err != nil {
		return Result{}, err
	}

	var res Result
	switch st := req.Strategy.(type) {
	case CaloBias:
		res, err = e.caloBias(req, track)
	case TrackBrem:
		res, err = e.trackBrem(req, track, st.Threshold)
	case TrackBremRescaled:
		res, err = e.trackBremRescaled(req, track, st.Threshold)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, req.Strategy.Name())
	}
	if err != nil {
		return Result{}, err
	}
	if !res.Status.Valid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidStatus, res.Status)
	}
	return res, nil
}

func (e *Engine) caloBias(req Request, track fmom.PxPyPzE) (Result, error) {
	photon, err := kinematics.DeriveBremPhoton(req.Row, req.Slot, track)
	if err != nil {
		return Result{}, err
	}

	if e.skip {
		logs.Opsf("Skipping electron correction")
		return corrected(kinematics.Add(track, photon), Unchanged), nil
	}

	// Only the brem photon is corrected: no brem, no correction.
	hasBrem, err := req.Row.Bool(candidate.Column(req.Slot, candidate.HasBremAdded))
	if err != nil {
		return Result{}, err
	}
	if !hasBrem {
		return corrected(kinematics.Add(track, photon), Unchanged), nil
	}

	if e.bias == nil {
		return Result{}, fmt.Errorf("%s correction requires a bias map", NameCaloBias)
	}
	logs.Diagf("Applying %s correction", NameCaloBias)

	var cell [3]int
	for i, field := range []string{candidate.BremHypoRow, candidate.BremHypoCol, candidate.BremHypoArea} {
		v, err := req.Row.Get(candidate.Column(req.Slot, field))
		if err != nil {
			return Result{}, err
		}
		cell[i] = int(math.Round(v))
	}

	fixed, err := e.bias.Correct(photon, cell[0], cell[1], cell[2])
	if err != nil {
		return Result{}, fmt.Errorf("bias map correction for %s: %w", req.Slot, err)
	}

	if kinematics.IsClose(fixed, photon, unchangedTolerance) {
		logs.Opsf("Correction did not change photon at row/column/region/momentum: %d/%d/%d/%.0f",
			cell[0], cell[1], cell[2], kinematics.Momentum(photon))
	} else {
		logs.Tracef("Brem was corrected: %v ---> %v", photon, fixed)
	}
	kinematics.CheckMassless(fixed)

	return corrected(kinematics.Add(track, fixed), Added), nil
}

func (e *Engine) trackBrem(req Request, track fmom.PxPyPzE, threshold float64) (Result, error) {
	if e.skip {
		return untouched, nil
	}

	energy, err := req.Row.Get(candidate.Column(req.Slot, candidate.BremTrackBasedEnergy))
	if err != nil {
		return Result{}, err
	}
	if energy < threshold {
		return corrected(track, NoneAdded), nil
	}

	gamma := kinematics.ColinearPhoton(track, energy)
	kinematics.CheckMassless(gamma)

	return corrected(kinematics.Add(track, gamma), Added), nil
}

func (e *Engine) trackBremRescaled(req Request, track fmom.PxPyPzE, threshold float64) (Result, error) {
	hasBrem, err := req.Row.Bool(candidate.Column(req.Slot, candidate.HasBremAdded))
	if err != nil {
		return Result{}, err
	}
	if hasBrem {
		logs.Diagf("Electron has already brem, skipping correction")
		full, err := kinematics.Build(req.Row, req.Slot, kinematics.Full)
		if err != nil {
			return Result{}, err
		}
		scaled, err := e.scale(full, req)
		if err != nil {
			return Result{}, err
		}
		return corrected(scaled, Unchanged), nil
	}

	energy, err := req.Row.Get(candidate.Column(req.Slot, candidate.BremTrackBasedEnergy))
	if err != nil {
		return Result{}, err
	}
	if energy < threshold {
		logs.Diagf("Brem energy is below threshold: %.0f < %.0f, skipping correction", energy, threshold)
		return untouched, nil
	}

	logs.Diagf("Correcting electron")
	res, err := e.trackBrem(req, track, threshold)
	if err != nil || !res.Corrected {
		return res, err
	}
	scaled, err := e.scale(res.Electron, req)
	if err != nil {
		return Result{}, err
	}
	res.Electron = scaled
	return res, nil
}

func (e *Engine) scale(electron fmom.PxPyPzE, req Request) (fmom.PxPyPzE, error) {
	if e.scaler == nil {
		return electron, nil
	}
	scaled, err := e.scaler.Scale(electron, req.Row, req.Slot)
	if err != nil {
		return fmom.PxPyPzE{}, fmt.Errorf("calibration of %s: %w", req.Slot, err)
	}
	return scaled, nil
}

// Apply writes a Result into row: the momentum columns when an electron
// was produced, and the brem flag unless the status is Unchanged.
func Apply(row *candidate.Row, s candidate.Slot, res Result) error {
	if !res.Status.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, res.Status)
	}
	if !res.Corrected {
		return nil
	}

	p := res.Electron
	pt, eta, phi := kinematics.PtEtaPhi(kinematics.Vec3(p))
	row.Set(candidate.Column(s, candidate.PX), p.Px())
	row.Set(candidate.Column(s, candidate.PY), p.Py())
	row.Set(candidate.Column(s, candidate.PZ), p.Pz())
	row.Set(candidate.Column(s, candidate.PT), pt)
	row.Set(candidate.Column(s, candidate.ETA), eta)
	row.Set(candidate.Column(s, candidate.PHI), phi)

	if res.Status == Unchanged {
		return nil
	}
	row.Set(candidate.Column(s, candidate.HasBremAdded), float64(res.Status))
	return nil
}
