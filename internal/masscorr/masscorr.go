// Package masscorr corrects both electrons of a B -> K e e candidate and
// recomputes the composite masses, transverse momenta, pointing angles
// and, in simulation, the smeared masses.
package masscorr

import (
	"errors"
	"fmt"
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bremcorr/internal/brem"
	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/kinematics"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

var logs = monitoring.Named("masscorr")

// DefaultThreshold is the brem energy threshold, in MeV, used for mass
// recomputation when none is configured.
const DefaultThreshold = 400.0

// ElectronCorrector corrects one electron of a row in place.
type ElectronCorrector interface {
	Correct(row *candidate.Row, s candidate.Slot, st brem.Strategy) (brem.Result, error)
}

// Smearer returns the smeared mass of a candidate in simulation.
type Smearer interface {
	Mass(nBrem, block int, reco, truth float64) (float64, error)
}

// Options configures a Recomputer.
type Options struct {
	Strategy brem.Strategy
	// SkipCorrection leaves the electrons untouched and only recomputes.
	SkipCorrection bool
	// IsMC enables mass smearing, which needs Smearer.
	IsMC    bool
	Engine  ElectronCorrector
	Smearer Smearer
}

// Recomputer processes candidate rows. It holds no per-row state and is
// safe for concurrent use when its Engine and Smearer are.
type Recomputer struct {
	opts Options
}

// New validates opts and returns a Recomputer.
func New(opts Options) (*Recomputer, error) {
	if !opts.SkipCorrection {
		if opts.Engine == nil {
			return nil, errors.New("mass recomputation needs an electron corrector")
		}
		if opts.Strategy == nil {
			return nil, fmt.Errorf("%w: nil strategy", brem.ErrUnsupportedStrategy)
		}
	}
	if opts.IsMC && opts.Smearer == nil {
		return nil, errors.New("mass recomputation on simulation needs a smearer")
	}
	return &Recomputer{opts: opts}, nil
}

// Process corrects L1 and then L2 of row, in place, and recomputes the
// candidate from the corrected columns.
func (r *Recomputer) Process(row *candidate.Row) (Output, error) {
	for _, s := range candidate.Leptons {
		if err := r.correct(row, s); err != nil {
			return Output{}, err
		}
	}
	return r.compute(row)
}

func (r *Recomputer) correct(row *candidate.Row, s candidate.Slot) error {
	if r.opts.SkipCorrection {
		logs.Tracef("Skipping correction for %s", s)
		return nil
	}
	if _, err := r.opts.Engine.Correct(row, s, r.opts.Strategy); err != nil {
		return fmt.Errorf("correcting %s: %w", s, err)
	}
	return nil
}

func (r *Recomputer) compute(row *candidate.Row) (Output, error) {
	l1, err := fromStored(row, candidate.L1, kinematics.ElectronMass)
	if err != nil {
		return Output{}, err
	}
	l2, err := fromStored(row, candidate.L2, kinematics.ElectronMass)
	if err != nil {
		return Output{}, err
	}
	kp, err := fromStored(row, candidate.H, kinematics.KaonMass)
	if err != nil {
		return Output{}, err
	}

	jp := kinematics.Add(l1, l2)
	bp := kinematics.Add(jp, kp)

	out := Output{
		BM:     NewMass(kinematics.InvariantMass(bp)),
		JpsiM:  NewMass(kinematics.InvariantMass(jp)),
		BPT:    pt(bp),
		JpsiPT: pt(jp),
	}
	if out.L1, err = lepton(row, candidate.L1); err != nil {
		return Output{}, err
	}
	if out.L2, err = lepton(row, candidate.L2); err != nil {
		return Output{}, err
	}
	if out.L1Brem, err = row.Get(colL1Brem); err != nil {
		return Output{}, err
	}
	if out.L2Brem, err = row.Get(colL2Brem); err != nil {
		return Output{}, err
	}

	if out.JpsiMSmr, err = r.smear(row, candidate.Jpsi, out.JpsiM, out.L1Brem+out.L2Brem); err != nil {
		return Output{}, err
	}
	if out.BMSmr, err = r.smear(row, candidate.B, out.BM, out.L1Brem+out.L2Brem); err != nil {
		return Output{}, err
	}

	if out.BDira, err = dira(row, candidate.B, bp); err != nil {
		return Output{}, err
	}
	if out.JpsiDira, err = dira(row, candidate.Jpsi, jp); err != nil {
		return Output{}, err
	}
	return out, nil
}

func fromStored(row *candidate.Row, s candidate.Slot, m float64) (fmom.PxPyPzE, error) {
	var v [3]float64
	for i, field := range []string{candidate.PT, candidate.ETA, candidate.PHI} {
		x, err := row.Get(candidate.Column(s, field))
		if err != nil {
			return fmom.PxPyPzE{}, err
		}
		v[i] = x
	}
	return kinematics.FromPtEtaPhi(v[0], v[1], v[2], m), nil
}

func pt(p fmom.PxPyPzE) float64 {
	return math.Hypot(p.Px(), p.Py())
}

func lepton(row *candidate.Row, s candidate.Slot) (Lepton, error) {
	var v [leptonFields]float64
	for i, field := range leptonColumns {
		x, err := row.Get(candidate.Column(s, field))
		if err != nil {
			return Lepton{}, err
		}
		v[i] = x
	}
	return Lepton{PX: v[0], PY: v[1], PZ: v[2], PT: v[3]}, nil
}

func (r *Recomputer) smear(row *candidate.Row, particle string, reco Mass, nBrem float64) (float64, error) {
	if !r.opts.IsMC {
		return reco.Float(), nil
	}
	truth, err := row.Get(candidate.Column(particle, candidate.TrueM))
	if err != nil {
		return 0, err
	}
	block, err := row.Get(candidate.Block)
	if err != nil {
		return 0, err
	}
	smeared, err := r.opts.Smearer.Mass(int(math.Round(nBrem)), int(math.Round(block)), reco.Float(), truth)
	if err != nil {
		return 0, fmt.Errorf("smearing %s mass: %w", particle, err)
	}
	return smeared, nil
}

func dira(row *candidate.Row, particle string, p fmom.PxPyPzE) (float64, error) {
	var v [6]float64
	fields := []string{
		candidate.BPVX, candidate.BPVY, candidate.BPVZ,
		candidate.EndVX, candidate.EndVY, candidate.EndVZ,
	}
	for i, field := range fields {
		x, err := row.Get(candidate.Column(particle, field))
		if err != nil {
			return 0, err
		}
		v[i] = x
	}
	pv := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	sv := r3.Vec{X: v[3], Y: v[4], Z: v[5]}
	return kinematics.DIRA(pv, sv, kinematics.Vec3(p)), nil
}
