package kinematics

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/banshee-data/bremcorr/internal/candidate"
)

// MasslessTolerance is the relative tolerance between a brem photon's
// energy and momentum magnitude before a warning is logged.
const MasslessTolerance = 1.0

// DeriveBremPhoton returns the brem photon of a slot as the difference
// between the full electron and its track.
func DeriveBremPhoton(row *candidate.Row, s candidate.Slot, track fmom.PxPyPzE) (fmom.PxPyPzE, error) {
	full, err := Build(row, s, Full)
	if err != nil {
		return fmom.PxPyPzE{}, err
	}
	photon := Sub(full, track)
	CheckMassless(photon)
	return photon, nil
}

// Masslessness returns |E - |p|| for a photon candidate.
func Masslessness(photon fmom.PxPyPzE) float64 {
	return math.Abs(photon.E() - Momentum(photon))
}

// CheckMassless reports whether the photon energy and momentum agree
// within MasslessTolerance. Disagreement is logged, never returned as an
// error: subtracting two close 4-vectors leaves noise at the MeV level.
func CheckMassless(photon fmom.PxPyPzE) bool {
	e := photon.E()
	p := Momentum(photon)
	if !scalar.EqualWithinRel(e, p, MasslessTolerance) {
		logs.Opsf("Brem energy and momentum are not equal: %.5f==%.5f", e, p)
		return false
	}
	logs.Tracef("Brem photon energy and momentum are close enough: %.5f==%.5f", e, p)
	return true
}

// ColinearPhoton returns a massless photon with the direction of dir and
// total energy energy.
func ColinearPhoton(dir fmom.PxPyPzE, energy float64) fmom.PxPyPzE {
	_, eta, phi := PtEtaPhi(Vec3(dir))
	unit := fmom.NewPtEtaPhiM(1, eta, phi, 0)
	f := energy / unit.E()
	return fmom.NewPxPyPzE(f*unit.Px(), f*unit.Py(), f*unit.Pz(), f*unit.E())
}
