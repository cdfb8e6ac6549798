// Package kinematics builds particle 4-momenta from candidate columns and
// provides the small amount of vector glue the correction stages need on
// top of go-hep fmom and gonum r3.
//
// All energies and momenta are in MeV.
package kinematics

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

// Mass hypotheses in MeV.
const (
	ElectronMass = 0.511
	KaonMass     = 493.6
)

var logs = monitoring.Named("kinematics")

// Kind selects which momentum triplet of a slot is read.
type Kind int

const (
	// Full reads S_PX/PY/PZ, the reconstructed particle with any brem
	// already attached.
	Full Kind = iota
	// Track reads S_TRACK_PX/PY/PZ, the track-only measurement.
	Track
)

func (k Kind) String() string {
	if k == Track {
		return "track"
	}
	return "full"
}

func (k Kind) column(s candidate.Slot, field string) string {
	if k == Track {
		return candidate.TrackColumn(s, field)
	}
	return candidate.Column(s, field)
}

// Build reconstructs the electron 4-momentum of a slot from its Cartesian
// momentum columns and the electron mass.
func Build(row *candidate.Row, s candidate.Slot, kind Kind) (fmom.PxPyPzE, error) {
	var p [3]float64
	for i, field := range []string{candidate.PX, candidate.PY, candidate.PZ} {
		v, err := row.Get(kind.column(s, field))
		if err != nil {
			return fmom.PxPyPzE{}, err
		}
		p[i] = v
	}
	return FromCartesian(r3.Vec{X: p[0], Y: p[1], Z: p[2]}, ElectronMass), nil
}

// FromCartesian builds a 4-momentum from a 3-momentum and a mass, going
// through (pt, eta, phi) as the stored branches do.
func FromCartesian(p r3.Vec, m float64) fmom.PxPyPzE {
	pt, eta, phi := PtEtaPhi(p)
	return FromPtEtaPhi(pt, eta, phi, m)
}

// FromPtEtaPhi builds a Cartesian+energy 4-momentum from collider
// coordinates and a mass.
func FromPtEtaPhi(pt, eta, phi, m float64) fmom.PxPyPzE {
	p4 := fmom.NewPtEtaPhiM(pt, eta, phi, m)
	return fmom.NewPxPyPzE(p4.Px(), p4.Py(), p4.Pz(), p4.E())
}

// PtEtaPhi converts a 3-momentum to transverse momentum, pseudorapidity
// and azimuth. A momentum along the beam axis has no finite eta: it is
// returned as NaN, so rebuilt 4-momenta carry NaN and the row is dropped
// downstream.
func PtEtaPhi(p r3.Vec) (pt, eta, phi float64) {
	pt = math.Hypot(p.X, p.Y)
	phi = math.Atan2(p.Y, p.X)
	if pt == 0 {
		logs.Opsf("Momentum (%g, %g, %g) has no transverse component, eta is undefined", p.X, p.Y, p.Z)
		return pt, math.NaN(), phi
	}
	eta = math.Asinh(p.Z / pt)
	return pt, eta, phi
}

// Vec3 returns the 3-momentum of p4.
func Vec3(p4 fmom.PxPyPzE) r3.Vec {
	return r3.Vec{X: p4.Px(), Y: p4.Py(), Z: p4.Pz()}
}

// Add returns a + b.
func Add(a, b fmom.PxPyPzE) fmom.PxPyPzE {
	sum := fmom.Add(&a, &b)
	return fmom.NewPxPyPzE(sum.Px(), sum.Py(), sum.Pz(), sum.E())
}

// Sub returns a - b.
func Sub(a, b fmom.PxPyPzE) fmom.PxPyPzE {
	return fmom.NewPxPyPzE(a.Px()-b.Px(), a.Py()-b.Py(), a.Pz()-b.Pz(), a.E()-b.E())
}

// Momentum returns |p| of p4.
func Momentum(p4 fmom.PxPyPzE) float64 {
	return r3.Norm(Vec3(p4))
}

// InvariantMass returns sqrt(E^2 - |p|^2). Space-like vectors give NaN,
// which callers treat as an invalid mass.
func InvariantMass(p4 fmom.PxPyPzE) float64 {
	p := Momentum(p4)
	e := p4.E()
	return math.Sqrt(e*e - p*p)
}

// IsClose compares two 4-momenta component-wise with the given relative
// tolerance and an absolute floor of 1e-8.
func IsClose(a, b fmom.PxPyPzE, rtol float64) bool {
	x := [4]float64{a.Px(), a.Py(), a.Pz(), a.E()}
	y := [4]float64{b.Px(), b.Py(), b.Pz(), b.E()}
	for i := range x {
		if !scalar.EqualWithinAbsOrRel(x[i], y[i], 1e-8, rtol) {
			return false
		}
	}
	return true
}

// ScaleMomentum multiplies the 3-momentum of p4 by f and recomputes the
// energy for mass m.
func ScaleMomentum(p4 fmom.PxPyPzE, f, m float64) fmom.PxPyPzE {
	p := r3.Scale(f, Vec3(p4))
	e := math.Sqrt(r3.Dot(p, p) + m*m)
	return fmom.NewPxPyPzE(p.X, p.Y, p.Z, e)
}

// DIRA returns the cosine of the angle between the flight direction
// sv - pv and the momentum p. Degenerate vectors return NaN.
func DIRA(pv, sv, p r3.Vec) float64 {
	return r3.Cos(r3.Sub(sv, pv), p)
}
