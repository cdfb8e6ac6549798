package masscorr

import (
	"fmt"
	"math"
)

// InvalidMass is written for a mass that could not be computed.
const InvalidMass = -1.0

// Mass is an invariant mass that may be invalid, e.g. for a space-like
// 4-momentum.
type Mass struct {
	Value float64
	Valid bool
}

// NewMass wraps v; NaN and infinities are invalid.
func NewMass(v float64) Mass {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Mass{}
	}
	return Mass{Value: v, Valid: true}
}

// Float returns the mass, or InvalidMass.
func (m Mass) Float() float64 {
	if !m.Valid {
		return InvalidMass
	}
	return m.Value
}

func (m Mass) String() string {
	if !m.Valid {
		return "invalid"
	}
	return fmt.Sprintf("%.3f", m.Value)
}
