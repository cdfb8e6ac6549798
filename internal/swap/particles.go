package swap

import (
	"errors"
	"fmt"
)

// ErrUnknownParticle is returned for a PDG ID outside the particle table.
var ErrUnknownParticle = errors.New("unknown particle")

// Particle is a charged track hypothesis. Mass is in MeV and Charge in
// units of e.
type Particle struct {
	ID     int
	Name   string
	Mass   float64
	Charge int
}

// particles holds the positive PDG IDs. Charge is that of the particle
// with the positive ID.
var particles = map[int]Particle{
	11:   {ID: 11, Name: "e-", Mass: 0.51099895, Charge: -1},
	13:   {ID: 13, Name: "mu-", Mass: 105.6583755, Charge: -1},
	211:  {ID: 211, Name: "pi+", Mass: 139.57039, Charge: 1},
	321:  {ID: 321, Name: "K+", Mass: 493.677, Charge: 1},
	2212: {ID: 2212, Name: "p", Mass: 938.27208816, Charge: 1},
}

// Lookup returns the particle of a PDG ID. Negative IDs are the
// antiparticles.
func Lookup(id int) (Particle, error) {
	abs := id
	if abs < 0 {
		abs = -abs
	}
	p, ok := particles[abs]
	if !ok {
		return Particle{}, fmt.Errorf("%w: PDG ID %d", ErrUnknownParticle, id)
	}
	if id < 0 {
		p.ID = id
		p.Charge = -p.Charge
		p.Name = antiName(p.Name)
	}
	return p, nil
}

func antiName(name string) string {
	switch name[len(name)-1] {
	case '-':
		return name[:len(name)-1] + "+"
	case '+':
		return name[:len(name)-1] + "-"
	}
	return "anti-" + name
}
