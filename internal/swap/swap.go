// Package swap recomputes hadron-lepton masses under alternative mass
// hypotheses, to study mis-identified backgrounds such as D0 -> K pi or
// J/psi -> mu mu with a track misread as an electron.
package swap

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/kinematics"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

// NoCombination is the mass written when no lepton pairs with the hadron.
const NoCombination = -999

// IDField is the column field holding the reconstructed PDG ID.
const IDField = "ID"

var logs = monitoring.Named("swap")

// Hypothesis assigns a new PDG ID to a slot.
type Hypothesis struct {
	Slot candidate.Slot
	ID   int
}

// Options configures a Calculator.
type Options struct {
	// Prefix names the output columns <prefix>_mass_org and
	// <prefix>_mass_swp.
	Prefix string

	// Leptons are tried in order. The first one passing the charge
	// requirement is combined with the hadron.
	Leptons []Hypothesis
	Hadron  Hypothesis

	// SameSign pairs the hadron with same-charge leptons instead of
	// opposite-charge ones.
	SameSign bool
}

// Calculator computes original and swapped di-track masses.
type Calculator struct {
	opts Options
}

// New validates opts and returns a Calculator.
func New(opts Options) (*Calculator, error) {
	if opts.Prefix == "" {
		return nil, errors.New("swap needs a column prefix")
	}
	if len(opts.Leptons) == 0 {
		return nil, errors.New("swap needs at least one lepton")
	}
	for _, h := range append([]Hypothesis{opts.Hadron}, opts.Leptons...) {
		if h.Slot == "" {
			return nil, errors.New("swap hypothesis without a slot")
		}
		if _, err := Lookup(h.ID); err != nil {
			return nil, fmt.Errorf("cannot create particle for %s: %w", h.Slot, err)
		}
	}
	if opts.SameSign {
		logs.Opsf("Building candidates from same sign tracks")
	}
	return &Calculator{opts: opts}, nil
}

// Columns returns the original and swapped mass columns.
func (c *Calculator) Columns() (org, swp string) {
	return c.opts.Prefix + "_mass_org", c.opts.Prefix + "_mass_swp"
}

// Masses returns the hadron-lepton mass with the reconstructed IDs and
// with the swapped hypotheses. Both are NoCombination when no lepton has
// the required charge.
func (c *Calculator) Masses(row *candidate.Row) (org, swp float64, err error) {
	had := c.opts.Hadron
	hadOld, hadP, err := track(row, had.Slot)
	if err != nil {
		return 0, 0, err
	}

	for _, lep := range c.opts.Leptons {
		lepOld, lepP, err := track(row, lep.Slot)
		if err != nil {
			return 0, 0, err
		}
		same := lepOld.Charge == hadOld.Charge
		if same != c.opts.SameSign {
			continue
		}

		hadNew, _ := Lookup(had.ID)
		lepNew, _ := Lookup(lep.ID)
		org = pairMass(hadP, hadOld.Mass, lepP, lepOld.Mass)
		swp = pairMass(hadP, hadNew.Mass, lepP, lepNew.Mass)
		logs.Tracef("%s: %s -> %s, %s: %s -> %s, mass %.0f -> %.0f",
			had.Slot, hadOld.Name, hadNew.Name, lep.Slot, lepOld.Name, lepNew.Name, org, swp)
		return org, swp, nil
	}

	logs.Diagf("Found no %s combination for %s", c.sign(), had.Slot)
	return NoCombination, NoCombination, nil
}

func (c *Calculator) sign() string {
	if c.opts.SameSign {
		return "same sign"
	}
	return "opposite sign"
}

func track(row *candidate.Row, s candidate.Slot) (Particle, r3.Vec, error) {
	id, err := row.Get(candidate.Column(s, IDField))
	if err != nil {
		return Particle{}, r3.Vec{}, err
	}
	p, err := Lookup(int(math.Round(id)))
	if err != nil {
		return Particle{}, r3.Vec{}, fmt.Errorf("%s: %w", s, err)
	}
	var v [3]float64
	for i, f := range []string{candidate.PX, candidate.PY, candidate.PZ} {
		if v[i], err = row.Get(candidate.Column(s, f)); err != nil {
			return Particle{}, r3.Vec{}, err
		}
	}
	return p, r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func pairMass(a r3.Vec, ma float64, b r3.Vec, mb float64) float64 {
	return kinematics.InvariantMass(kinematics.Add(
		kinematics.FromCartesian(a, ma),
		kinematics.FromCartesian(b, mb),
	))
}

// Process computes both masses for every row of t. The output keeps the
// input order and carries the event identifiers when present.
func (c *Calculator) Process(ctx context.Context, t *candidate.Table) (*candidate.Table, error) {
	orgCol, swpCol := c.Columns()
	cols := []string{orgCol, swpCol}
	for _, id := range []string{candidate.EventNumber, candidate.RunNumber} {
		if t.HasColumn(id) {
			cols = append(cols, id)
		}
	}
	out := candidate.NewTable(cols)
	logs.Diagf("Adding columns for %s/%d", c.opts.Hadron.Slot, c.opts.Hadron.ID)

	missing := 0
	for i, in := range t.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		org, swp, err := c.Masses(in)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if org == NoCombination {
			missing++
		}
		row := candidate.NewRow()
		row.Set(orgCol, org)
		row.Set(swpCol, swp)
		for _, id := range cols[2:] {
			v, err := in.Get(id)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			row.Set(id, v)
		}
		out.Append(row)
	}
	if missing > 0 {
		logs.Opsf("%d of %d candidates had no %s combination", missing, t.Len(), c.sign())
	}
	return out, nil
}
