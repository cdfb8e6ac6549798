// Package q2smear smears reconstructed masses in simulation so that their
// resolution and scale match data, per number of brem photons and
// data-taking block.
package q2smear

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/bremcorr/internal/monitoring"
)

var logs = monitoring.Named("q2smear")

// InvalidMass marks a mass that could not be computed.
const InvalidMass = -1.0

var (
	// ErrUnknownBlock is returned for a block without parameters.
	ErrUnknownBlock = errors.New("unknown data-taking block")
	// ErrUnknownBrem is returned for a brem multiplicity without parameters.
	ErrUnknownBrem = errors.New("unknown brem multiplicity")
	// ErrTable is matched by every table loading error.
	ErrTable = errors.New("invalid smearing table")
)

//go:embed data/q2smear.yaml
var defaultTable []byte

// Smearer returns the smeared mass of a candidate.
type Smearer interface {
	Mass(nBrem, block int, reco, truth float64) (float64, error)
}

// Params are the smearing parameters of one category.
type Params struct {
	// Scale is the data over simulation resolution ratio.
	Scale float64 `yaml:"scale"`
	// Shift is the mass-scale offset in MeV.
	Shift float64 `yaml:"shift"`
}

// Apply returns truth + Scale*(reco - truth) + Shift.
func (p Params) Apply(reco, truth float64) float64 {
	return truth + p.Scale*(reco-truth) + p.Shift
}

// Table holds Params by brem multiplicity and block. It is read-only
// after loading.
type Table struct {
	params map[int]map[int]Params
}

type tableFile struct {
	Params map[int]map[int]Params `yaml:"params"`
}

// Load decodes and validates a YAML table.
func Load(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file tableFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTable, err)
	}
	if len(file.Params) == 0 {
		return nil, fmt.Errorf("%w: no parameters", ErrTable)
	}
	for nb, blocks := range file.Params {
		for blk, p := range blocks {
			if !(p.Scale > 0) {
				return nil, fmt.Errorf("%w: nbrem %d block %d scale %v", ErrTable, nb, blk, p.Scale)
			}
		}
	}
	return &Table{params: file.Params}, nil
}

// Default returns the packaged table.
func Default() (*Table, error) {
	return Load(bytes.NewReader(defaultTable))
}

// Blocks returns the sorted blocks known for nBrem.
func (t *Table) Blocks(nBrem int) []int {
	out := make([]int, 0, len(t.params[nBrem]))
	for b := range t.params[nBrem] {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

// Params returns the parameters of a category.
func (t *Table) Params(nBrem, block int) (Params, error) {
	blocks, ok := t.params[nBrem]
	if !ok {
		return Params{}, fmt.Errorf("%w: %d", ErrUnknownBrem, nBrem)
	}
	p, ok := blocks[block]
	if !ok {
		return Params{}, fmt.Errorf("%w: %d (nbrem %d)", ErrUnknownBlock, block, nBrem)
	}
	return p, nil
}

// Mass implements Smearer. An invalid or non-finite reco mass is returned
// unchanged.
func (t *Table) Mass(nBrem, block int, reco, truth float64) (float64, error) {
	if reco == InvalidMass || math.IsNaN(reco) || math.IsInf(reco, 0) {
		logs.Tracef("Not smearing invalid mass %v", reco)
		return reco, nil
	}
	p, err := t.Params(nBrem, block)
	if err != nil {
		return 0, err
	}
	return p.Apply(reco, truth), nil
}
