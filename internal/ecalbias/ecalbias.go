// Package ecalbias corrects the energy of brem photons with a bias map of
// the electromagnetic calorimeter, binned by calorimeter area, row and
// column.
package ecalbias

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"go-hep.org/x/hep/fmom"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/bremcorr/internal/monitoring"
)

// LoggerName is the monitoring stream set used by this package.
const LoggerName = "ecalbias"

var logs = monitoring.Named(LoggerName)

// Calorimeter areas.
const (
	Outer  = 0
	Middle = 1
	Inner  = 2
)

var (
	// ErrUnknownArea is returned for an area the map has no grid for.
	ErrUnknownArea = errors.New("unknown calorimeter area")
	// ErrMap is matched by every bias map loading error.
	ErrMap = errors.New("invalid bias map")
)

//go:embed data/bias_map.yaml
var defaultMap []byte

// Corrector corrects a brem photon reconstructed in a calorimeter cell.
type Corrector interface {
	Correct(photon fmom.PxPyPzE, row, col, area int) (fmom.PxPyPzE, error)
}

// Grid holds the bias factors mu = E_calo / E_true of one area. Factor
// [i][j] covers rows RowMin+i*BinSize up to the next bin and likewise for
// columns.
type Grid struct {
	Area    int         `yaml:"area"`
	Name    string      `yaml:"name"`
	RowMin  int         `yaml:"row_min"`
	ColMin  int         `yaml:"col_min"`
	BinSize int         `yaml:"bin_size"`
	Factors [][]float64 `yaml:"factors"`
}

// Factor returns the bias factor for a cell. ok is false outside the grid.
func (g *Grid) Factor(row, col int) (f float64, ok bool) {
	if row < g.RowMin || col < g.ColMin {
		return 0, false
	}
	i := (row - g.RowMin) / g.BinSize
	j := (col - g.ColMin) / g.BinSize
	if i >= len(g.Factors) || j >= len(g.Factors[i]) {
		return 0, false
	}
	return g.Factors[i][j], true
}

func (g *Grid) validate() error {
	if g.BinSize <= 0 {
		return fmt.Errorf("%w: area %d bin size %d", ErrMap, g.Area, g.BinSize)
	}
	if len(g.Factors) == 0 {
		return fmt.Errorf("%w: area %d has no factors", ErrMap, g.Area)
	}
	for i, r := range g.Factors {
		for j, f := range r {
			if !(f > 0) {
				return fmt.Errorf("%w: area %d bin (%d, %d) factor %v", ErrMap, g.Area, i, j, f)
			}
		}
	}
	return nil
}

// Map is a bias map over all calorimeter areas. It is read-only after
// loading and safe for concurrent use.
type Map struct {
	grids map[int]*Grid
}

type mapFile struct {
	Areas []*Grid `yaml:"areas"`
}

// Load decodes and validates a YAML bias map.
func Load(r io.Reader) (*Map, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file mapFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMap, err)
	}

	m := &Map{grids: make(map[int]*Grid, len(file.Areas))}
	for _, g := range file.Areas {
		if err := g.validate(); err != nil {
			return nil, err
		}
		if _, dup := m.grids[g.Area]; dup {
			return nil, fmt.Errorf("%w: duplicate area %d", ErrMap, g.Area)
		}
		m.grids[g.Area] = g
	}
	return m, nil
}

// Default returns the packaged bias map.
func Default() (*Map, error) {
	logs.Diagf("Loading packaged ECAL bias map")
	return Load(bytes.NewReader(defaultMap))
}

// Correct returns the photon with its 4-momentum divided by the bias
// factor of the cell. The direction is unchanged, so a massless photon
// stays massless. Cells outside the map leave the photon unchanged.
func (m *Map) Correct(photon fmom.PxPyPzE, row, col, area int) (fmom.PxPyPzE, error) {
	g, ok := m.grids[area]
	if !ok {
		return fmom.PxPyPzE{}, fmt.Errorf("%w: %d", ErrUnknownArea, area)
	}
	f, ok := g.Factor(row, col)
	if !ok {
		logs.Tracef("Cell %d/%d outside the %s map", row, col, g.Name)
		return photon, nil
	}
	return fmom.NewPxPyPzE(photon.Px()/f, photon.Py()/f, photon.Pz()/f, photon.E()/f), nil
}
