// Package diagnostics histograms masses before and after correction and
// renders the comparison plots.
package diagnostics

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

var logs = monitoring.Named("diagnostics")

// Range is a histogram binning.
type Range struct {
	Bins     int
	Min, Max float64
}

// DefaultRanges bins the recomputed masses in MeV.
var DefaultRanges = map[string]Range{
	"B_M":    {Bins: 100, Min: 4500, Max: 6000},
	"Jpsi_M": {Bins: 100, Min: 0, Max: 5000},
}

// Summary describes one histogram.
type Summary struct {
	Entries int64
	Mean    float64
	StdDev  float64
}

func (s Summary) String() string {
	return fmt.Sprintf("entries=%d mean=%.2f std=%.2f", s.Entries, s.Mean, s.StdDev)
}

// Comparison is one quantity histogrammed before and after correction.
type Comparison struct {
	Name   string
	Before *hbook.H1D
	After  *hbook.H1D
}

// Report holds the comparisons of a run.
type Report struct {
	comps map[string]*Comparison
}

// NewReport books a before/after pair for each range.
func NewReport(ranges map[string]Range) *Report {
	r := &Report{comps: make(map[string]*Comparison, len(ranges))}
	for name, rg := range ranges {
		r.comps[name] = &Comparison{
			Name:   name,
			Before: hbook.NewH1D(rg.Bins, rg.Min, rg.Max),
			After:  hbook.NewH1D(rg.Bins, rg.Min, rg.Max),
		}
	}
	return r
}

// Fill histograms column name of before and column name+"_"+suffix of
// after (or name when suffix is empty). NaN and invalid (negative) masses
// are skipped.
func (r *Report) Fill(before, after *candidate.Table, suffix string) {
	for name, c := range r.comps {
		outName := name
		if suffix != "" {
			outName += "_" + suffix
		}
		if before.HasColumn(name) {
			fill(c.Before, before.Column(name))
		}
		if after.HasColumn(outName) {
			fill(c.After, after.Column(outName))
		}
	}
}

func fill(h *hbook.H1D, vs []float64) {
	for _, v := range vs {
		if math.IsNaN(v) || v < 0 {
			continue
		}
		h.Fill(v, 1)
	}
}

// Names returns the booked quantities in order.
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.comps))
	for n := range r.comps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the comparison for name.
func (r *Report) Get(name string) (*Comparison, bool) {
	c, ok := r.comps[name]
	return c, ok
}

// Summarise describes h. Empty histograms have a zero mean and spread.
func Summarise(h *hbook.H1D) Summary {
	s := Summary{Entries: h.Entries()}
	if s.Entries == 0 {
		return s
	}
	s.Mean = h.XMean()
	if s.Entries > 1 {
		s.StdDev = h.XStdDev()
	}
	return s
}

// Log writes one line per comparison.
func (r *Report) Log() {
	for _, n := range r.Names() {
		c := r.comps[n]
		logs.Diagf("%s before: %s", n, Summarise(c.Before))
		logs.Diagf("%s after:  %s", n, Summarise(c.After))
	}
}

// Save writes one plot per comparison into dir as <name>.<format>.
// format is any extension gonum/plot can render (png, pdf, svg).
func (r *Report) Save(dir, format string) ([]string, error) {
	var paths []string
	for _, n := range r.Names() {
		path := filepath.Join(dir, n+"."+format)
		if err := r.comps[n].save(path); err != nil {
			return paths, fmt.Errorf("saving %s: %w", n, err)
		}
		paths = append(paths, path)
	}
	logs.Diagf("Wrote %d diagnostic plots to %s", len(paths), dir)
	return paths, nil
}

func (c *Comparison) save(path string) error {
	p := hplot.New()
	p.Title.Text = c.Name
	p.X.Label.Text = c.Name + " [MeV]"
	p.Y.Label.Text = "Candidates"

	for i, h := range []struct {
		label string
		hist  *hbook.H1D
	}{
		{"input", c.Before},
		{"corrected", c.After},
	} {
		ph := hplot.NewH1D(h.hist)
		ph.LineStyle.Color = plotutil.Color(i)
		ph.LineStyle.Width = vg.Points(1.5)
		ph.FillColor = color.Transparent
		p.Add(ph)
		p.Legend.Add(h.label, ph)
	}
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
