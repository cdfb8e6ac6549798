package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/bremcorr/internal/brem"
	"github.com/banshee-data/bremcorr/internal/candidate"
	"github.com/banshee-data/bremcorr/internal/ecalbias"
	"github.com/banshee-data/bremcorr/internal/masscorr"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

// DefaultChunkSize is the number of rows per chunk when none is set.
const DefaultChunkSize = 100_000

// Processor recomputes one candidate row. Rows handed to Process belong
// to the call.
type Processor interface {
	Process(row *candidate.Row) (masscorr.Output, error)
}

// Config holds the dependencies and limits of a Runner.
type Config struct {
	Processor Processor

	// Workers bounds the number of chunks processed concurrently.
	// Values below 1 mean 1.
	Workers int

	// ChunkSize is the number of rows per chunk. Zero means
	// DefaultChunkSize.
	ChunkSize int

	// MaxRows limits the input to its first MaxRows rows. Zero means all.
	MaxRows int

	// Suffix, when set, is appended as "_<suffix>" to every recomputed
	// column. Event identifiers keep their names.
	Suffix string

	// Verbose keeps the per-electron loggers at their configured level.
	// By default they are raised to warnings during bulk processing.
	Verbose bool
}

// Result is the output of a run.
type Result struct {
	Table     *candidate.Table
	In        int
	Processed int
	Dropped   int
	Elapsed   time.Duration
}

// Runner applies a Processor to whole tables.
type Runner struct {
	cfg Config
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("pipeline needs a processor")
	}
	if cfg.ChunkSize < 0 || cfg.MaxRows < 0 {
		return nil, fmt.Errorf("invalid limits: chunk size %d, max rows %d", cfg.ChunkSize, cfg.MaxRows)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{cfg: cfg}, nil
}

// OutputColumns returns the columns of the output table for an input
// table with the given columns.
func (r *Runner) OutputColumns(input []string) []string {
	var cols []string
	for _, c := range masscorr.Columns() {
		if r.cfg.Suffix != "" {
			c += "_" + r.cfg.Suffix
		}
		cols = append(cols, c)
	}
	for _, c := range []string{candidate.EventNumber, candidate.RunNumber} {
		for _, in := range input {
			if in == c {
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// Run processes table. The first failing row aborts the run. Output rows
// keep the input order; rows whose output has a NaN are dropped.
func (r *Runner) Run(ctx context.Context, table *candidate.Table) (Result, error) {
	start := time.Now()
	if table == nil {
		table = candidate.NewTable(nil)
	}
	res := Result{Table: candidate.NewTable(r.OutputColumns(table.Columns))}

	n := table.Len()
	if r.cfg.MaxRows > 0 && n > r.cfg.MaxRows {
		diagf("Limiting input to %d of %d rows", r.cfg.MaxRows, n)
		n = r.cfg.MaxRows
	}
	res.In = n
	if n == 0 {
		opsf("No rows to process")
		return res, nil
	}

	if !r.cfg.Verbose {
		defer monitoring.Quiet(brem.LoggerName)()
		defer monitoring.Quiet(ecalbias.LoggerName)()
	}

	size := r.cfg.ChunkSize
	nChunks := (n + size - 1) / size
	chunks := make([][]*candidate.Row, nChunks)
	dropped := make([]int, nChunks)
	diagf("Applying bias correction to %d rows in %d chunks on %d workers", n, nChunks, r.cfg.Workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for c := range nChunks {
		lo, hi := c*size, min((c+1)*size, n)
		g.Go(func() error {
			rows, drop, err := r.chunk(ctx, table.Rows[lo:hi], lo)
			if err != nil {
				return err
			}
			chunks[c], dropped[c] = rows, drop
			tracef("Chunk %d [%d, %d) done, %d dropped", c, lo, hi, drop)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for c := range chunks {
		res.Table.Append(chunks[c]...)
		res.Dropped += dropped[c]
	}
	res.Processed = res.Table.Len()
	res.Elapsed = time.Since(start)
	if res.Dropped > 0 {
		opsf("Dropped %d of %d candidates with NaN outputs", res.Dropped, n)
	}
	diagf("Processed %d candidates in %s", res.Processed, res.Elapsed)
	return res, nil
}

func (r *Runner) chunk(ctx context.Context, rows []*candidate.Row, offset int) ([]*candidate.Row, int, error) {
	out := make([]*candidate.Row, 0, len(rows))
	drop := 0
	for i, in := range rows {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		o, err := r.cfg.Processor.Process(in.Clone())
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", offset+i, err)
		}
		if o.HasNaN() {
			drop++
			continue
		}
		row := o.Row(r.cfg.Suffix)
		for _, c := range []string{candidate.EventNumber, candidate.RunNumber} {
			if v, err := in.Get(c); err == nil {
				row.Set(c, v)
			}
		}
		out = append(out, row)
	}
	return out, drop, nil
}
