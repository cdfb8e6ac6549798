package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bremcorr/internal/brem"
	"github.com/banshee-data/bremcorr/internal/calibration"
	"github.com/banshee-data/bremcorr/internal/config"
	"github.com/banshee-data/bremcorr/internal/diagnostics"
	"github.com/banshee-data/bremcorr/internal/ecalbias"
	"github.com/banshee-data/bremcorr/internal/masscorr"
	"github.com/banshee-data/bremcorr/internal/monitoring"
	"github.com/banshee-data/bremcorr/internal/pipeline"
	"github.com/banshee-data/bremcorr/internal/q2smear"
	"github.com/banshee-data/bremcorr/internal/store"
)

var logs = monitoring.Named("bremcorr")

type correctFlags struct {
	db         string
	input      string
	output     string
	kind       string
	suffix     string
	threshold  float64
	workers    int
	chunk      int
	nmax       int
	skip       bool
	noCalib    bool
	plotDir    string
	plotFormat string
}

func newCorrectCmd(g *globals) *cobra.Command {
	f := &correctFlags{}
	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Correct electrons and recompute candidate masses",
		Long: `Read a candidate table, correct both electrons with the chosen brem
strategy and write the recomputed masses to a new table.

Strategies:
  ecalo_bias    correct an attached brem photon with the ECAL bias map
  brem_track_1  add a track-based brem photon above the energy threshold
  brem_track_2  as brem_track_1 for electrons without brem, then rescale`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, g.cfg)
			if err := g.cfg.Validate(); err != nil {
				return err
			}
			return runCorrect(cmd.Context(), g.cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.db, "db", "candidates.db", "SQLite database holding the candidate tables")
	fl.StringVar(&f.input, "input", "", "input table (overrides config)")
	fl.StringVar(&f.output, "output", "", "output table (default <input>_<suffix>)")
	fl.StringVar(&f.kind, "kind", "", "correction strategy (overrides config)")
	fl.StringVar(&f.suffix, "suffix", "", "suffix appended to the recomputed columns (default: the strategy)")
	fl.Float64Var(&f.threshold, "threshold", 0, "brem energy threshold in MeV (overrides config)")
	fl.IntVar(&f.workers, "workers", 0, "concurrent chunks (overrides config)")
	fl.IntVar(&f.chunk, "chunk", 0, "rows per chunk (overrides config)")
	fl.IntVar(&f.nmax, "nmax", 0, "process at most this many rows (overrides config)")
	fl.BoolVar(&f.skip, "skip-correction", false, "run every stage without changing the electrons")
	fl.BoolVar(&f.noCalib, "no-calibration", false, "do not rescale electrons with the ECAL calibration")
	fl.StringVar(&f.plotDir, "plot", "", "write before/after mass plots into this directory")
	fl.StringVar(&f.plotFormat, "plot-format", "png", "plot file format: png, pdf or svg")
	return cmd
}

// apply overlays the flags that were set on the command line onto cfg.
func (f *correctFlags) apply(cmd *cobra.Command, cfg *config.CorrectionConfig) {
	fl := cmd.Flags()
	if fl.Changed("input") {
		cfg.InputTable = &f.input
	}
	if fl.Changed("output") {
		cfg.OutputTable = &f.output
	}
	if fl.Changed("kind") {
		cfg.Strategy = &f.kind
	}
	if fl.Changed("suffix") {
		cfg.Suffix = &f.suffix
	}
	if fl.Changed("threshold") {
		cfg.BremEnergyThreshold = &f.threshold
	}
	if fl.Changed("workers") {
		cfg.Workers = &f.workers
	}
	if fl.Changed("chunk") {
		cfg.ChunkSize = &f.chunk
	}
	if fl.Changed("nmax") {
		cfg.MaxRows = &f.nmax
	}
	if fl.Changed("skip-correction") {
		cfg.SkipCorrection = &f.skip
	}
	if fl.Changed("no-calibration") {
		use := !f.noCalib
		cfg.UseCalibration = &use
	}
}

func runCorrect(ctx context.Context, cfg *config.CorrectionConfig, f *correctFlags) error {
	strategy, err := cfg.BremStrategy()
	if err != nil {
		return err
	}

	st, err := store.Open(f.db)
	if err != nil {
		return err
	}
	defer st.Close()

	raw, err := st.LoadTable(ctx, cfg.GetInputTable())
	if err != nil {
		return err
	}
	isMC := pipeline.IsMC(raw)
	skip := cfg.GetSkipCorrection()
	if isMC && strategy.Name() == brem.NameCaloBias && !skip {
		logs.Opsf("Simulated sample with %s: the bias map only applies to data, turning the correction off", brem.NameCaloBias)
		skip = true
	}

	table, stats := pipeline.Preprocess(raw)
	rec, err := newRecomputer(cfg, strategy, skip, isMC)
	if err != nil {
		return err
	}
	runner, err := pipeline.NewRunner(pipeline.Config{
		Processor: rec,
		Workers:   cfg.GetWorkers(),
		ChunkSize: cfg.GetChunkSize(),
		MaxRows:   cfg.GetMaxRows(),
		Suffix:    cfg.GetSuffix(),
		Verbose:   cfg.GetLogLevel() == "debug",
	})
	if err != nil {
		return err
	}

	run := &store.Run{
		Strategy:    strategy.Name(),
		Threshold:   cfg.GetBremEnergyThreshold(),
		Skip:        skip,
		IsMC:        isMC,
		InputTable:  cfg.GetInputTable(),
		OutputTable: cfg.GetOutputTable(),
		Suffix:      cfg.GetSuffix(),
		RowsIn:      raw.Len(),
	}
	if err := st.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	res, err := runner.Run(ctx, table)
	if err == nil {
		err = st.WriteTable(ctx, run.OutputTable, res.Table)
	}
	run.RowsOut = res.Processed
	run.RowsDropped = (stats.In - stats.Kept) + res.Dropped
	// The run record is finished with a fresh context so cancelled runs
	// are still marked failed.
	if ferr := st.FinishRun(context.WithoutCancel(ctx), run, err); ferr != nil {
		logs.Opsf("Failed to finish run %s: %v", run.RunID, ferr)
	}
	if err != nil {
		return err
	}
	logs.Diagf("Run %s: %d -> %d candidates in %s, written to %s",
		run.RunID, run.RowsIn, run.RowsOut, res.Elapsed, run.OutputTable)

	if f.plotDir != "" {
		report := diagnostics.NewReport(diagnostics.DefaultRanges)
		report.Fill(table, res.Table, cfg.GetSuffix())
		report.Log()
		if _, err := report.Save(f.plotDir, f.plotFormat); err != nil {
			return err
		}
	}
	return nil
}

func newRecomputer(cfg *config.CorrectionConfig, strategy brem.Strategy, skip, isMC bool) (*masscorr.Recomputer, error) {
	opts := brem.Options{
		SkipCorrection: skip,
		Scaler:         calibration.NewScaler(calibration.ScalerOptions{Enabled: cfg.GetUseCalibration()}),
	}
	if strategy.Name() == brem.NameCaloBias {
		m, err := ecalbias.Default()
		if err != nil {
			return nil, err
		}
		opts.BiasMap = m
	}

	mopts := masscorr.Options{
		Strategy:       strategy,
		SkipCorrection: skip,
		IsMC:           isMC,
		Engine:         brem.NewEngine(opts),
	}
	if isMC {
		t, err := q2smear.Default()
		if err != nil {
			return nil, err
		}
		mopts.Smearer = t
	}
	return masscorr.New(mopts)
}
