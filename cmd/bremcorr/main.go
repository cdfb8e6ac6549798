// Command bremcorr applies electron brem corrections to B -> K e e
// candidate tables stored in SQLite and recomputes the candidate masses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bremcorr/internal/config"
	"github.com/banshee-data/bremcorr/internal/monitoring"
)

// globals holds the persistent flags and the configuration they resolve to.
type globals struct {
	configPath string
	logFormat  string
	logLevel   string

	cfg *config.CorrectionConfig
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "bremcorr",
		Short: "Electron bremsstrahlung correction and mass recomputation",
		Long: `bremcorr corrects the electrons of B -> K e e candidates for
bremsstrahlung and recomputes the B and J/psi masses, transverse momenta,
pointing angles and, for simulation, the smeared masses.

Candidates are read from and written to tables of a SQLite database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "JSON run configuration (default: built-in defaults)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "console", "log format: console or json")

	root.AddCommand(newCorrectCmd(g))
	root.AddCommand(newSwapCmd(g))
	root.AddCommand(newRunsCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func (g *globals) init(cmd *cobra.Command) error {
	g.cfg = config.EmptyCorrectionConfig()
	if g.configPath != "" {
		cfg, err := config.LoadCorrectionConfig(g.configPath)
		if err != nil {
			return err
		}
		g.cfg = cfg
	}
	if cmd.Flags().Changed("log-level") {
		g.cfg.LogLevel = &g.logLevel
	}

	logger, err := monitoring.New(g.cfg.GetLogLevel(), g.logFormat)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	monitoring.SetLogger(logger)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	_ = monitoring.Logger().Sync()
	if err != nil {
		os.Exit(1)
	}
}
