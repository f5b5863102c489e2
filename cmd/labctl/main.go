// labctl - cyber-range lab controller CLI for students and instructors.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rangelab/labctl/internal/agent"
	"github.com/rangelab/labctl/internal/agentlog"
	"github.com/rangelab/labctl/internal/config"
	"github.com/rangelab/labctl/internal/controller"
	"github.com/rangelab/labctl/internal/lab"
	"github.com/rangelab/labctl/internal/rangeenv"
	"github.com/rangelab/labctl/internal/store"
	"github.com/rangelab/labctl/internal/verify"
)

func main() {
	// Structured logs go to stderr so stdout stays clean command output.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(studentCmd, instructorCmd)
}

// Unknown or missing subcommands print usage and exit clean; only
// runtime failures classify as errors.
var rootCmd = &cobra.Command{
	Use:           "labctl",
	Short:         "Cyber-range lab controller for students and instructors",
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

// app bundles the wired components for one CLI invocation.
type app struct {
	cfg          *config.Config
	repo         store.Repository
	catalog      *lab.Catalog
	interactions *agentlog.Log
	ctl          *controller.Controller
	rng          *rangeenv.Manager
}

// newApp loads configuration and wires every component. Each CLI run is
// an independent short-lived process; cross-process safety lives in the
// store and log, not here.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	repo, err := newRepository(cfg)
	if err != nil {
		return nil, err
	}

	interactions, err := agentlog.New(cfg.LogsDir)
	if err != nil {
		repo.Close()
		return nil, err
	}

	catalog := lab.NewCatalog(cfg.LabsDir)
	engine := verify.NewEngine(cfg.VerifyTimeout)
	agents := agent.NewController(
		agent.NewClient(cfg.OllamaURL, cfg.ChatTimeout),
		interactions, cfg.RedModel, cfg.BlueModel)

	var rng *rangeenv.Manager
	var resetter controller.RangeResetter
	if cfg.Range.Enabled {
		rng, err = rangeenv.NewManager(cfg.Range.Network, cfg.Range.Subnet)
		if err != nil {
			slog.Warn("range environment unavailable", "error", err)
		} else {
			resetter = rng
		}
	}

	ctl := controller.New(catalog, repo, engine, agents, interactions, resetter, cfg.PassScore)

	return &app{
		cfg:          cfg,
		repo:         repo,
		catalog:      catalog,
		interactions: interactions,
		ctl:          ctl,
		rng:          rng,
	}, nil
}

func newRepository(cfg *config.Config) (store.Repository, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return store.NewSQLite(cfg.DBPath)
	default:
		return store.NewFileStore(cfg.StateDir)
	}
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		slog.Warn("failed to close repository", "error", err)
	}
	if a.rng != nil {
		if err := a.rng.Close(); err != nil {
			slog.Warn("failed to close range manager", "error", err)
		}
	}
}
