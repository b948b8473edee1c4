// Command cryoflow runs glacier flow simulations and parameter estimation
// from a YAML run configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cryoflow/cryoflow/config"
	"github.com/cryoflow/cryoflow/datasets"
	"github.com/cryoflow/cryoflow/fields"
	"github.com/cryoflow/cryoflow/geometry"
	"github.com/cryoflow/cryoflow/mesh"
)

var (
	configFile string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cryoflow",
	Short: "Glacier flow modeling: meshing, simulation, and parameter estimation",
	Long: `cryoflow models the flow of glaciers and ice shelves.

It meshes glacier outlines, solves the shallow-shelf momentum balance for
ice velocity, steps the ice thickness forward in time, and estimates
unobservable parameters like the ice fluidity from velocity observations.
All commands read their settings from a YAML run configuration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "cryoflow.yaml",
		"run configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.AddCommand(meshCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(estimateCmd)
}

// loadConfig reads and validates the run configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", zap.String("file", configFile))
	return cfg, nil
}

// buildSpace turns the configured outline into a meshed function space.
func buildSpace(cfg *config.Config) (*fields.Space, error) {
	var (
		collection geometry.Collection
		err        error
	)
	switch {
	case cfg.Mesh.Glacier != "":
		fetcher, ferr := datasets.NewFetcher()
		if ferr != nil {
			return nil, ferr
		}
		logger.Info("fetching glacier outline", zap.String("glacier", cfg.Mesh.Glacier))
		collection, err = fetcher.LoadOutline(cfg.Mesh.Glacier)
	case cfg.Mesh.OutlineFile != "":
		collection, err = geometry.LoadGeoJSON(cfg.Mesh.OutlineFile)
	default:
		return nil, fmt.Errorf("config names neither a glacier nor an outline file")
	}
	if err != nil {
		return nil, err
	}

	outline, err := geometry.BuildOutline(collection)
	if err != nil {
		return nil, err
	}

	m, err := mesh.Generate(outline, cfg.Mesh.Resolution)
	if err != nil {
		return nil, err
	}
	q := m.QualityStats()
	logger.Info("mesh generated",
		zap.Int("vertices", q.NumVerts),
		zap.Int("triangles", q.NumCells),
		zap.Float64("min_angle_deg", q.MinAngle),
		zap.Float64("area", m.TotalArea()))

	return fields.NewSpace(m)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
