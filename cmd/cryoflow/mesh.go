package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cryoflow/cryoflow/checkpoint"
)

var meshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Generate a mesh from the configured glacier outline",
	Long: `Fetches (or reads) the configured glacier outline, triangulates it at
the configured resolution, and writes the mesh to the output checkpoint.`,
	RunE: runMesh,
}

func runMesh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	space, err := buildSpace(cfg)
	if err != nil {
		return err
	}

	st := checkpoint.NewState(space)
	if err := checkpoint.Write(cfg.Output.Checkpoint, st); err != nil {
		return err
	}
	logger.Info("mesh written", zap.String("file", cfg.Output.Checkpoint))
	return nil
}
