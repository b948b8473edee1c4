package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cryoflow/cryoflow/checkpoint"
	"github.com/cryoflow/cryoflow/config"
	"github.com/cryoflow/cryoflow/fields"
	"github.com/cryoflow/cryoflow/flow"
	"github.com/cryoflow/cryoflow/raster"
)

var steady bool

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a forward ice shelf simulation",
	Long: `Solves the shallow-shelf momentum balance for ice velocity on the
configured mesh, using gridded thickness and velocity observations as inputs,
then steps the thickness forward over the configured time horizon. The final
thickness and velocity go to the output checkpoint.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().BoolVar(&steady, "steady", false,
		"solve the diagnostic momentum balance only, without time stepping")
}

// loadInputs interpolates the gridded thickness and velocity observations
// onto the mesh.
func loadInputs(cfg *config.Config, space *fields.Space) (*fields.Function, *fields.VectorFunction, error) {
	if cfg.Input.ThicknessFile == "" || cfg.Input.VelocityFile == "" {
		return nil, nil, fmt.Errorf("config must name thickness_file and velocity_file inputs")
	}

	hGrid, err := raster.ReadNetCDF(cfg.Input.ThicknessFile, cfg.Input.ThicknessVar)
	if err != nil {
		return nil, nil, err
	}
	h, err := fields.InterpolateGrid(space, hGrid)
	if err != nil {
		return nil, nil, fmt.Errorf("thickness: %w", err)
	}

	vxGrid, err := raster.ReadNetCDF(cfg.Input.VelocityFile, cfg.Input.VelocityXVar)
	if err != nil {
		return nil, nil, err
	}
	vyGrid, err := raster.ReadNetCDF(cfg.Input.VelocityFile, cfg.Input.VelocityYVar)
	if err != nil {
		return nil, nil, err
	}
	vx, err := fields.InterpolateGrid(space, vxGrid)
	if err != nil {
		return nil, nil, fmt.Errorf("velocity x: %w", err)
	}
	vy, err := fields.InterpolateGrid(space, vyGrid)
	if err != nil {
		return nil, nil, fmt.Errorf("velocity y: %w", err)
	}
	u := fields.NewVectorFunction(space)
	copy(u.X, vx.Vals)
	copy(u.Y, vy.Vals)
	return h, u, nil
}

func diagnosticConfig(cfg *config.Config) flow.DiagnosticConfig {
	return flow.DiagnosticConfig{
		Tolerance:     cfg.Solver.Tolerance,
		MaxIterations: cfg.Solver.MaxIterations,
		LinearTol:     cfg.Solver.LinearTol,
		LinearMaxIter: cfg.Solver.LinearMaxIter,
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	space, err := buildSpace(cfg)
	if err != nil {
		return err
	}
	h, u, err := loadInputs(cfg, space)
	if err != nil {
		return err
	}

	A := flow.RateFactor(cfg.Physics.Temperature)
	fluidity := fields.Interpolate(space, func(x, y float64) float64 { return A })
	logger.Info("material parameters",
		zap.Float64("temperature_K", cfg.Physics.Temperature),
		zap.Float64("rate_factor", A))

	shelf := &flow.IceShelf{Fluidity: fluidity, DirichletLabels: cfg.Mesh.DirichletLabels}

	if steady {
		var diag *flow.Diagnostics
		u, diag, err = shelf.Diagnose(u, h, diagnosticConfig(cfg))
		if err != nil {
			return err
		}
		logger.Info("diagnostic solve converged",
			zap.Int("iterations", diag.Iterations()),
			zap.Float64("final_change", diag.FinalChange()))
	} else {
		a := fields.Interpolate(space, func(x, y float64) float64 {
			return cfg.Physics.Accumulation
		})
		pcfg := flow.PrognosticConfig{
			Dt:         cfg.Prognostic.Dt,
			FinalTime:  cfg.Prognostic.FinalTime,
			Diagnostic: diagnosticConfig(cfg),
		}
		logger.Info("starting prognostic run",
			zap.Float64("dt_years", pcfg.Dt),
			zap.Float64("final_time_years", pcfg.FinalTime))
		h, u, err = flow.Prognostic(shelf, u, h, a, pcfg)
		if err != nil {
			return err
		}
	}

	lo, hi := h.MinMax()
	speedLo, speedHi := u.Magnitude().MinMax()
	logger.Info("simulation finished",
		zap.Float64("min_thickness", lo),
		zap.Float64("max_thickness", hi),
		zap.Float64("min_speed", speedLo),
		zap.Float64("max_speed", speedHi))

	st := checkpoint.NewState(space)
	st.Scalars["thickness"] = h
	st.Scalars["fluidity"] = fluidity
	st.Vectors["velocity"] = u
	if err := checkpoint.Write(cfg.Output.Checkpoint, st); err != nil {
		return err
	}
	logger.Info("state written", zap.String("file", cfg.Output.Checkpoint))
	return nil
}
