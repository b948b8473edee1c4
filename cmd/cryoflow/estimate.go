package main

import (
	"math"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cryoflow/cryoflow/checkpoint"
	"github.com/cryoflow/cryoflow/fields"
	"github.com/cryoflow/cryoflow/flow"
	"github.com/cryoflow/cryoflow/inverse"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the ice fluidity from velocity observations",
	Long: `Estimates the log-fluidity anomaly of the ice from gridded velocity
observations. The control field theta multiplies the temperature-based rate
factor as A = A(T) exp(theta); the estimator minimizes the velocity misfit
plus a smoothness penalty and writes the recovered field and the matching
modeled velocity to the output checkpoint.`,
	RunE: runEstimate,
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	space, err := buildSpace(cfg)
	if err != nil {
		return err
	}
	h, uobs, err := loadInputs(cfg, space)
	if err != nil {
		return err
	}

	A0 := flow.RateFactor(cfg.Physics.Temperature)
	dcfg := diagnosticConfig(cfg)
	simulate := func(theta *fields.Function) (*fields.VectorFunction, error) {
		fluidity := theta.Copy()
		for i, v := range theta.Vals {
			fluidity.Vals[i] = A0 * math.Exp(v)
		}
		shelf := &flow.IceShelf{Fluidity: fluidity, DirichletLabels: cfg.Mesh.DirichletLabels}
		u, _, err := shelf.Diagnose(uobs, h, dcfg)
		return u, err
	}

	sigma := fields.Interpolate(space, func(x, y float64) float64 {
		return cfg.Estimation.Sigma
	})
	reg := inverse.Regularization{
		Length:    cfg.Estimation.RegularizationLength,
		Amplitude: cfg.Estimation.RegularizationAmplitude,
	}
	problem := &inverse.Problem{
		Simulate: simulate,
		Misfit: func(u *fields.VectorFunction) (float64, error) {
			return inverse.FieldMisfit(u, uobs, sigma)
		},
		Regularization: reg.Penalty,
		Initial:        fields.NewFunction(space),
	}

	logger.Info("starting estimation",
		zap.Int("controls", space.Dim()),
		zap.Int("max_iterations", cfg.Estimation.MaxIterations))
	result, err := inverse.Solve(problem, inverse.Settings{
		GradientTolerance: cfg.Estimation.GradientTolerance,
		MaxIterations:     cfg.Estimation.MaxIterations,
	})
	if err != nil {
		return err
	}
	for _, rec := range result.History {
		logger.Debug("estimation iteration",
			zap.Int("iteration", rec.Iteration),
			zap.Float64("objective", rec.Objective),
			zap.Float64("gradient_norm", rec.GradNorm))
	}
	logger.Info("estimation finished",
		zap.String("status", result.Status),
		zap.Float64("objective", result.Objective),
		zap.Int("simulations", result.FuncEvals))

	u, err := simulate(result.Controls)
	if err != nil {
		return err
	}

	st := checkpoint.NewState(space)
	st.Scalars["thickness"] = h
	st.Scalars["log_fluidity"] = result.Controls
	st.Vectors["velocity"] = u
	if err := checkpoint.Write(cfg.Output.Checkpoint, st); err != nil {
		return err
	}
	logger.Info("state written", zap.String("file", cfg.Output.Checkpoint))
	return nil
}
