package inverse

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/cryoflow/cryoflow/fields"
)

// Problem is a statistical estimation problem: find the control field
// minimizing misfit(simulate(theta)) + regularization(theta). A Problem is
// consumed once by Solve; the initial guess is never mutated.
type Problem struct {
	// Simulate runs the forward model for a trial control field.
	Simulate func(theta *fields.Function) (*fields.VectorFunction, error)

	// Misfit measures the disagreement between a simulated velocity and the
	// observations.
	Misfit func(u *fields.VectorFunction) (float64, error)

	// Regularization penalizes rough controls. Optional.
	Regularization func(theta *fields.Function) float64

	// Initial is the starting control guess.
	Initial *fields.Function

	// Gradient optionally supplies the derivative of the full objective with
	// respect to the control coefficients. When nil, central finite
	// differences are used, at one pair of forward solves per control
	// degree of freedom.
	Gradient func(theta *fields.Function) ([]float64, error)
}

// Settings configures the optimizer.
type Settings struct {
	// GradientTolerance stops the optimizer when the objective gradient
	// norm drops below it.
	GradientTolerance float64

	// MaxIterations caps the number of quasi-Newton iterations.
	MaxIterations int

	// FDStep is the finite-difference step for gradient evaluation; zero
	// selects the formula default.
	FDStep float64

	// Concurrent evaluates finite-difference perturbations in parallel.
	// The forward model must then be safe to call from multiple goroutines.
	Concurrent bool
}

// IterationRecord is one entry of the optimizer convergence history.
type IterationRecord struct {
	Iteration int
	Objective float64
	GradNorm  float64
}

// Result is the outcome of an estimation.
type Result struct {
	Controls  *fields.Function
	Objective float64
	Status    string
	History   []IterationRecord
	FuncEvals int
	GradEvals int
}

func (p *Problem) validate() error {
	if p.Simulate == nil {
		return fmt.Errorf("estimation problem has no simulation")
	}
	if p.Misfit == nil {
		return fmt.Errorf("estimation problem has no misfit functional")
	}
	if p.Initial == nil {
		return fmt.Errorf("estimation problem has no initial control guess")
	}
	return nil
}

// errLatch keeps the first forward-model error so it can surface after the
// optimizer returns. Concurrent gradient evaluation may report from several
// goroutines at once.
type errLatch struct {
	mu  sync.Mutex
	err error
}

func (l *errLatch) set(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
}

func (l *errLatch) get() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// objective evaluates misfit + regularization for a flat coefficient vector.
// Each call gets its own control function: with concurrent finite differences
// the closure runs from several goroutines, and a shared scratch would let
// one perturbation overwrite another mid-simulation.
func (p *Problem) objective(latch *errLatch) func(x []float64) float64 {
	return func(x []float64) float64 {
		theta := p.Initial.Copy()
		copy(theta.Vals, x)
		u, err := p.Simulate(theta)
		if err != nil {
			latch.set(err)
			return inf
		}
		e, err := p.Misfit(u)
		if err != nil {
			latch.set(err)
			return inf
		}
		if p.Regularization != nil {
			e += p.Regularization(theta)
		}
		return e
	}
}

const inf = 1e300

// historyRecorder captures per-iteration convergence diagnostics from the
// optimizer.
type historyRecorder struct {
	history []IterationRecord
}

func (r *historyRecorder) Init() error { return nil }

func (r *historyRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	rec := IterationRecord{
		Iteration: stats.MajorIterations,
		Objective: loc.F,
	}
	if loc.Gradient != nil {
		rec.GradNorm = vecNorm(loc.Gradient)
	}
	r.history = append(r.history, rec)
	return nil
}

// Solve minimizes the estimation objective with the L-BFGS quasi-Newton
// method. Forward-model failures (momentum solver non-convergence, missing
// observations) abort the estimation and pass through as errors.
func Solve(p *Problem, s Settings) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	latch := &errLatch{}
	obj := p.objective(latch)

	grad := func(dst, x []float64) {
		if p.Gradient != nil {
			theta := p.Initial.Copy()
			copy(theta.Vals, x)
			g, err := p.Gradient(theta)
			if err != nil {
				latch.set(err)
				for i := range dst {
					dst[i] = 0
				}
				return
			}
			copy(dst, g)
			return
		}
		fd.Gradient(dst, obj, x, &fd.Settings{
			Formula:    fd.Central,
			Step:       s.FDStep,
			Concurrent: s.Concurrent,
		})
	}

	recorder := &historyRecorder{}
	settings := &optimize.Settings{
		GradientThreshold: s.GradientTolerance,
		MajorIterations:   s.MaxIterations,
		Recorder:          recorder,
	}

	x0 := make([]float64, len(p.Initial.Vals))
	copy(x0, p.Initial.Vals)

	result, err := optimize.Minimize(optimize.Problem{Func: obj, Grad: grad}, x0, settings, &optimize.LBFGS{})
	if simErr := latch.get(); simErr != nil {
		return nil, fmt.Errorf("forward model failed during estimation: %w", simErr)
	}
	if err != nil {
		return nil, fmt.Errorf("optimization failed: %w", err)
	}

	controls := p.Initial.Copy()
	copy(controls.Vals, result.X)
	return &Result{
		Controls:  controls,
		Objective: result.F,
		Status:    result.Status.String(),
		History:   recorder.history,
		FuncEvals: result.Stats.FuncEvaluations,
		GradEvals: result.Stats.GradEvaluations,
	}, nil
}
