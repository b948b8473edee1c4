package inverse

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/require"

	"github.com/cryoflow/cryoflow/fields"
	"github.com/cryoflow/cryoflow/flow"
	"github.com/cryoflow/cryoflow/geometry"
	"github.com/cryoflow/cryoflow/mesh"
)

func rectangleSpace(t *testing.T, L, W, resolution float64) *fields.Space {
	t.Helper()
	c := geometry.Collection{Segments: []geometry.Segment{
		{Points: []geom.Point{{X: 0, Y: 0}, {X: L, Y: 0}}, Label: 1},
		{Points: []geom.Point{{X: L, Y: 0}, {X: L, Y: W}}, Label: 2},
		{Points: []geom.Point{{X: L, Y: W}, {X: 0, Y: W}}, Label: 3},
		{Points: []geom.Point{{X: 0, Y: W}, {X: 0, Y: 0}}, Label: 4},
	}}
	outline, err := geometry.BuildOutline(c)
	require.NoError(t, err)
	m, err := mesh.Generate(outline, resolution)
	require.NoError(t, err)
	s, err := fields.NewSpace(m)
	require.NoError(t, err)
	return s
}

func TestFieldMisfitZeroForPerfectFit(t *testing.T) {
	s := rectangleSpace(t, 10e3, 5e3, 2000)
	u := fields.InterpolateVector(s, func(x, y float64) (float64, float64) { return x / 100, y / 100 })
	sigma := fields.Interpolate(s, func(x, y float64) float64 { return 10 })

	e, err := FieldMisfit(u, u.Copy(), sigma)
	require.NoError(t, err)
	require.InDelta(t, 0, e, 1e-12)
}

func TestFieldMisfitConstantOffset(t *testing.T) {
	s := rectangleSpace(t, 10e3, 5e3, 2000)
	u := fields.InterpolateVector(s, func(x, y float64) (float64, float64) { return 100, 0 })
	uobs := fields.InterpolateVector(s, func(x, y float64) (float64, float64) { return 97, 4 })
	sigma := fields.Interpolate(s, func(x, y float64) float64 { return 5 })

	// |u - uobs|^2 = 25 everywhere: E = area * 25 / (2 * 25).
	e, err := FieldMisfit(u, uobs, sigma)
	require.NoError(t, err)
	require.InDelta(t, 10e3*5e3/2, e, 1e-6*e)
}

func TestFieldMisfitRejectsBadSigma(t *testing.T) {
	s := rectangleSpace(t, 10e3, 5e3, 2500)
	u := fields.NewVectorFunction(s)
	sigma := fields.NewFunction(s) // zeros
	if _, err := FieldMisfit(u, u.Copy(), sigma); err == nil {
		t.Fatal("expected error for zero uncertainty")
	}
}

func TestPointMisfit(t *testing.T) {
	s := rectangleSpace(t, 10e3, 5e3, 2000)
	loc := fields.NewLocator(s)
	u := fields.InterpolateVector(s, func(x, y float64) (float64, float64) { return x / 100, 0 })

	obs := []PointObservation{
		{X: 1000, Y: 2000, VX: 10, VY: 0, Sigma: 2},  // exact
		{X: 5000, Y: 1000, VX: 40, VY: 0, Sigma: 5},  // off by 10 in x
		{X: 8000, Y: 4000, VX: 80, VY: -5, Sigma: 1}, // off by 5 in y
	}
	e, err := PointMisfit(u, obs, loc)
	require.NoError(t, err)
	want := 0.0 + 100.0/(2*25) + 25.0/2
	require.InDelta(t, want, e, 1e-9)
}

func TestPointMisfitOutsideMesh(t *testing.T) {
	s := rectangleSpace(t, 10e3, 5e3, 2000)
	loc := fields.NewLocator(s)
	u := fields.NewVectorFunction(s)
	obs := []PointObservation{{X: -500, Y: 0, Sigma: 1}}
	if _, err := PointMisfit(u, obs, loc); err == nil {
		t.Fatal("expected error for observation outside the mesh")
	}
}

func TestRegularizationPenalty(t *testing.T) {
	s := rectangleSpace(t, 10e3, 5e3, 2000)
	theta := fields.Interpolate(s, func(x, y float64) float64 { return x / 1000 })

	// |grad theta|^2 = 1e-6 over a 5e7 m^2 domain.
	r := Regularization{Length: 2000}
	require.InDelta(t, 0.5*2000*2000*1e-6*5e7, r.Penalty(theta), 1e-3)

	// A constant control is free.
	flat := fields.Interpolate(s, func(x, y float64) float64 { return 42 })
	require.InDelta(t, 0, r.Penalty(flat), 1e-12)
}

func TestSolveValidation(t *testing.T) {
	if _, err := Solve(&Problem{}, Settings{}); err == nil {
		t.Fatal("expected validation error for empty problem")
	}
}

// TestSolveConcurrentEvaluations checks that concurrent finite-difference
// gradients give every objective evaluation its own control vector: the
// field a simulation is handed must never change under it while other
// perturbations are evaluated in parallel.
func TestSolveConcurrentEvaluations(t *testing.T) {
	s := rectangleSpace(t, 10e3, 5e3, 2500)
	uobs := fields.NewVectorFunction(s)
	sigma := fields.Interpolate(s, func(x, y float64) float64 { return 1 })

	var torn atomic.Bool
	simulate := func(theta *fields.Function) (*fields.VectorFunction, error) {
		snapshot := append([]float64(nil), theta.Vals...)
		u := fields.NewVectorFunction(s)
		for i := range snapshot {
			u.X[i] = snapshot[i]
		}
		for i, v := range theta.Vals {
			if v != snapshot[i] {
				torn.Store(true)
			}
		}
		return u, nil
	}

	problem := &Problem{
		Simulate: simulate,
		Misfit: func(u *fields.VectorFunction) (float64, error) {
			return FieldMisfit(u, uobs, sigma)
		},
		Initial: fields.Interpolate(s, func(x, y float64) float64 { return 1 }),
	}
	result, err := Solve(problem, Settings{
		MaxIterations:     5,
		GradientTolerance: 1e-3,
		Concurrent:        true,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.False(t, torn.Load(), "a control field was mutated during simulation")
}

// TestEstimateFluidity is an end-to-end inverse problem: synthetic velocity
// observations are generated with a known log-fluidity anomaly, and the
// optimizer must recover it from a zero initial guess.
func TestEstimateFluidity(t *testing.T) {
	if testing.Short() {
		t.Skip("estimation is slow")
	}
	const (
		L      = 20e3
		W      = 10e3
		h0     = 500.0
		dh     = 100.0
		trueTh = 0.3
	)
	s := rectangleSpace(t, L, W, 5000)
	A0 := flow.RateFactor(254.15)
	h := fields.Interpolate(s, func(x, y float64) float64 { return h0 - dh*x/L })
	uGuess := fields.InterpolateVector(s, func(x, y float64) (float64, float64) {
		return 100 + 200*x/L, 0
	})

	simulate := func(theta *fields.Function) (*fields.VectorFunction, error) {
		fluidity := theta.Copy()
		for i, v := range theta.Vals {
			fluidity.Vals[i] = A0 * math.Exp(v)
		}
		shelf := &flow.IceShelf{Fluidity: fluidity, DirichletLabels: []int{4}}
		u, _, err := shelf.Diagnose(uGuess, h, flow.DiagnosticConfig{})
		return u, err
	}

	thetaTrue := fields.Interpolate(s, func(x, y float64) float64 { return trueTh })
	uobs, err := simulate(thetaTrue)
	require.NoError(t, err)
	sigma := fields.Interpolate(s, func(x, y float64) float64 { return 1 })

	reg := Regularization{Length: 2500, Amplitude: 1}
	problem := &Problem{
		Simulate: simulate,
		Misfit: func(u *fields.VectorFunction) (float64, error) {
			return FieldMisfit(u, uobs, sigma)
		},
		Regularization: reg.Penalty,
		Initial:        fields.NewFunction(s),
	}

	result, err := Solve(problem, Settings{MaxIterations: 60, GradientTolerance: 1e-2})
	require.NoError(t, err)
	require.NotEmpty(t, result.History)

	first := result.History[0].Objective
	if result.Objective > 0.1*first {
		t.Errorf("objective only fell from %.3g to %.3g", first, result.Objective)
	}

	var mean float64
	for _, v := range result.Controls.Vals {
		mean += v
	}
	mean /= float64(len(result.Controls.Vals))
	require.InDelta(t, trueTh, mean, 0.1)
}
