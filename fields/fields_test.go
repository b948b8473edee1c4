package fields

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/require"

	"github.com/cryoflow/cryoflow/geometry"
	"github.com/cryoflow/cryoflow/mesh"
	"github.com/cryoflow/cryoflow/raster"
)

func unitSquareSpace(t *testing.T, resolution float64) *Space {
	t.Helper()
	c := geometry.Collection{Segments: []geometry.Segment{
		{Points: []geom.Point{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0},
		}, Label: 1},
	}}
	outline, err := geometry.BuildOutline(c)
	require.NoError(t, err)
	m, err := mesh.Generate(outline, resolution)
	require.NoError(t, err)
	s, err := NewSpace(m)
	require.NoError(t, err)
	return s
}

func TestAssign(t *testing.T) {
	s := unitSquareSpace(t, 0.25)
	f := NewFunction(s)
	g := Interpolate(s, func(x, y float64) float64 { return 3*x + y })

	require.NoError(t, f.Assign(g))
	require.Equal(t, g.Vals, f.Vals)

	// The copy is by value, not by aliasing.
	g.Vals[0] = -100
	require.NotEqual(t, g.Vals[0], f.Vals[0])

	other := unitSquareSpace(t, 0.25)
	if err := f.Assign(NewFunction(other)); err == nil {
		t.Fatal("expected error assigning across spaces")
	}
}

func TestMagnitude(t *testing.T) {
	s := unitSquareSpace(t, 0.25)
	u := InterpolateVector(s, func(x, y float64) (float64, float64) {
		return 3 * (1 + x), -4 * (1 + x)
	})
	speed := u.Magnitude()
	for i, v := range s.Mesh.Vertices {
		require.InDelta(t, 5*(1+v.X), speed.Vals[i], 1e-12)
	}
}

func TestIntegrateConstant(t *testing.T) {
	s := unitSquareSpace(t, 0.2)
	one := Interpolate(s, func(x, y float64) float64 { return 1 })
	require.InDelta(t, 1.0, Integrate(one), 1e-10)
}

func TestIntegrateLinear(t *testing.T) {
	s := unitSquareSpace(t, 0.15)
	// Integral of x over the unit square is 1/2; exact for P1.
	f := Interpolate(s, func(x, y float64) float64 { return x })
	require.InDelta(t, 0.5, Integrate(f), 1e-10)
}

func TestL2NormExactForLinear(t *testing.T) {
	s := unitSquareSpace(t, 0.2)
	// ||x||_L2 over the unit square = sqrt(1/3).
	f := Interpolate(s, func(x, y float64) float64 { return x })
	require.InDelta(t, math.Sqrt(1.0/3.0), L2Norm(f), 1e-10)
}

func TestGradNormSquaredLinear(t *testing.T) {
	s := unitSquareSpace(t, 0.2)
	// grad(2x - y) = (2, -1): integral of |grad|^2 over unit square = 5.
	f := Interpolate(s, func(x, y float64) float64 { return 2*x - y })
	require.InDelta(t, 5.0, GradNormSquared(f), 1e-9)
}

func TestLumpedMassSumsToArea(t *testing.T) {
	s := unitSquareSpace(t, 0.25)
	lump := LumpedMass(s)
	var sum float64
	for _, v := range lump {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-10)
}

func TestLocatorEval(t *testing.T) {
	s := unitSquareSpace(t, 0.2)
	loc := NewLocator(s)
	f := Interpolate(s, func(x, y float64) float64 { return 3*x + 4*y })

	// P1 interpolation is exact for linear fields at any interior point.
	for _, p := range [][2]float64{{0.5, 0.5}, {0.123, 0.874}, {0.01, 0.01}} {
		got, err := loc.Eval(f, p[0], p[1])
		require.NoError(t, err)
		require.InDelta(t, 3*p[0]+4*p[1], got, 1e-10)
	}

	if _, err := loc.Eval(f, 2.5, 0.5); err == nil {
		t.Error("expected error for point outside the mesh")
	}
}

func TestLocatorEvalVector(t *testing.T) {
	s := unitSquareSpace(t, 0.25)
	loc := NewLocator(s)
	u := InterpolateVector(s, func(x, y float64) (float64, float64) { return x, -y })

	ux, uy, err := loc.EvalVector(u, 0.3, 0.7)
	require.NoError(t, err)
	require.InDelta(t, 0.3, ux, 1e-10)
	require.InDelta(t, -0.7, uy, 1e-10)
}

func TestInterpolateGrid(t *testing.T) {
	s := unitSquareSpace(t, 0.2)
	g, err := raster.NewGrid(-0.5, -0.5, 0.25, 0.25, 9, 9)
	require.NoError(t, err)
	g.Fill(func(x, y float64) float64 { return x + 2*y })

	f, err := InterpolateGrid(s, g)
	require.NoError(t, err)
	for i, v := range s.Mesh.Vertices {
		require.InDelta(t, v.X+2*v.Y, f.Vals[i], 1e-10)
	}
}

func TestInterpolateGridMissingData(t *testing.T) {
	s := unitSquareSpace(t, 0.2)
	// Grid covers only half the domain.
	g, err := raster.NewGrid(0, 0, 0.25, 0.25, 3, 3)
	require.NoError(t, err)
	g.Fill(func(x, y float64) float64 { return 1 })

	if _, err := InterpolateGrid(s, g); err == nil {
		t.Error("expected error when the raster does not cover the mesh")
	}
}

func TestProjectConstant(t *testing.T) {
	s := unitSquareSpace(t, 0.25)
	elemVals := make([]float64, s.Mesh.NumCells())
	for i := range elemVals {
		elemVals[i] = 7
	}
	f, err := Project(s, elemVals)
	require.NoError(t, err)
	lo, hi := f.MinMax()
	require.InDelta(t, 7.0, lo, 1e-10)
	require.InDelta(t, 7.0, hi, 1e-10)
}
