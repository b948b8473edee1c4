package raster

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBilinearReproducesLinearField(t *testing.T) {
	g, err := NewGrid(0, 0, 0.5, 0.5, 9, 9)
	require.NoError(t, err)
	g.Fill(func(x, y float64) float64 { return 2*x - 3*y + 1 })

	// Bilinear interpolation is exact for linear fields.
	pts := [][2]float64{{0.1, 0.1}, {1.3, 2.7}, {3.99, 0.01}, {2, 2}}
	for _, p := range pts {
		want := 2*p[0] - 3*p[1] + 1
		got := g.At(p[0], p[1])
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("At(%g, %g) = %g, want %g", p[0], p[1], got, want)
		}
	}
}

func TestAtOutsideGridIsNaN(t *testing.T) {
	g, err := NewGrid(0, 0, 1, 1, 4, 4)
	require.NoError(t, err)
	g.Fill(func(x, y float64) float64 { return 1 })

	for _, p := range [][2]float64{{-0.5, 1}, {1, -0.5}, {3.5, 1}, {1, 99}} {
		if !math.IsNaN(g.At(p[0], p[1])) {
			t.Errorf("At(%g, %g) should be NaN outside the grid", p[0], p[1])
		}
	}
	// The far corner is still covered.
	if math.IsNaN(g.At(3, 3)) {
		t.Error("At upper corner should be valid")
	}
}

func TestNoDataPropagates(t *testing.T) {
	g, err := NewGrid(0, 0, 1, 1, 4, 4)
	require.NoError(t, err)
	g.Fill(func(x, y float64) float64 { return 5 })
	g.Set(1, 1, -9999)
	g.ApplyNoData(-9999)

	if !math.IsNaN(g.At(1.2, 1.2)) {
		t.Error("interpolation touching a nodata cell should be NaN")
	}
	if math.IsNaN(g.At(2.5, 2.5)) {
		t.Error("interpolation away from nodata should be valid")
	}
}

func TestNetCDFRoundTrip(t *testing.T) {
	g, err := NewGrid(-2, 3, 0.25, 0.5, 8, 6)
	require.NoError(t, err)
	g.Fill(func(x, y float64) float64 { return math.Sin(x) + y })

	filename := filepath.Join(t.TempDir(), "thickness.nc")
	require.NoError(t, WriteNetCDF(filename, "thickness", g))

	g2, err := ReadNetCDF(filename, "thickness")
	require.NoError(t, err)

	require.Equal(t, g.Nx, g2.Nx)
	require.Equal(t, g.Ny, g2.Ny)
	require.InDelta(t, g.Xo, g2.Xo, 1e-12)
	require.InDelta(t, g.Yo, g2.Yo, 1e-12)
	require.InDelta(t, g.Dx, g2.Dx, 1e-12)
	require.InDelta(t, g.Dy, g2.Dy, 1e-12)
	for i := range g.Data {
		require.InDelta(t, g.Data[i], g2.Data[i], 1e-12)
	}
}

func TestReadNetCDFMissingVariable(t *testing.T) {
	g, err := NewGrid(0, 0, 1, 1, 3, 3)
	require.NoError(t, err)
	g.Fill(func(x, y float64) float64 { return 0 })

	filename := filepath.Join(t.TempDir(), "grid.nc")
	require.NoError(t, WriteNetCDF(filename, "thickness", g))

	if _, err := ReadNetCDF(filename, "velocity"); err == nil {
		t.Error("expected error for missing variable")
	}
}
