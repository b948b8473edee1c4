// Package raster holds gridded observational data (ice thickness, surface
// velocity) and interpolates it onto arbitrary points. Grids are read from
// and written to NetCDF files.
package raster

import (
	"fmt"
	"math"
)

// Grid is a uniform raster. The origin (Xo, Yo) is the coordinate of the
// center of the lower-left cell; Data is row-major with rows running south to
// north. Missing data is represented by NaN.
type Grid struct {
	Xo, Yo float64
	Dx, Dy float64
	Nx, Ny int
	Data   []float64
}

// NewGrid allocates a grid filled with NaN.
func NewGrid(xo, yo, dx, dy float64, nx, ny int) (*Grid, error) {
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("grid must be at least 2x2, got %dx%d", nx, ny)
	}
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got (%g, %g)", dx, dy)
	}
	g := &Grid{Xo: xo, Yo: yo, Dx: dx, Dy: dy, Nx: nx, Ny: ny,
		Data: make([]float64, nx*ny)}
	for i := range g.Data {
		g.Data[i] = math.NaN()
	}
	return g, nil
}

// Set assigns the value at column i, row j.
func (g *Grid) Set(i, j int, v float64) { g.Data[j*g.Nx+i] = v }

// Value returns the value at column i, row j.
func (g *Grid) Value(i, j int) float64 { return g.Data[j*g.Nx+i] }

// Fill populates every cell from f(x, y) evaluated at cell centers.
func (g *Grid) Fill(f func(x, y float64) float64) {
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			g.Set(i, j, f(g.Xo+float64(i)*g.Dx, g.Yo+float64(j)*g.Dy))
		}
	}
}

// Bounds returns the coverage of cell centers: xmin, ymin, xmax, ymax.
func (g *Grid) Bounds() (xmin, ymin, xmax, ymax float64) {
	return g.Xo, g.Yo,
		g.Xo + float64(g.Nx-1)*g.Dx,
		g.Yo + float64(g.Ny-1)*g.Dy
}

// At bilinearly interpolates the grid at (x, y). Points outside the grid or
// touching a missing-data cell return NaN.
func (g *Grid) At(x, y float64) float64 {
	fx := (x - g.Xo) / g.Dx
	fy := (y - g.Yo) / g.Dy
	i := int(math.Floor(fx))
	j := int(math.Floor(fy))

	// Clamp points sitting exactly on the upper edges into the last cell.
	if i == g.Nx-1 && fx == float64(i) {
		i--
	}
	if j == g.Ny-1 && fy == float64(j) {
		j--
	}
	if i < 0 || j < 0 || i >= g.Nx-1 || j >= g.Ny-1 {
		return math.NaN()
	}

	tx := fx - float64(i)
	ty := fy - float64(j)
	v00 := g.Value(i, j)
	v10 := g.Value(i+1, j)
	v01 := g.Value(i, j+1)
	v11 := g.Value(i+1, j+1)
	return (1-ty)*((1-tx)*v00+tx*v10) + ty*((1-tx)*v01+tx*v11)
}
