package raster

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
)

// ReadNetCDF reads one 2D variable from a NetCDF file into a Grid. The file
// must carry 1D coordinate variables "x" and "y" with uniform spacing, the
// layout used by gridded ice thickness and velocity products. A descending y
// axis (north-up rasters) is flipped into the Grid's south-up convention.
func ReadNetCDF(filename, varName string) (*Grid, error) {
	ff, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer ff.Close()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("opening NetCDF %s: %w", filename, err)
	}

	x, err := readCoord(f, "x")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	y, err := readCoord(f, "y")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	dims := f.Header.Lengths(varName)
	if len(dims) != 2 {
		return nil, fmt.Errorf("%s: variable %q has %d dimensions, want 2 (y, x)",
			filename, varName, len(dims))
	}
	ny, nx := dims[0], dims[1]
	if ny != len(y) || nx != len(x) {
		return nil, fmt.Errorf("%s: variable %q is %dx%d but coordinates are %dx%d",
			filename, varName, ny, nx, len(y), len(x))
	}

	data, err := readFloats(f, varName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	dx := x[1] - x[0]
	dy := y[1] - y[0]
	flip := dy < 0
	if flip {
		dy = -dy
	}
	yo := y[0]
	if flip {
		yo = y[len(y)-1]
	}

	g, err := NewGrid(x[0], yo, dx, dy, nx, ny)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	for j := 0; j < ny; j++ {
		row := j
		if flip {
			row = ny - 1 - j
		}
		copy(g.Data[row*nx:(row+1)*nx], data[j*nx:(j+1)*nx])
	}
	return g, nil
}

// WriteNetCDF writes a grid as a 2D NetCDF variable with x and y coordinate
// variables, the same layout ReadNetCDF expects.
func WriteNetCDF(filename, varName string, g *Grid) error {
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.Ny, g.Nx})
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddVariable("y", []string{"y"}, []float64{0})
	h.AddVariable(varName, []string{"y", "x"}, []float64{0})
	h.Define()

	ff, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer ff.Close()

	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("creating NetCDF %s: %w", filename, err)
	}

	x := make([]float64, g.Nx)
	for i := range x {
		x[i] = g.Xo + float64(i)*g.Dx
	}
	y := make([]float64, g.Ny)
	for j := range y {
		y[j] = g.Yo + float64(j)*g.Dy
	}

	for _, v := range []struct {
		name string
		data []float64
	}{{"x", x}, {"y", y}, {varName, g.Data}} {
		w := f.Writer(v.name, nil, nil)
		if _, err := w.Write(v.data); err != nil {
			return fmt.Errorf("writing %s to %s: %w", v.name, filename, err)
		}
	}
	return cdf.UpdateNumRecs(ff)
}

func readCoord(f *cdf.File, name string) ([]float64, error) {
	dims := f.Header.Lengths(name)
	if len(dims) != 1 {
		return nil, fmt.Errorf("coordinate %q has %d dimensions, want 1", name, len(dims))
	}
	vals, err := readFloats(f, name)
	if err != nil {
		return nil, err
	}
	if len(vals) < 2 {
		return nil, fmt.Errorf("coordinate %q has %d values, need at least 2", name, len(vals))
	}
	return vals, nil
}

func readFloats(f *cdf.File, name string) ([]float64, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %q: %w", name, err)
	}
	switch v := buf.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("variable %q has unsupported type %T", name, buf)
	}
}

// ApplyNoData replaces every occurrence of the given fill value with NaN.
// Gridded products mark missing ice with large sentinel values.
func (g *Grid) ApplyNoData(fill float64) {
	for i, v := range g.Data {
		if v == fill {
			g.Data[i] = math.NaN()
		}
	}
}
