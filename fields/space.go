// Package fields represents scalar and vector quantities as piecewise-linear
// finite element functions over a triangulated domain, and provides the
// interpolation and integration operations the flow and inverse packages are
// built from.
package fields

import (
	"fmt"
	"math"

	"github.com/cryoflow/cryoflow/mesh"
	"github.com/cryoflow/cryoflow/raster"
)

// Space is a continuous piecewise-linear (P1) function space on a mesh, with
// one degree of freedom per vertex.
type Space struct {
	Mesh *mesh.Mesh
}

// NewSpace creates a function space over a mesh.
func NewSpace(m *mesh.Mesh) (*Space, error) {
	if m == nil || m.NumCells() == 0 {
		return nil, fmt.Errorf("cannot build a function space on an empty mesh")
	}
	return &Space{Mesh: m}, nil
}

// Dim returns the number of degrees of freedom.
func (s *Space) Dim() int { return s.Mesh.NumVertices() }

// Function is a scalar field: one coefficient per mesh vertex.
type Function struct {
	Space *Space
	Vals  []float64
}

// NewFunction allocates a zero function.
func NewFunction(s *Space) *Function {
	return &Function{Space: s, Vals: make([]float64, s.Dim())}
}

// Copy returns an independent copy.
func (f *Function) Copy() *Function {
	g := NewFunction(f.Space)
	copy(g.Vals, f.Vals)
	return g
}

// Assign overwrites f with g. The functions must share a space.
func (f *Function) Assign(g *Function) error {
	if f.Space != g.Space {
		return fmt.Errorf("functions live in different spaces")
	}
	copy(f.Vals, g.Vals)
	return nil
}

// MinMax returns the range of coefficient values.
func (f *Function) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range f.Vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// VectorFunction is a 2-vector field (e.g. horizontal velocity).
type VectorFunction struct {
	Space *Space
	X, Y  []float64
}

// NewVectorFunction allocates a zero vector field.
func NewVectorFunction(s *Space) *VectorFunction {
	return &VectorFunction{
		Space: s,
		X:     make([]float64, s.Dim()),
		Y:     make([]float64, s.Dim()),
	}
}

// Copy returns an independent copy.
func (u *VectorFunction) Copy() *VectorFunction {
	v := NewVectorFunction(u.Space)
	copy(v.X, u.X)
	copy(v.Y, u.Y)
	return v
}

// Magnitude returns the pointwise speed |u| as a scalar function.
func (u *VectorFunction) Magnitude() *Function {
	f := NewFunction(u.Space)
	for i := range f.Vals {
		f.Vals[i] = math.Hypot(u.X[i], u.Y[i])
	}
	return f
}

// Interpolate evaluates an expression at every vertex.
func Interpolate(s *Space, f func(x, y float64) float64) *Function {
	out := NewFunction(s)
	for i, v := range s.Mesh.Vertices {
		out.Vals[i] = f(v.X, v.Y)
	}
	return out
}

// InterpolateVector evaluates a vector expression at every vertex.
func InterpolateVector(s *Space, f func(x, y float64) (float64, float64)) *VectorFunction {
	out := NewVectorFunction(s)
	for i, v := range s.Mesh.Vertices {
		out.X[i], out.Y[i] = f(v.X, v.Y)
	}
	return out
}

// InterpolateGrid maps a raster onto the space by bilinear sampling at the
// vertices. A vertex falling outside the raster or on missing data is an
// error; observational grids must cover the whole domain.
func InterpolateGrid(s *Space, g *raster.Grid) (*Function, error) {
	out := NewFunction(s)
	for i, v := range s.Mesh.Vertices {
		val := g.At(v.X, v.Y)
		if math.IsNaN(val) {
			return nil, fmt.Errorf("raster has no data at mesh vertex %d (%g, %g)", i, v.X, v.Y)
		}
		out.Vals[i] = val
	}
	return out, nil
}
