package fields

import (
	"fmt"
	"math"
)

// Integrate computes the exact integral of a P1 function over the domain.
func Integrate(f *Function) float64 {
	m := f.Space.Mesh
	var sum float64
	for t, tri := range m.Triangles {
		a := m.Area(t)
		sum += a / 3 * (f.Vals[tri[0]] + f.Vals[tri[1]] + f.Vals[tri[2]])
	}
	return sum
}

// IntegrateQuad integrates an arbitrary expression over the domain with the
// three-point edge-midpoint rule, exact for quadratic integrands.
func IntegrateQuad(s *Space, f func(x, y float64) float64) float64 {
	m := s.Mesh
	var sum float64
	for t, tri := range m.Triangles {
		a := m.Vertices[tri[0]]
		b := m.Vertices[tri[1]]
		c := m.Vertices[tri[2]]
		area := m.Area(t)
		sum += area / 3 * (f((a.X+b.X)/2, (a.Y+b.Y)/2) +
			f((b.X+c.X)/2, (b.Y+c.Y)/2) +
			f((c.X+a.X)/2, (c.Y+a.Y)/2))
	}
	return sum
}

// L2Norm returns the L2 norm of a P1 function, computed exactly via the
// edge-midpoint rule (the square of a P1 function is quadratic).
func L2Norm(f *Function) float64 {
	m := f.Space.Mesh
	var sum float64
	for t, tri := range m.Triangles {
		v0, v1, v2 := f.Vals[tri[0]], f.Vals[tri[1]], f.Vals[tri[2]]
		m01 := (v0 + v1) / 2
		m12 := (v1 + v2) / 2
		m20 := (v2 + v0) / 2
		sum += m.Area(t) / 3 * (m01*m01 + m12*m12 + m20*m20)
	}
	return math.Sqrt(sum)
}

// ElementGradient returns the (constant) gradient of f on triangle t.
func ElementGradient(f *Function, t int) (gx, gy float64) {
	m := f.Space.Mesh
	dx, dy := m.GradShape(t)
	for k := 0; k < 3; k++ {
		v := f.Vals[m.Triangles[t][k]]
		gx += dx[k] * v
		gy += dy[k] * v
	}
	return gx, gy
}

// GradNormSquared returns the exact integral of |grad f|^2 over the domain.
func GradNormSquared(f *Function) float64 {
	m := f.Space.Mesh
	var sum float64
	for t := range m.Triangles {
		gx, gy := ElementGradient(f, t)
		sum += m.Area(t) * (gx*gx + gy*gy)
	}
	return sum
}

// LumpedMass returns the lumped mass vector: entry i is the integral of the
// i-th shape function, i.e. one third of the area of the triangles touching
// vertex i.
func LumpedMass(s *Space) []float64 {
	m := s.Mesh
	lump := make([]float64, s.Dim())
	for t, tri := range m.Triangles {
		third := m.Area(t) / 3
		for _, v := range tri {
			lump[v] += third
		}
	}
	return lump
}

// Project maps per-element values onto vertices by lumped-mass averaging:
// the area-weighted mean of the element values surrounding each vertex.
func Project(s *Space, elemVals []float64) (*Function, error) {
	m := s.Mesh
	if len(elemVals) != m.NumCells() {
		return nil, fmt.Errorf("have %d element values for %d cells", len(elemVals), m.NumCells())
	}
	out := NewFunction(s)
	lump := LumpedMass(s)
	for t, tri := range m.Triangles {
		third := m.Area(t) / 3
		for _, v := range tri {
			out.Vals[v] += third * elemVals[t]
		}
	}
	for i := range out.Vals {
		out.Vals[i] /= lump[i]
	}
	return out, nil
}
