// Package inverse estimates unobservable glacier parameters (fluidity, basal
// friction) from velocity observations. A Problem bundles a forward
// simulation, a misfit functional, and a regularization penalty; Solve hands
// the reduced objective to a quasi-Newton optimizer with finite-difference
// gradients standing in for an adjoint solve.
package inverse

import (
	"fmt"
	"math"

	"github.com/cryoflow/cryoflow/fields"
)

// FieldMisfit computes the continuous data misfit
//
//	E(u) = integral |u - uobs|^2 / (2 sigma^2) dx
//
// for an observed velocity field with pointwise standard deviation sigma.
// Quadrature uses the edge-midpoint rule on each triangle.
func FieldMisfit(u, uobs *fields.VectorFunction, sigma *fields.Function) (float64, error) {
	if u.Space != uobs.Space || u.Space != sigma.Space {
		return 0, fmt.Errorf("misfit fields live in different spaces")
	}
	for i, s := range sigma.Vals {
		if s <= 0 {
			return 0, fmt.Errorf("non-positive observation uncertainty %g at vertex %d", s, i)
		}
	}

	m := u.Space.Mesh
	var sum float64
	for t, tri := range m.Triangles {
		area := m.Area(t)
		for e := 0; e < 3; e++ {
			i, j := tri[e], tri[(e+1)%3]
			dx := (u.X[i]+u.X[j])/2 - (uobs.X[i]+uobs.X[j])/2
			dy := (u.Y[i]+u.Y[j])/2 - (uobs.Y[i]+uobs.Y[j])/2
			s := (sigma.Vals[i] + sigma.Vals[j]) / 2
			sum += area / 3 * (dx*dx + dy*dy) / (2 * s * s)
		}
	}
	return sum, nil
}

// PointObservation is a single velocity measurement with its uncertainty.
type PointObservation struct {
	X, Y   float64 // position
	VX, VY float64 // observed velocity components, m/yr
	Sigma  float64 // measurement standard deviation, m/yr
}

// PointMisfit computes the discrete data misfit
//
//	E(u) = sum_k |u(x_k) - d_k|^2 / (2 sigma_k^2)
//
// over a point cloud of observations. An observation outside the mesh is an
// error; sparse observation sets must lie within the modeled domain.
func PointMisfit(u *fields.VectorFunction, obs []PointObservation, loc *fields.Locator) (float64, error) {
	if len(obs) == 0 {
		return 0, fmt.Errorf("empty observation set")
	}
	var sum float64
	for k, o := range obs {
		if o.Sigma <= 0 {
			return 0, fmt.Errorf("observation %d has non-positive uncertainty %g", k, o.Sigma)
		}
		ux, uy, err := loc.EvalVector(u, o.X, o.Y)
		if err != nil {
			return 0, fmt.Errorf("observation %d: %w", k, err)
		}
		dx, dy := ux-o.VX, uy-o.VY
		sum += (dx*dx + dy*dy) / (2 * o.Sigma * o.Sigma)
	}
	return sum, nil
}

// Regularization is a gradient-norm smoothness penalty
//
//	R(theta) = 1/2 (L/Theta)^2 integral |grad theta|^2 dx
//
// where L is the smoothing length scale and Theta the expected amplitude of
// variations in the control.
type Regularization struct {
	Length    float64
	Amplitude float64
}

// Penalty evaluates the regularization functional.
func (r Regularization) Penalty(theta *fields.Function) float64 {
	amp := r.Amplitude
	if amp == 0 {
		amp = 1
	}
	scale := r.Length / amp
	return 0.5 * scale * scale * fields.GradNormSquared(theta)
}

// vecNorm is the Euclidean norm, used for gradient diagnostics.
func vecNorm(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return math.Sqrt(s)
}
