package flow

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
)

// cgResult reports how the linear solve went.
type cgResult struct {
	Iterations int
	Residual   float64
}

// conjugateGradient solves A x = b for symmetric positive definite A with
// Jacobi preconditioning. x is used as the initial guess and overwritten with
// the solution. Convergence is relative to the right-hand side norm.
func conjugateGradient(A *sparse.CSR, b, x []float64, tol float64, maxIter int) (cgResult, error) {
	n := len(b)
	r, c := A.Dims()
	if r != n || c != n {
		return cgResult{}, fmt.Errorf("matrix is %dx%d but right-hand side has length %d", r, c, n)
	}

	// Jacobi preconditioner from the diagonal.
	diag := make([]float64, n)
	for i := 0; i < n; i++ {
		diag[i] = A.At(i, i)
		if diag[i] <= 0 {
			return cgResult{}, fmt.Errorf("non-positive diagonal entry %g at %d; system is not SPD", diag[i], i)
		}
	}

	res := make([]float64, n)
	matVec(A, x, res)
	for i := range res {
		res[i] = b[i] - res[i]
	}

	z := make([]float64, n)
	for i := range z {
		z[i] = res[i] / diag[i]
	}
	p := make([]float64, n)
	copy(p, z)

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}

	rz := floats.Dot(res, z)
	ap := make([]float64, n)
	for iter := 1; iter <= maxIter; iter++ {
		matVec(A, p, ap)
		pap := floats.Dot(p, ap)
		if pap <= 0 {
			return cgResult{}, fmt.Errorf("indefinite direction at iteration %d (pAp = %g)", iter, pap)
		}
		alpha := rz / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(res, -alpha, ap)

		rnorm := floats.Norm(res, 2)
		if rnorm/bnorm < tol {
			return cgResult{Iterations: iter, Residual: rnorm / bnorm}, nil
		}

		for i := range z {
			z[i] = res[i] / diag[i]
		}
		rzNew := floats.Dot(res, z)
		beta := rzNew / rz
		rz = rzNew
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}
	rnorm := floats.Norm(res, 2)
	return cgResult{Iterations: maxIter, Residual: rnorm / bnorm},
		fmt.Errorf("conjugate gradients did not converge in %d iterations (residual %.3g)",
			maxIter, rnorm/bnorm)
}

// matVec computes y = A x for a CSR matrix.
func matVec(A *sparse.CSR, x, y []float64) {
	for i := range y {
		y[i] = 0
	}
	A.DoNonZero(func(i, j int, v float64) {
		y[i] += v * x[j]
	})
}

// relChange returns ||a - b|| / ||a||, the Picard convergence measure.
func relChange(a, b []float64) float64 {
	var diff, norm float64
	for i := range a {
		d := a[i] - b[i]
		diff += d * d
		norm += a[i] * a[i]
	}
	if norm == 0 {
		return math.Sqrt(diff)
	}
	return math.Sqrt(diff / norm)
}
