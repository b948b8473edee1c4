package flow

import (
	"fmt"

	"github.com/cryoflow/cryoflow/fields"
)

// DiagnosticConfig controls the nonlinear momentum solve.
type DiagnosticConfig struct {
	Tolerance     float64 // Picard relative-change tolerance
	MaxIterations int     // Picard iteration cap
	LinearTol     float64 // conjugate-gradient relative residual
	LinearMaxIter int     // conjugate-gradient iteration cap
}

func (c DiagnosticConfig) withDefaults() DiagnosticConfig {
	if c.Tolerance == 0 {
		c.Tolerance = 1e-6
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 50
	}
	if c.LinearTol == 0 {
		c.LinearTol = 1e-10
	}
	if c.LinearMaxIter == 0 {
		c.LinearMaxIter = 10000
	}
	return c
}

// IceShelf solves the shallow-shelf momentum balance for floating ice: the
// membrane stress divergence balances the buoyancy-reduced driving stress,
// with a stress-free calving front arising naturally from the weak form.
type IceShelf struct {
	// Fluidity is the rate factor A in Glen's flow law, MPa^-3/yr.
	Fluidity *fields.Function

	// DirichletLabels are the boundary labels where the velocity is held at
	// the initial guess (inflow boundaries). All other boundaries get the
	// natural calving-front condition.
	DirichletLabels []int
}

// Diagnose computes the velocity for the given thickness. The initial guess
// u0 supplies both the Picard starting point and the Dirichlet values on the
// inflow boundaries. Returns an error when the Picard iteration fails to
// converge within the configured cap.
func (s *IceShelf) Diagnose(u0 *fields.VectorFunction, h *fields.Function, cfg DiagnosticConfig) (*fields.VectorFunction, *Diagnostics, error) {
	if s.Fluidity == nil {
		return nil, nil, fmt.Errorf("ice shelf has no fluidity field")
	}
	assemble := func(sys *system, u *fields.VectorFunction) {
		m := u.Space.Mesh
		rhog := ReducedGravity()
		for t, tri := range m.Triangles {
			area := m.Area(t)
			eps := elementStrainRate(u, t)
			A := (s.Fluidity.Vals[tri[0]] + s.Fluidity.Vals[tri[1]] + s.Fluidity.Vals[tri[2]]) / 3
			hMean := (h.Vals[tri[0]] + h.Vals[tri[1]] + h.Vals[tri[2]]) / 3
			nu := MembraneViscosity(A, eps.effective())
			sys.membraneStiffness(u, t, 2*hMean*nu*area)

			// Gravity term: 1/2 rhog h^2 div(w), with h^2 integrated by the
			// edge-midpoint rule (exact for the square of a P1 thickness).
			h0, h1, h2 := h.Vals[tri[0]], h.Vals[tri[1]], h.Vals[tri[2]]
			m01 := (h0 + h1) / 2
			m12 := (h1 + h2) / 2
			m20 := (h2 + h0) / 2
			intH2 := area / 3 * (m01*m01 + m12*m12 + m20*m20)
			dx, dy := m.GradShape(t)
			for k := 0; k < 3; k++ {
				sys.addRHS(dofX(tri[k]), 0.5*rhog*intH2*dx[k])
				sys.addRHS(dofY(tri[k]), 0.5*rhog*intH2*dy[k])
			}
		}
	}
	return picardSolve(u0, h, s.DirichletLabels, assemble, cfg)
}

// picardSolve runs the shared Picard iteration: assemble the momentum system
// with the viscosity lagged at the previous velocity, solve, and repeat until
// the relative change drops below tolerance.
func picardSolve(u0 *fields.VectorFunction, h *fields.Function,
	dirichletLabels []int, assemble func(*system, *fields.VectorFunction),
	cfg DiagnosticConfig) (*fields.VectorFunction, *Diagnostics, error) {

	cfg = cfg.withDefaults()
	if u0 == nil || h == nil {
		return nil, nil, fmt.Errorf("diagnostic solve needs a velocity guess and a thickness")
	}
	if u0.Space != h.Space {
		return nil, nil, fmt.Errorf("velocity and thickness live in different spaces")
	}

	space := u0.Space
	n := 2 * space.Dim()
	constraints := dirichletConstraints(u0, dirichletLabels)

	u := u0.Copy()
	diag := &Diagnostics{}
	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		sys := newSystem(n, constraints)
		assemble(sys, u)
		K, b := sys.finalize()

		x := flatten(u)
		lin, err := conjugateGradient(K, b, x, cfg.LinearTol, cfg.LinearMaxIter)
		if err != nil {
			return nil, diag, fmt.Errorf("momentum solve, Picard iteration %d: %w", iter, err)
		}

		prev := flatten(u)
		unflatten(x, u)
		change := relChange(x, prev)
		diag.History = append(diag.History, IterationRecord{
			Iteration:  iter,
			Change:     change,
			LinearIter: lin.Iterations,
			Residual:   lin.Residual,
		})
		if change < cfg.Tolerance {
			diag.Converged = true
			return u, diag, nil
		}
	}
	return nil, diag, fmt.Errorf("momentum solve did not converge in %d Picard iterations (last change %.3g)",
		cfg.MaxIterations, diag.FinalChange())
}

// dirichletConstraints pins both velocity components at boundary vertices
// carrying one of the given labels to their values in the initial guess.
func dirichletConstraints(u0 *fields.VectorFunction, labels []int) map[int]float64 {
	constraints := map[int]float64{}
	if len(labels) == 0 {
		return constraints
	}
	for _, v := range u0.Space.Mesh.BoundaryVertices(labels...) {
		constraints[dofX(v)] = u0.X[v]
		constraints[dofY(v)] = u0.Y[v]
	}
	return constraints
}

func flatten(u *fields.VectorFunction) []float64 {
	n := u.Space.Dim()
	x := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		x[dofX(i)] = u.X[i]
		x[dofY(i)] = u.Y[i]
	}
	return x
}

func unflatten(x []float64, u *fields.VectorFunction) {
	for i := 0; i < u.Space.Dim(); i++ {
		u.X[i] = x[dofX(i)]
		u.Y[i] = x[dofY(i)]
	}
}
