package flow

import (
	"github.com/james-bowman/sparse"

	"github.com/cryoflow/cryoflow/fields"
	"github.com/cryoflow/cryoflow/mesh"
)

// Velocity degrees of freedom are interleaved: x-component of vertex i at
// 2*i, y-component at 2*i+1.
func dofX(i int) int { return 2 * i }
func dofY(i int) int { return 2*i + 1 }

// system carries the linear system for one Picard iteration of the momentum
// balance, with Dirichlet constraints applied symmetrically during assembly.
type system struct {
	dok        *sparse.DOK
	rhs        []float64
	constraint map[int]float64 // dof -> prescribed value
}

func newSystem(n int, constraint map[int]float64) *system {
	return &system{
		dok:        sparse.NewDOK(n, n),
		rhs:        make([]float64, n),
		constraint: constraint,
	}
}

// add accumulates a stiffness entry, eliminating constrained columns onto the
// right-hand side so the reduced system stays symmetric positive definite.
func (s *system) add(i, j int, v float64) {
	if v == 0 {
		return
	}
	if _, ok := s.constraint[i]; ok {
		return
	}
	if val, ok := s.constraint[j]; ok {
		s.rhs[i] -= v * val
		return
	}
	s.dok.Set(i, j, s.dok.At(i, j)+v)
}

// addRHS accumulates a load entry.
func (s *system) addRHS(i int, v float64) {
	if _, ok := s.constraint[i]; ok {
		return
	}
	s.rhs[i] += v
}

// finalize pins constrained dofs with a unit diagonal and converts to CSR.
func (s *system) finalize() (*sparse.CSR, []float64) {
	for dof, val := range s.constraint {
		s.dok.Set(dof, dof, 1)
		s.rhs[dof] = val
	}
	return s.dok.ToCSR(), s.rhs
}

// membraneStiffness adds the element contribution of the membrane stress
// operator 2 h nu (eps(u) + tr(eps(u)) I) : eps(w) on triangle t, with
// viscosity coefficient coef = 2 * h * nu * area.
func (s *system) membraneStiffness(u *fields.VectorFunction, t int, coef float64) {
	m := u.Space.Mesh
	dx, dy := m.GradShape(t)
	tri := m.Triangles[t]
	for k := 0; k < 3; k++ {
		for l := 0; l < 3; l++ {
			kxx := coef * (2*dx[k]*dx[l] + 0.5*dy[k]*dy[l])
			kyy := coef * (2*dy[k]*dy[l] + 0.5*dx[k]*dx[l])
			// Trial y-component against test x-component.
			kxy := coef * (dy[k]*dx[l] + 0.5*dx[k]*dy[l])
			s.add(dofX(tri[l]), dofX(tri[k]), kxx)
			s.add(dofY(tri[l]), dofY(tri[k]), kyy)
			s.add(dofX(tri[l]), dofY(tri[k]), kxy)
			s.add(dofY(tri[k]), dofX(tri[l]), kxy)
		}
	}
}

// frictionMass adds a lumped basal friction term beta * u . w on triangle t,
// where beta is the Picard-lagged friction coefficient on the element.
func (s *system) frictionMass(m *mesh.Mesh, t int, beta float64) {
	area := m.Area(t)
	tri := m.Triangles[t]
	for k := 0; k < 3; k++ {
		s.add(dofX(tri[k]), dofX(tri[k]), beta*area/3)
		s.add(dofY(tri[k]), dofY(tri[k]), beta*area/3)
	}
}
