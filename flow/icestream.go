package flow

import (
	"fmt"
	"math"

	"github.com/cryoflow/cryoflow/fields"
)

// SpeedFloor regularizes the friction law where the ice is nearly stagnant,
// in m/yr.
const SpeedFloor = 1e-3

// WeertmanExponent is the sliding-law exponent m in tau_b = -C |u|^(1/m-1) u.
const WeertmanExponent = 3.0

// IceStream solves the shallow-stream momentum balance for grounded ice:
// membrane stresses plus Weertman basal friction balance the driving stress
// from the surface slope.
type IceStream struct {
	// Fluidity is the rate factor A in Glen's flow law, MPa^-3/yr.
	Fluidity *fields.Function

	// Friction is the basal friction coefficient C in the Weertman sliding
	// law, MPa (m/yr)^(-1/m).
	Friction *fields.Function

	// DirichletLabels are the boundary labels where velocity is held at the
	// initial guess.
	DirichletLabels []int
}

// Diagnose computes the velocity for the given thickness and surface
// elevation. The surface carries the driving stress; for fully grounded ice
// it is bed plus thickness.
func (st *IceStream) Diagnose(u0 *fields.VectorFunction, h, surface *fields.Function, cfg DiagnosticConfig) (*fields.VectorFunction, *Diagnostics, error) {
	if st.Fluidity == nil || st.Friction == nil {
		return nil, nil, fmt.Errorf("ice stream needs fluidity and friction fields")
	}
	if surface.Space != h.Space {
		return nil, nil, fmt.Errorf("surface and thickness live in different spaces")
	}

	rhog := IceDensity * Gravity
	assemble := func(sys *system, u *fields.VectorFunction) {
		m := u.Space.Mesh
		for t, tri := range m.Triangles {
			area := m.Area(t)
			eps := elementStrainRate(u, t)
			A := (st.Fluidity.Vals[tri[0]] + st.Fluidity.Vals[tri[1]] + st.Fluidity.Vals[tri[2]]) / 3
			hMean := (h.Vals[tri[0]] + h.Vals[tri[1]] + h.Vals[tri[2]]) / 3
			nu := MembraneViscosity(A, eps.effective())
			sys.membraneStiffness(u, t, 2*hMean*nu*area)

			// Picard-lagged Weertman friction: beta = C |u|^(1/m - 1).
			C := (st.Friction.Vals[tri[0]] + st.Friction.Vals[tri[1]] + st.Friction.Vals[tri[2]]) / 3
			speed := elementSpeed(u, t)
			beta := C * math.Pow(speed, 1/WeertmanExponent-1)
			sys.frictionMass(m, t, beta)

			// Driving stress: -rho g h grad(s).
			sx, sy := fields.ElementGradient(surface, t)
			for k := 0; k < 3; k++ {
				sys.addRHS(dofX(tri[k]), -rhog*hMean*sx*area/3)
				sys.addRHS(dofY(tri[k]), -rhog*hMean*sy*area/3)
			}
		}
	}
	return picardSolve(u0, h, st.DirichletLabels, assemble, cfg)
}

// elementSpeed returns the mean speed on a triangle, floored to keep the
// friction coefficient finite.
func elementSpeed(u *fields.VectorFunction, t int) float64 {
	tri := u.Space.Mesh.Triangles[t]
	var speed float64
	for _, v := range tri {
		speed += math.Hypot(u.X[v], u.Y[v])
	}
	speed /= 3
	if speed < SpeedFloor {
		speed = SpeedFloor
	}
	return speed
}
