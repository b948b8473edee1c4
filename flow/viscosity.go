package flow

import (
	"math"

	"github.com/cryoflow/cryoflow/fields"
)

// StrainRateFloor regularizes the effective strain rate so the viscosity
// stays finite where the flow is stagnant, in 1/yr.
const StrainRateFloor = 1e-6

// strainRate holds the symmetric gradient of a velocity field on one element.
type strainRate struct {
	xx, yy, xy float64
}

// elementStrainRate computes the (constant) strain rate of a P1 velocity
// field on triangle t.
func elementStrainRate(u *fields.VectorFunction, t int) strainRate {
	m := u.Space.Mesh
	dx, dy := m.GradShape(t)
	var ux, uy, vx, vy float64
	for k := 0; k < 3; k++ {
		i := m.Triangles[t][k]
		ux += dx[k] * u.X[i]
		uy += dy[k] * u.X[i]
		vx += dx[k] * u.Y[i]
		vy += dy[k] * u.Y[i]
	}
	return strainRate{xx: ux, yy: vy, xy: (uy + vx) / 2}
}

// effective returns the effective strain rate sqrt((eps:eps + tr(eps)^2)/2),
// the invariant appearing in the membrane stress viscosity.
func (e strainRate) effective() float64 {
	normSq := e.xx*e.xx + e.yy*e.yy + 2*e.xy*e.xy
	tr := e.xx + e.yy
	return math.Sqrt((normSq + tr*tr) / 2)
}

// MembraneViscosity returns the depth-averaged effective viscosity
// nu = A^(-1/n)/2 * eps_e^((1-n)/n) for rate factor A and effective strain
// rate epsE, in MPa yr.
func MembraneViscosity(A, epsE float64) float64 {
	n := GlenExponent
	if epsE < StrainRateFloor {
		epsE = StrainRateFloor
	}
	return 0.5 * math.Pow(A, -1/n) * math.Pow(epsE, (1-n)/n)
}
