package flow

import (
	"fmt"
	"math"

	"github.com/cryoflow/cryoflow/fields"
)

// MassTransport advances the thickness equation dh/dt + div(h u) = a with
// lumped-mass explicit Euler steps. A small edge-based artificial diffusion
// keeps the central discretization stable; thickness is floored at zero
// because ice cannot have negative thickness.
type MassTransport struct {
	// Stabilization scales the artificial diffusion, in units of the local
	// mesh size times speed. Zero selects the default.
	Stabilization float64
}

const defaultStabilization = 0.5

// Step advances the thickness by dt years under velocity u and accumulation
// rate a (m/yr), returning a new thickness function. The time step must
// satisfy the advective CFL condition or an error is returned.
func (mt *MassTransport) Step(h *fields.Function, u *fields.VectorFunction, a *fields.Function, dt float64) (*fields.Function, error) {
	if h.Space != u.Space || h.Space != a.Space {
		return nil, fmt.Errorf("thickness, velocity, and accumulation live in different spaces")
	}
	if dt <= 0 {
		return nil, fmt.Errorf("time step must be positive, got %g", dt)
	}
	if cfl := mt.maxStableStep(h, u); dt > cfl {
		return nil, fmt.Errorf("time step %g exceeds the CFL limit %.3g", dt, cfl)
	}

	stab := mt.Stabilization
	if stab == 0 {
		stab = defaultStabilization
	}

	m := h.Space.Mesh
	lump := fields.LumpedMass(h.Space)
	rate := make([]float64, h.Space.Dim())

	for t, tri := range m.Triangles {
		area := m.Area(t)
		dx, dy := m.GradShape(t)

		// Central flux divergence: div(h u) = grad(h).u + h div(u) at the
		// element mean.
		var hx, hy, ux, vy, hMean, uMean, vMean float64
		for k := 0; k < 3; k++ {
			i := tri[k]
			hx += dx[k] * h.Vals[i]
			hy += dy[k] * h.Vals[i]
			ux += dx[k] * u.X[i]
			vy += dy[k] * u.Y[i]
			hMean += h.Vals[i] / 3
			uMean += u.X[i] / 3
			vMean += u.Y[i] / 3
		}
		div := hx*uMean + hy*vMean + hMean*(ux+vy)
		for k := 0; k < 3; k++ {
			rate[tri[k]] -= div * area / 3
		}

		// Artificial diffusion kappa = stab * speed * local mesh size,
		// discretized as a P1 stiffness term on the thickness.
		size := math.Sqrt(area)
		kappa := stab * math.Hypot(uMean, vMean) * size
		for k := 0; k < 3; k++ {
			for l := 0; l < 3; l++ {
				rate[tri[k]] -= kappa * area * (dx[k]*dx[l] + dy[k]*dy[l]) * h.Vals[tri[l]]
			}
		}
	}

	out := h.Copy()
	for i := range out.Vals {
		out.Vals[i] += dt * (rate[i]/lump[i] + a.Vals[i])
		if out.Vals[i] < 0 {
			out.Vals[i] = 0
		}
	}
	return out, nil
}

// maxStableStep estimates the advective CFL limit: the smallest mesh size
// over speed ratio, with a safety factor.
func (mt *MassTransport) maxStableStep(h *fields.Function, u *fields.VectorFunction) float64 {
	m := h.Space.Mesh
	limit := math.Inf(1)
	for t, tri := range m.Triangles {
		var speed float64
		for _, v := range tri {
			speed = math.Max(speed, math.Hypot(u.X[v], u.Y[v]))
		}
		if speed == 0 {
			continue
		}
		size := math.Sqrt(m.Area(t))
		limit = math.Min(limit, size/speed)
	}
	return limit
}

// PrognosticConfig controls a coupled diagnostic/prognostic run.
type PrognosticConfig struct {
	Dt         float64 // time step, years
	FinalTime  float64 // total simulated time, years
	Diagnostic DiagnosticConfig
}

// Prognostic runs the coupled loop for a floating shelf: solve the momentum
// balance for velocity, advance the thickness, and repeat until FinalTime.
// Returns the final thickness and velocity.
func Prognostic(shelf *IceShelf, u0 *fields.VectorFunction, h0, a *fields.Function, cfg PrognosticConfig) (*fields.Function, *fields.VectorFunction, error) {
	if cfg.Dt <= 0 || cfg.FinalTime <= 0 {
		return nil, nil, fmt.Errorf("prognostic run needs positive Dt and FinalTime")
	}
	mt := &MassTransport{}
	h := h0.Copy()
	u := u0.Copy()

	steps := int(math.Ceil(cfg.FinalTime / cfg.Dt))
	for s := 0; s < steps; s++ {
		var err error
		u, _, err = shelf.Diagnose(u, h, cfg.Diagnostic)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", s, err)
		}
		hNext, err := mt.Step(h, u, a, cfg.Dt)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", s, err)
		}
		if err := h.Assign(hNext); err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", s, err)
		}
	}
	return h, u, nil
}
