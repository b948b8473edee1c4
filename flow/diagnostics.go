package flow

import "math"

// IterationRecord is one entry in a solver's convergence history.
type IterationRecord struct {
	Iteration  int
	Change     float64 // relative change in the velocity between iterations
	LinearIter int     // inner conjugate-gradient iterations
	Residual   float64 // final relative residual of the linear solve
}

// Diagnostics records how a nonlinear momentum solve converged.
type Diagnostics struct {
	Converged bool
	History   []IterationRecord
}

// Iterations returns the number of Picard iterations performed.
func (d *Diagnostics) Iterations() int { return len(d.History) }

// FinalChange returns the relative velocity change at the last iteration, or
// infinity if no iterations ran.
func (d *Diagnostics) FinalChange() float64 {
	if len(d.History) == 0 {
		return math.Inf(1)
	}
	return d.History[len(d.History)-1].Change
}
