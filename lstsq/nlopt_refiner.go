package lstsq

import (
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
)

// NloptRefiner is an alternate Gauss-Newton backend built on go-nlopt's
// LD_SLSQP local optimizer, following the same flatten-into-one-vector,
// numeric-gradient structure as the teacher's nloptInverseKinematics.go.
// It is selected via engconfig's solver_backend="nlopt" and is meant as a
// bounded local refinement pass rather than the primary per-iteration
// solver: it flattens every active variable's tangent space into one
// vector, minimizes total weighted squared residual, and retracts the
// result back onto the variables.
type NloptRefiner struct {
	MaxEval int
}

// Refine minimizes problem's total weighted squared residual with SLSQP,
// applying the found step to the variables in place.
func (nr *NloptRefiner) Refine(problem *Problem) error {
	order, offsets, dims, total := layout(problem)
	if total == 0 {
		return nil
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(total))
	if err != nil {
		return errors.Wrap(err, "nlopt refiner: failed to create optimizer")
	}
	defer opt.Destroy()

	snapshots := make(map[VarID]interface{}, len(order))
	for _, id := range order {
		snapshots[id] = problem.variables[id].r.Value()
	}
	restoreAll := func() {
		for _, id := range order {
			problem.variables[id].r.SetValue(snapshots[id])
		}
	}

	objective := func(x, gradient []float64) float64 {
		applyAbsolute(problem, order, offsets, dims, x, snapshots)
		total := 0.0
		for _, term := range problem.terms {
			res := term.Residual()
			sq := 0.0
			for _, r := range res {
				sq += r * r
			}
			w := 1.0
			if loss := term.Loss(); loss != nil {
				w = loss.Weight(sq)
			}
			total += w * sq
		}
		if len(gradient) > 0 {
			const jump = 1e-6
			for i := range gradient {
				xBak := append([]float64{}, x...)
				xBak[i] += jump
				applyAbsolute(problem, order, offsets, dims, xBak, snapshots)
				perturbed := 0.0
				for _, term := range problem.terms {
					res := term.Residual()
					sq := 0.0
					for _, r := range res {
						sq += r * r
					}
					w := 1.0
					if loss := term.Loss(); loss != nil {
						w = loss.Weight(sq)
					}
					perturbed += w * sq
				}
				gradient[i] = (perturbed - total) / jump
			}
			applyAbsolute(problem, order, offsets, dims, x, snapshots)
		}
		return total
	}

	maxEval := nr.MaxEval
	if maxEval <= 0 {
		maxEval = 200
	}
	if err := opt.SetMinObjective(objective); err != nil {
		return errors.Wrap(err, "nlopt refiner: SetMinObjective")
	}
	if err := opt.SetMaxEval(maxEval); err != nil {
		return errors.Wrap(err, "nlopt refiner: SetMaxEval")
	}

	x0 := make([]float64, total)
	xOpt, _, err := opt.Optimize(x0)
	if err != nil {
		restoreAll()
		return errors.Wrap(err, "nlopt refiner: optimize failed")
	}
	applyAbsolute(problem, order, offsets, dims, xOpt, snapshots)
	return nil
}

// applyAbsolute retracts every variable from its original snapshot by the
// absolute tangent offset x, so repeated evaluations during the nlopt line
// search don't compound retractions.
func applyAbsolute(problem *Problem, order []VarID, offsets, dims map[VarID]int, x []float64, snapshots map[VarID]interface{}) {
	for _, id := range order {
		v := problem.variables[id]
		v.r.SetValue(snapshots[id])
		off, dim := offsets[id], dims[id]
		v.r.Retract(x[off : off+dim])
	}
}
