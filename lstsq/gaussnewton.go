package lstsq

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/ctlio/ctlerrors"
)

// jacobianEpsilon is the central-difference step used to differentiate cost
// terms with respect to each variable's tangent coordinates. This engine's
// solver stands in for the "generic nonlinear-least-squares solver...
// assumed available as a library" of spec.md §1: rather than hand-deriving
// an analytic Jacobian per factor type, every CostTerm need only implement
// Residual(), and this solver differentiates numerically by perturbing and
// restoring each variable through Retractable — the same iterative,
// gradient-probing structure as the teacher's nloptInverseKinematics.go.
const jacobianEpsilon = 1e-6

// Options controls a single GaussNewtonSolve call.
type Options struct {
	MaxIterations int // spec.md §6 max_iterations, default 5
}

// Result is the solved state of a Problem: the assembled information
// matrix (for covariance queries) and its variable layout.
type Result struct {
	order   []VarID
	offsets map[VarID]int
	dims    map[VarID]int
	info    *mat.SymDense // stacked information matrix H at the solution
	infoInv *mat.Dense    // lazily computed full covariance
}

// BlockCovariance returns the marginal covariance block for variable id,
// computed by inverting the full information matrix once and slicing the
// block that corresponds to id. Returns nil if id was not part of the
// solved problem.
func (r *Result) BlockCovariance(id VarID) *mat.Dense {
	off, ok := r.offsets[id]
	if !ok {
		return nil
	}
	if r.infoInv == nil {
		n := r.info.SymmetricDim()
		inv := mat.NewDense(n, n, nil)
		if err := inv.Inverse(r.info); err != nil {
			return nil
		}
		r.infoInv = inv
	}
	dim := r.dims[id]
	block := mat.NewDense(dim, dim, nil)
	block.Copy(r.infoInv.Slice(off, off+dim, off, off+dim))
	return block
}

// GaussNewtonSolve runs up to opts.MaxIterations Gauss-Newton steps over
// problem's active variables, folding in problem's base prior if any, with
// no pattern reuse across outer ICP iterations (spec.md §4.4 step 4).
func GaussNewtonSolve(problem *Problem, opts Options) (*Result, error) {
	if len(problem.variables) == 0 {
		return &Result{offsets: map[VarID]int{}, dims: map[VarID]int{}}, nil
	}
	if len(problem.variables) > MaxActiveVariables {
		return nil, ctlerrors.WrapFatal(errors.Errorf("sliding window exceeded %d active variable groups", MaxActiveVariables))
	}
	if len(problem.terms) > MaxActiveCostTerms {
		return nil, ctlerrors.WrapFatal(errors.Errorf("sliding window exceeded %d active cost terms", MaxActiveCostTerms))
	}

	order, offsets, dims, total := layout(problem)

	maxIters := opts.MaxIterations
	if maxIters <= 0 {
		maxIters = 5
	}

	var info *mat.SymDense
	for iter := 0; iter < maxIters; iter++ {
		H := mat.NewSymDense(total, nil)
		b := mat.NewVecDense(total, nil)

		addBasePrior(problem.basePrior, offsets, H, b)

		if err := accumulateTerms(problem, problem.terms, offsets, H, b); err != nil {
			return nil, err
		}

		delta, err := solveNormalEquations(H, b, total)
		if err != nil {
			return nil, err
		}
		applyStep(problem, order, offsets, dims, delta)
		info = H
	}

	return &Result{order: order, offsets: offsets, dims: dims, info: info}, nil
}

func layout(problem *Problem) (order []VarID, offsets, dims map[VarID]int, total int) {
	offsets = make(map[VarID]int, len(problem.variables))
	dims = make(map[VarID]int, len(problem.variables))
	order = make([]VarID, 0, len(problem.variables))
	off := 0
	for id, v := range problem.variables {
		order = append(order, id)
		offsets[id] = off
		dims[id] = v.r.Dim()
		off += v.r.Dim()
	}
	return order, offsets, dims, off
}

func addBasePrior(prior *BasePrior, offsets map[VarID]int, H *mat.SymDense, b *mat.VecDense) {
	if prior == nil {
		return
	}
	// map the prior's own compact ordering onto the full stacked layout;
	// an anchor variable absent from offsets has since been fully
	// marginalized out of this problem and its contribution is skipped.
	priorOffset := make([]int, len(prior.VarOrder))
	for i, id := range prior.VarOrder {
		if off, ok := offsets[id]; ok {
			priorOffset[i] = off
		} else {
			priorOffset[i] = -1
		}
	}
	sizes := blockSizesFromPrior(prior)
	rowStart := 0
	for i := range prior.VarOrder {
		if priorOffset[i] < 0 {
			rowStart += sizes[i]
			continue
		}
		colStart := 0
		for j := range prior.VarOrder {
			if priorOffset[j] < 0 {
				colStart += sizes[j]
				continue
			}
			for r := 0; r < sizes[i]; r++ {
				for c := 0; c < sizes[j]; c++ {
					gr := priorOffset[i] + r
					gc := priorOffset[j] + c
					if gc < gr {
						continue // SymDense only wants the upper triangle touched once
					}
					H.SetSym(gr, gc, H.At(gr, gc)+prior.H[rowStart+r][colStart+c])
				}
			}
			colStart += sizes[j]
		}
		for r := 0; r < sizes[i]; r++ {
			b.SetVec(priorOffset[i]+r, b.AtVec(priorOffset[i]+r)+prior.B[rowStart+r])
		}
		rowStart += sizes[i]
	}
}

func blockSizesFromPrior(prior *BasePrior) []int {
	sizes := make([]int, len(prior.VarOrder))
	remaining := len(prior.B)
	per := 0
	if len(prior.VarOrder) > 0 {
		per = remaining / len(prior.VarOrder)
	}
	for i := range sizes {
		sizes[i] = per
	}
	return sizes
}

// accumulateTerms adds the Gauss-Newton contribution of each of terms into
// H/b at the given offsets. Callers pass either the whole problem (a normal
// solve) or a subset touching one variable (MarginalizeVariable's local
// Schur-complement system).
func accumulateTerms(problem *Problem, terms []CostTerm, offsets map[VarID]int, H *mat.SymDense, b *mat.VecDense) error {
	var errs error
	for _, term := range terms {
		jac, res, ok := numericJacobian(problem, term)
		if !ok {
			errs = multierr.Append(errs, errors.New("cost term failed to evaluate"))
			continue
		}
		weight := 1.0
		if loss := term.Loss(); loss != nil {
			sqNorm := 0.0
			for _, r := range res {
				sqNorm += r * r
			}
			weight = loss.Weight(sqNorm)
		}
		vars := term.Vars()
		colOffsets := make([]int, len(vars))
		for i, v := range vars {
			colOffsets[i] = offsets[v]
		}
		for bi := range vars {
			Ji := jac[bi]
			for bj := bi; bj < len(vars); bj++ {
				addJtJBlock(H, colOffsets[bi], colOffsets[bj], Ji, jac[bj], weight)
			}
			addJtRBlock(b, colOffsets[bi], Ji, res, weight)
		}
	}
	if errs != nil {
		return ctlerrors.WrapFatal(errs)
	}
	return nil
}

func addJtJBlock(H *mat.SymDense, offI, offJ int, Ji, Jj [][]float64, weight float64) {
	rows := len(Ji[0])
	dimI := len(Ji)
	dimJ := len(Jj)
	for a := 0; a < dimI; a++ {
		for c := 0; c < dimJ; c++ {
			gr, gc := offI+a, offJ+c
			if gc < gr {
				gr, gc = gc, gr
			}
			sum := 0.0
			for k := 0; k < rows; k++ {
				sum += Ji[a][k] * Jj[c][k] * weight
			}
			H.SetSym(gr, gc, H.At(gr, gc)+sum)
		}
	}
}

func addJtRBlock(b *mat.VecDense, off int, Ji [][]float64, res []float64, weight float64) {
	dimI := len(Ji)
	rows := len(res)
	for a := 0; a < dimI; a++ {
		sum := 0.0
		for k := 0; k < rows; k++ {
			sum += Ji[a][k] * res[k] * weight
		}
		b.SetVec(off+a, b.AtVec(off+a)-sum)
	}
}

// numericJacobian returns, per variable referenced by term (in term.Vars()
// order), a dim x residualDim matrix (transposed for convenient row access
// in addJtJBlock/addJtRBlock) via central differences, plus the residual at
// the current linearization point.
func numericJacobian(problem *Problem, term CostTerm) (jac [][][]float64, res []float64, ok bool) {
	res = term.Residual()
	if res == nil {
		return nil, nil, false
	}
	vars := term.Vars()
	jac = make([][][]float64, len(vars))
	for vi, id := range vars {
		v := problem.variables[id]
		dim := v.r.Dim()
		block := make([][]float64, dim)
		snapshot := v.r.Value()
		for d := 0; d < dim; d++ {
			delta := make([]float64, dim)
			delta[d] = jacobianEpsilon
			v.r.Retract(delta)
			plus := term.Residual()
			v.r.SetValue(snapshot)

			delta[d] = -jacobianEpsilon
			v.r.Retract(delta)
			minus := term.Residual()
			v.r.SetValue(snapshot)

			row := make([]float64, len(res))
			for k := range row {
				row[k] = (plus[k] - minus[k]) / (2 * jacobianEpsilon)
			}
			block[d] = row
		}
		jac[vi] = block
	}
	return jac, res, true
}

func solveNormalEquations(H *mat.SymDense, b *mat.VecDense, n int) (*mat.VecDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(H); ok {
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, b); err == nil {
			return &x, nil
		}
	}
	// fall back to a plain LU solve if the normal equations aren't PD
	// (can happen with a thin base prior and few active cost terms).
	dense := mat.NewDense(n, n, nil)
	dense.CopySym(H)
	var lu mat.LU
	lu.Factorize(dense)
	x := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		return nil, errors.Wrap(err, "gauss-newton normal equations are singular")
	}
	return x, nil
}

func applyStep(problem *Problem, order []VarID, offsets, dims map[VarID]int, delta *mat.VecDense) {
	for _, id := range order {
		v := problem.variables[id]
		dim := dims[id]
		off := offsets[id]
		step := make([]float64, dim)
		for i := 0; i < dim; i++ {
			d := delta.AtVec(off + i)
			if math.IsNaN(d) || math.IsInf(d, 0) {
				d = 0
			}
			step[i] = d
		}
		v.r.Retract(step)
	}
}
