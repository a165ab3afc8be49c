package lstsq

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/ctlio/ctlerrors"
)

// MarginalizeVariable eliminates id from problem via a Schur complement over
// the local system id shares with its direct neighbors: every variable
// referenced alongside id by a cost term, plus any anchor id already shares
// with problem's existing base prior (spec.md §4.6). Cost terms that touch
// id are consumed by the elimination and removed from problem's term list;
// terms that never reference id are left untouched, so marginalizing one
// knot does not force relinearization of factors far from it. id itself is
// dropped from the active variable set.
//
// The resulting prior is merged into problem's base prior. Cross terms
// between id's neighbors and anchors the existing prior held on unrelated
// variables are treated as zero: a documented block-diagonal approximation,
// the same kind GetCovariance already makes for cross-knot covariance.
func MarginalizeVariable(problem *Problem, id VarID) error {
	if _, ok := problem.variables[id]; !ok {
		return ctlerrors.WrapFatal(errors.Errorf("cannot marginalize unknown variable %d", id))
	}

	var touching, remaining []CostTerm
	neighborSet := map[VarID]bool{}
	for _, term := range problem.terms {
		touches := false
		for _, tv := range term.Vars() {
			if tv == id {
				touches = true
				break
			}
		}
		if touches {
			touching = append(touching, term)
			for _, tv := range term.Vars() {
				if tv != id {
					neighborSet[tv] = true
				}
			}
		} else {
			remaining = append(remaining, term)
		}
	}

	if problem.basePrior != nil {
		for _, av := range problem.basePrior.VarOrder {
			if av == id {
				continue
			}
			if _, active := problem.variables[av]; active {
				neighborSet[av] = true
			}
		}
	}

	neighbors := make([]VarID, 0, len(neighborSet))
	for nv := range neighborSet {
		neighbors = append(neighbors, nv)
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

	if len(neighbors) == 0 {
		delete(problem.variables, id)
		problem.terms = remaining
		if problem.basePrior != nil {
			problem.basePrior = dropAnchor(problem.basePrior, id)
		}
		return nil
	}

	order := append([]VarID{id}, neighbors...)
	offsets := make(map[VarID]int, len(order))
	off := 0
	for _, ov := range order {
		offsets[ov] = off
		off += problem.variables[ov].r.Dim()
	}
	total := off
	d0 := problem.variables[id].r.Dim()
	rest := total - d0

	H := mat.NewSymDense(total, nil)
	b := mat.NewVecDense(total, nil)
	addBasePrior(problem.basePrior, offsets, H, b)
	if err := accumulateTerms(problem, touching, offsets, H, b); err != nil {
		return err
	}

	hxx := mat.NewDense(d0, d0, nil)
	hxy := mat.NewDense(d0, rest, nil)
	hyy := mat.NewDense(rest, rest, nil)
	bx := mat.NewVecDense(d0, nil)
	by := mat.NewVecDense(rest, nil)
	for r := 0; r < d0; r++ {
		bx.SetVec(r, b.AtVec(r))
		for c := 0; c < d0; c++ {
			hxx.Set(r, c, H.At(r, c))
		}
		for c := 0; c < rest; c++ {
			hxy.Set(r, c, H.At(r, d0+c))
		}
	}
	for r := 0; r < rest; r++ {
		by.SetVec(r, b.AtVec(d0+r))
		for c := 0; c < rest; c++ {
			hyy.Set(r, c, H.At(d0+r, d0+c))
		}
	}

	var hxxInv mat.Dense
	if err := hxxInv.Inverse(hxx); err != nil {
		return ctlerrors.WrapFatal(errors.Wrapf(err, "marginalizing variable %d: singular information block", id))
	}

	var hyx mat.Dense
	hyx.CloneFrom(hxy.T())

	var scratch mat.Dense
	scratch.Mul(&hyx, &hxxInv)

	var fill mat.Dense
	fill.Mul(&scratch, hxy)

	var hSchur mat.Dense
	hSchur.Sub(hyy, &fill)

	var bScratch mat.VecDense
	bScratch.MulVec(&scratch, bx)
	var bSchur mat.VecDense
	bSchur.SubVec(by, &bScratch)

	newPrior := &BasePrior{VarOrder: neighbors, H: make([][]float64, rest), B: make([]float64, rest)}
	for r := 0; r < rest; r++ {
		newPrior.H[r] = make([]float64, rest)
		for c := 0; c < rest; c++ {
			newPrior.H[r][c] = hSchur.At(r, c)
		}
		newPrior.B[r] = bSchur.AtVec(r)
	}

	problem.basePrior = mergeBasePriors(dropAnchor(problem.basePrior, id), newPrior)
	delete(problem.variables, id)
	problem.terms = remaining
	return nil
}

// dropAnchor returns a copy of prior with id removed from its anchor set,
// discarding whatever information it held about id's tangent coordinates.
// Used before folding in a freshly Schur-complemented prior that already
// accounts for id's contribution.
func dropAnchor(prior *BasePrior, id VarID) *BasePrior {
	if prior == nil {
		return nil
	}
	keepIdx := -1
	for i, v := range prior.VarOrder {
		if v == id {
			keepIdx = i
			break
		}
	}
	if keepIdx < 0 {
		return prior
	}
	sizes := blockSizesFromPrior(prior)
	order := make([]VarID, 0, len(prior.VarOrder)-1)
	rowOffsets := make([]int, 0, len(prior.VarOrder)-1)
	off := 0
	for i, v := range prior.VarOrder {
		if i == keepIdx {
			continue
		}
		order = append(order, v)
		rowOffsets = append(rowOffsets, off)
		off += sizes[i]
	}
	total := off
	H := make([][]float64, total)
	for r := range H {
		H[r] = make([]float64, total)
	}
	B := make([]float64, total)

	srcOff := 0
	for i := range prior.VarOrder {
		if i == keepIdx {
			srcOff += sizes[i]
			continue
		}
		dstR := rowOffsetFor(order, rowOffsets, prior.VarOrder[i])
		srcOff2 := 0
		for j := range prior.VarOrder {
			if j == keepIdx {
				srcOff2 += sizes[j]
				continue
			}
			dstC := rowOffsetFor(order, rowOffsets, prior.VarOrder[j])
			for r := 0; r < sizes[i]; r++ {
				for c := 0; c < sizes[j]; c++ {
					H[dstR+r][dstC+c] = prior.H[srcOff+r][srcOff2+c]
				}
			}
			srcOff2 += sizes[j]
		}
		for r := 0; r < sizes[i]; r++ {
			B[dstR+r] = prior.B[srcOff+r]
		}
		srcOff += sizes[i]
	}
	return &BasePrior{VarOrder: order, H: H, B: B}
}

func rowOffsetFor(order []VarID, offsets []int, id VarID) int {
	for i, v := range order {
		if v == id {
			return offsets[i]
		}
	}
	return -1
}

// mergeBasePriors combines two priors, summing overlapping anchor blocks
// and zero-filling cross terms between anchors that were never jointly
// present in either input.
func mergeBasePriors(a, b *BasePrior) *BasePrior {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	sizesA := blockSizesFromPrior(a)
	sizesB := blockSizesFromPrior(b)

	dimOf := map[VarID]int{}
	for i, v := range a.VarOrder {
		dimOf[v] = sizesA[i]
	}
	for i, v := range b.VarOrder {
		dimOf[v] = sizesB[i]
	}

	seen := map[VarID]bool{}
	var order []VarID
	for _, v := range a.VarOrder {
		if !seen[v] {
			seen[v] = true
			order = append(order, v)
		}
	}
	for _, v := range b.VarOrder {
		if !seen[v] {
			seen[v] = true
			order = append(order, v)
		}
	}

	offsets := make(map[VarID]int, len(order))
	off := 0
	for _, v := range order {
		offsets[v] = off
		off += dimOf[v]
	}
	total := off

	H := make([][]float64, total)
	for r := range H {
		H[r] = make([]float64, total)
	}
	B := make([]float64, total)

	addInto := func(p *BasePrior, sizes []int) {
		rowStart := 0
		for i, vi := range p.VarOrder {
			colStart := 0
			for j, vj := range p.VarOrder {
				for r := 0; r < sizes[i]; r++ {
					for c := 0; c < sizes[j]; c++ {
						H[offsets[vi]+r][offsets[vj]+c] += p.H[rowStart+r][colStart+c]
					}
				}
				colStart += sizes[j]
			}
			for r := 0; r < sizes[i]; r++ {
				B[offsets[vi]+r] += p.B[rowStart+r]
			}
			rowStart += sizes[i]
		}
	}
	addInto(a, sizesA)
	addInto(b, sizesB)

	return &BasePrior{VarOrder: order, H: H, B: B}
}
