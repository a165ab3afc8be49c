package lstsq

import (
	"github.com/pkg/errors"

	"go.viam.com/ctlio/ctlerrors"
)

// MaxActiveVariables and MaxActiveCostTerms are the hard resource bounds of
// spec.md §5: exceeding either is a fatal fault, not a soft limit.
const (
	MaxActiveVariables = 100
	MaxActiveCostTerms = 100000
)

// Problem is a factor-graph snapshot: a set of active variables plus the
// cost terms referencing them, optionally built on top of a shared base
// prior contributed by a marginalization step (spec.md §4.6). Problems are
// cheap to Snapshot(): the base prior and the variable entries are shared,
// the variable map itself is copied, and the child starts with an empty
// cost term list.
type Problem struct {
	variables map[VarID]*variable
	terms     []CostTerm
	// basePrior, when non-nil, is folded into the normal equations before
	// any of terms are added; it represents the linearized marginal left
	// behind by lstsq.MarginalizeVariable.
	basePrior *BasePrior
}

// BasePrior is the quadratic form (in the tangent space of a fixed set of
// "anchor" variables) that a Schur-complement marginalization leaves
// behind: cost(x) = 1/2 (H x - b)^T (informal — stored directly as
// information matrix H and information vector b over the anchor variables,
// in the order given by VarOrder).
type BasePrior struct {
	VarOrder []VarID
	H        [][]float64 // block-free dense information matrix, stacked in VarOrder's tangent order
	B        []float64
}

// NewProblem returns an empty problem with no base prior.
func NewProblem() *Problem {
	return &Problem{variables: make(map[VarID]*variable)}
}

// AddVariable enrolls a variable as active in this problem.
func (p *Problem) AddVariable(id VarID, r Retractable) {
	if _, ok := p.variables[id]; ok {
		return
	}
	p.variables[id] = &variable{id: id, r: r}
}

// RemoveVariable drops a variable from this problem's active set.
// MarginalizeVariable deletes marginalized variables itself and does not
// call it.
func (p *Problem) RemoveVariable(id VarID) {
	delete(p.variables, id)
}

// HasVariable reports whether id is currently active in this problem.
func (p *Problem) HasVariable(id VarID) bool {
	_, ok := p.variables[id]
	return ok
}

// AddCostTerm adds c, after checking every variable it references is
// active. Returns a *ctlerrors.FatalError if c references an inactive
// variable or if adding it would exceed the resource bounds of spec.md §5.
func (p *Problem) AddCostTerm(c CostTerm) error {
	for _, v := range c.Vars() {
		if !p.HasVariable(v) {
			return ctlerrors.WrapFatal(errors.Errorf("cost term references inactive variable %d", v))
		}
	}
	if len(p.variables) > MaxActiveVariables {
		return ctlerrors.WrapFatal(errors.Errorf("sliding window exceeded %d active variable groups", MaxActiveVariables))
	}
	if len(p.terms)+1 > MaxActiveCostTerms {
		return ctlerrors.WrapFatal(errors.Errorf("sliding window exceeded %d active cost terms", MaxActiveCostTerms))
	}
	p.terms = append(p.terms, c)
	return nil
}

// NumCostTerms returns the number of cost terms currently in the problem.
func (p *Problem) NumCostTerms() int {
	return len(p.terms)
}

// Snapshot builds a child problem sharing this problem's variables and base
// prior but starting with an empty per-iteration term list, matching the
// "assemble a snapshot" step of spec.md §4.4/§4.6.
func (p *Problem) Snapshot() *Problem {
	vars := make(map[VarID]*variable, len(p.variables))
	for id, v := range p.variables {
		vars[id] = v
	}
	return &Problem{variables: vars, basePrior: p.basePrior}
}

// SetBasePrior installs the marginalization prior produced by
// lstsq.MarginalizeVariable.
func (p *Problem) SetBasePrior(prior *BasePrior) {
	p.basePrior = prior
}
