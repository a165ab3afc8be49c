package lstsq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/ctlio/ctlerrors"
)

// scalarVar is a minimal Retractable used to exercise the solver without
// pulling in manifold/trajectory types.
type scalarVar struct{ x float64 }

func (s *scalarVar) Dim() int { return 1 }
func (s *scalarVar) Retract(delta []float64) {
	s.x += delta[0]
}
func (s *scalarVar) Value() interface{}    { return s.x }
func (s *scalarVar) SetValue(v interface{}) { s.x = v.(float64) }

type targetCost struct {
	id     VarID
	v      *scalarVar
	target float64
}

func (c *targetCost) Vars() []VarID    { return []VarID{c.id} }
func (c *targetCost) Dim() int         { return 1 }
func (c *targetCost) Loss() LossFunction { return nil }
func (c *targetCost) Residual() []float64 {
	return []float64{c.v.x - c.target}
}

func TestGaussNewtonConvergesToTarget(t *testing.T) {
	v := &scalarVar{x: 0}
	p := NewProblem()
	p.AddVariable(1, v)
	require.NoError(t, p.AddCostTerm(&targetCost{id: 1, v: v, target: 3.5}))

	_, err := GaussNewtonSolve(p, Options{MaxIterations: 3})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, v.x, 1e-6)
}

func TestAddCostTermRejectsInactiveVariable(t *testing.T) {
	v := &scalarVar{}
	p := NewProblem()
	err := p.AddCostTerm(&targetCost{id: 99, v: v, target: 1})
	assert.Error(t, err)
}

func TestResourceBoundIsFatal(t *testing.T) {
	p := NewProblem()
	for i := 0; i < MaxActiveVariables+1; i++ {
		p.AddVariable(VarID(i), &scalarVar{})
	}
	err := p.AddCostTerm(&targetCost{id: 0, v: &scalarVar{}, target: 0})
	require.Error(t, err)
	assert.True(t, ctlerrors.IsFatal(err))
}
