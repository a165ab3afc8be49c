package trajectory

import (
	"math"

	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
)

// gpPriorTerm is the between-knot GP factor of spec.md §4.2: cost = 1/2
// e^T Q(dt)^-1 e in local coordinates, evaluated as a whitened residual so
// the generic Gauss-Newton solver's plain sum-of-squares objective equals
// the intended Mahalanobis cost.
type gpPriorTerm struct {
	traj         *Trajectory
	knotA, knotB *Knot
	dt           float64
}

func (t *gpPriorTerm) Vars() []lstsq.VarID {
	return []lstsq.VarID{
		t.knotA.poseID, t.knotA.velID, t.knotA.accID,
		t.knotB.poseID, t.knotB.velID, t.knotB.accID,
	}
}

func (t *gpPriorTerm) Dim() int { return 18 }

func (t *gpPriorTerm) Loss() lstsq.LossFunction { return nil }

func (t *gpPriorTerm) Residual() []float64 {
	xiB := t.knotA.Pose().Ominus(t.knotB.Pose())
	posB := xiB.Slice()
	velA, accA := t.knotA.Velocity().Slice(), t.knotA.Acceleration().Slice()
	velB, accB := t.knotB.Velocity().Slice(), t.knotB.Acceleration().Slice()

	res := make([]float64, 18)
	for d := 0; d < 6; d++ {
		model := t.traj.modelForDOF(d)
		phi := model.phi(t.dt)
		xA := [3]float64{0, velA[d], accA[d]}
		xB := [3]float64{posB[d], velB[d], accB[d]}
		var e [3]float64
		for r := 0; r < 3; r++ {
			pred := phi.At(r, 0)*xA[0] + phi.At(r, 1)*xA[1] + phi.At(r, 2)*xA[2]
			e[r] = xB[r] - pred
		}
		w := whiten3(model.q(t.dt), e)
		res[d] = w[0]
		res[6+d] = w[1]
		res[12+d] = w[2]
	}
	return res
}

// posePriorTerm pins a single knot's pose near a target value with a
// diagonal covariance, matching spec.md §4.5's initial pose prior.
type posePriorTerm struct {
	knot  *Knot
	value manifold.Pose
	sigma manifold.Vec6
}

func (t *posePriorTerm) Vars() []lstsq.VarID     { return []lstsq.VarID{t.knot.poseID} }
func (t *posePriorTerm) Dim() int                { return 6 }
func (t *posePriorTerm) Loss() lstsq.LossFunction { return nil }

func (t *posePriorTerm) Residual() []float64 {
	e := t.value.Ominus(t.knot.Pose()).Slice()
	s := t.sigma.Slice()
	res := make([]float64, 6)
	for i := range res {
		res[i] = e[i] / math.Sqrt(s[i])
	}
	return res
}

// tmiPriorTerm pins a knot's T_mi variable near a target value.
type tmiPriorTerm struct {
	knot  *Knot
	value manifold.Pose
	sigma manifold.Vec6
}

func (t *tmiPriorTerm) Vars() []lstsq.VarID     { return []lstsq.VarID{t.knot.tmiID} }
func (t *tmiPriorTerm) Dim() int                { return 6 }
func (t *tmiPriorTerm) Loss() lstsq.LossFunction { return nil }

func (t *tmiPriorTerm) Residual() []float64 {
	e := t.value.Ominus(t.knot.Tmi()).Slice()
	s := t.sigma.Slice()
	res := make([]float64, 6)
	for i := range res {
		res[i] = e[i] / math.Sqrt(s[i])
	}
	return res
}

// vec6PriorTerm pins a single Vec6-valued variable (velocity, acceleration,
// or bias) near a target value with a diagonal covariance.
type vec6PriorTerm struct {
	varID lstsq.VarID
	get   func() manifold.Vec6
	value manifold.Vec6
	sigma manifold.Vec6
}

func (t *vec6PriorTerm) Vars() []lstsq.VarID     { return []lstsq.VarID{t.varID} }
func (t *vec6PriorTerm) Dim() int                { return 6 }
func (t *vec6PriorTerm) Loss() lstsq.LossFunction { return nil }

func (t *vec6PriorTerm) Residual() []float64 {
	cur := t.get().Slice()
	val := t.value.Slice()
	s := t.sigma.Slice()
	res := make([]float64, 6)
	for i := range res {
		res[i] = (cur[i] - val[i]) / math.Sqrt(s[i])
	}
	return res
}
