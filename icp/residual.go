package icp

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/trajectory"
)

// p2pRegularization is the epsilon added to the point-to-plane information
// form W = (w*n)(w*n)^T + eps*I of spec.md §4.4, keeping the normal
// equations well-conditioned in the two directions orthogonal to the plane.
const p2pRegularization = 1e-5

// PointToPlaneTerm is one accepted keypoint-to-map association. Its
// residual re-evaluates the trajectory at the keypoint's exact timestamp on
// every call, so the generic Gauss-Newton solver's numeric differentiation
// sees the correct dependence on the bracketing knots' pose/velocity/
// acceleration variables.
type PointToPlaneTerm struct {
	traj   *trajectory.Trajectory
	tsr    manifold.Pose
	raw    r3.Vector
	t      float64
	anchor r3.Vector
	normal r3.Vector
	weight float64
	loss   lstsq.LossFunction

	knotA, knotB *trajectory.Knot
	boundary     bool // true if t fell outside the knot span at construction time
}

// NewPointToPlaneTerm builds the cost term for one accepted association.
// tsr is the fixed sensor-to-robot extrinsic; world coordinates are formed
// as knotPose(t).Compose(tsr).Transform(raw) — this codebase's Pose
// convention has a knot's pose already mapping body-frame vectors to world
// (the same convention scan.InitialWorldPlacement uses), the opposite
// sense from spec.md §4.4's literal T_ms=(T_sr composed with T_rm)^-1 formula, which
// assumes the reverse "transform maps into that frame" convention.
func NewPointToPlaneTerm(traj *trajectory.Trajectory, tsr manifold.Pose, raw r3.Vector, t float64, nb Neighborhood, weight float64, loss lstsq.LossFunction) *PointToPlaneTerm {
	knotA, knotB, interior := traj.Bracket(t)
	return &PointToPlaneTerm{
		traj: traj, tsr: tsr, raw: raw, t: t,
		anchor: nb.Barycenter, normal: nb.Normal, weight: weight, loss: loss,
		knotA: knotA, knotB: knotB, boundary: !interior,
	}
}

// Vars implements lstsq.CostTerm.
func (p *PointToPlaneTerm) Vars() []lstsq.VarID {
	if p.boundary {
		return []lstsq.VarID{p.knotA.PoseVarID(), p.knotA.VelocityVarID(), p.knotA.AccelerationVarID()}
	}
	return []lstsq.VarID{
		p.knotA.PoseVarID(), p.knotA.VelocityVarID(), p.knotA.AccelerationVarID(),
		p.knotB.PoseVarID(), p.knotB.VelocityVarID(), p.knotB.AccelerationVarID(),
	}
}

// Dim implements lstsq.CostTerm: 1 point-to-plane component plus 3
// regularized point-to-point components realizing W's eps*I term.
func (p *PointToPlaneTerm) Dim() int { return 4 }

// Loss implements lstsq.CostTerm.
func (p *PointToPlaneTerm) Loss() lstsq.LossFunction { return p.loss }

// Residual implements lstsq.CostTerm.
func (p *PointToPlaneTerm) Residual() []float64 {
	Trm := p.traj.Evaluate(p.t).Pose()
	world := Trm.Compose(p.tsr).Transform(p.raw)
	diff := world.Sub(p.anchor)
	d := p.normal.Dot(diff)
	eps := math.Sqrt(p2pRegularization)
	return []float64{p.weight * d, eps * diff.X, eps * diff.Y, eps * diff.Z}
}

// Distance returns the current unweighted point-to-plane distance, used by
// the association gate (spec.md §4.4's p2p_max_dist test) before this term
// is even constructed — exposed here too so odom's diagnostics can recheck
// it after a solve.
func (p *PointToPlaneTerm) Distance() float64 {
	Trm := p.traj.Evaluate(p.t).Pose()
	world := Trm.Compose(p.tsr).Transform(p.raw)
	return math.Abs(p.normal.Dot(world.Sub(p.anchor)))
}
