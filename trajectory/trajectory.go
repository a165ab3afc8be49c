// Package trajectory implements the continuous-time state representation of
// spec.md §4.2: a sequence of discrete knots plus a Gaussian-process prior
// (white-noise-on-jerk, or Singer when ad_diag is nonzero) that gives closed-
// form pose/velocity/acceleration interpolation anywhere between them.
package trajectory

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/ctlio/ctlerrors"
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
)

// Trajectory is an append-only, time-ordered list of knots plus the GP prior
// parameters that connect them. It owns the lstsq.VarID space for every
// knot's pose/velocity/acceleration/bias/T_mi variable: no other package
// allocates VarIDs for trajectory state.
type Trajectory struct {
	knots  []*Knot
	nextID lstsq.VarID

	qcDiag manifold.Vec6 // process-noise spectral density, spec.md §6 qc_diag
	adDiag manifold.Vec6 // Singer decay rates, spec.md §6 ad_diag; zero => WNOJ
}

// New returns an empty trajectory with the given GP prior parameters.
func New(qcDiag, adDiag manifold.Vec6) *Trajectory {
	return &Trajectory{qcDiag: qcDiag, adDiag: adDiag, nextID: 1}
}

// Add registers a new knot at time t with the given initial values. Times
// must be strictly increasing across calls; violating that is an invariant
// violation per spec.md §3/§7, not a recoverable condition.
func (traj *Trajectory) Add(t float64, pose manifold.Pose, vel, acc, bias manifold.Vec6, tmi manifold.Pose, tmiLocked bool) (*Knot, error) {
	if n := len(traj.knots); n > 0 && t <= traj.knots[n-1].time {
		return nil, ctlerrors.WrapFatal(errors.Errorf("knot time %.9f is not strictly increasing after %.9f", t, traj.knots[n-1].time))
	}
	k := &Knot{
		time:    t,
		poseID:  traj.allocID(),
		velID:   traj.allocID(),
		accID:   traj.allocID(),
		biasID:  traj.allocID(),
		tmiID:   traj.allocID(),
		pose:    NewPoseVariable(pose),
		vel:     NewVec6Variable(vel),
		acc:     NewVec6Variable(acc),
		bias:    NewVec6Variable(bias),
		tmi:     NewPoseVariable(tmi),
		tmiLock: tmiLocked,
	}
	traj.knots = append(traj.knots, k)
	return k, nil
}

func (traj *Trajectory) allocID() lstsq.VarID {
	id := traj.nextID
	traj.nextID++
	return id
}

// Knots returns the full knot list in time order. Callers must not mutate
// the returned slice; marginalized knots remain in it (spec.md §3's
// ownership note: "marginalized knots remain readable for trajectory
// reporting").
func (traj *Trajectory) Knots() []*Knot { return traj.knots }

// Last returns the most recently added knot, or nil if none exist yet.
func (traj *Trajectory) Last() *Knot {
	if len(traj.knots) == 0 {
		return nil
	}
	return traj.knots[len(traj.knots)-1]
}

// Bracket returns the two knots bracketing t. If t is at or before the
// first knot or at or after the last knot, a==b==the boundary knot and
// interior is false: callers should report that knot's value directly with
// no extrapolation (spec.md §4.2).
func (traj *Trajectory) Bracket(t float64) (a, b *Knot, interior bool) {
	n := len(traj.knots)
	if n == 0 {
		return nil, nil, false
	}
	if t <= traj.knots[0].time {
		return traj.knots[0], traj.knots[0], false
	}
	if t >= traj.knots[n-1].time {
		return traj.knots[n-1], traj.knots[n-1], false
	}
	idx := sort.Search(n, func(i int) bool { return traj.knots[i].time > t })
	return traj.knots[idx-1], traj.knots[idx], true
}

// Interpolant is the evaluated GP mean at a query time: a pose, body-frame
// velocity, and body-frame acceleration, per spec.md §3's knot tuple.
type Interpolant struct {
	pose  manifold.Pose
	vel   manifold.Vec6
	acc   manifold.Vec6
}

// Pose, Velocity, and Acceleration return the evaluated components.
func (in Interpolant) Pose() manifold.Pose         { return in.pose }
func (in Interpolant) Velocity() manifold.Vec6     { return in.vel }
func (in Interpolant) Acceleration() manifold.Vec6 { return in.acc }

// Evaluate is the shared implementation behind GetPoseInterpolator,
// GetVelocityInterpolator, and GetAccelerationInterpolator: it brackets t,
// clamps to the boundary knot outside the knot span, and otherwise applies
// the closed-form GP interpolation independently per DOF.
func (traj *Trajectory) Evaluate(t float64) Interpolant {
	a, b, interior := traj.Bracket(t)
	if a == nil {
		return Interpolant{pose: manifold.Identity()}
	}
	if !interior {
		return Interpolant{pose: a.Pose(), vel: a.Velocity(), acc: a.Acceleration()}
	}
	return traj.interpolateBetween(a, b, t-a.time)
}

func (traj *Trajectory) modelForDOF(dof int) gpModel {
	qc := traj.qcDiag.Slice()[dof]
	ad := traj.adDiag.Slice()[dof]
	if ad == 0 {
		return wnojModel{qc: qc}
	}
	return singerModel{qc: qc, ad: ad}
}

// interpolateBetween applies x(tau) = Lambda(tau)*xA + Omega(tau)*xB
// independently for each of the 6 decoupled DOFs, where xA/xB are the
// (position, velocity, acceleration) triple in A's local tangent frame:
// position at A is zero by construction, position at B is A.Pose().Ominus
// (B.Pose()). This exactly reproduces A at tau=0 and B at tau=dt=b.time-
// a.time (spec.md §8's boundary-value invariant).
func (traj *Trajectory) interpolateBetween(a, b *Knot, tau float64) Interpolant {
	dt := b.time - a.time
	xiB := a.Pose().Ominus(b.Pose())
	posB := xiB.Slice()
	velA, accA := a.Velocity().Slice(), a.Acceleration().Slice()
	velB, accB := b.Velocity().Slice(), b.Acceleration().Slice()

	pos := make([]float64, 6)
	vel := make([]float64, 6)
	acc := make([]float64, 6)
	for d := 0; d < 6; d++ {
		model := traj.modelForDOF(d)
		lambda, omega := gpInterpCoeffs(model, dt, tau)
		xA := [3]float64{0, velA[d], accA[d]}
		xB := [3]float64{posB[d], velB[d], accB[d]}
		for r := 0; r < 3; r++ {
			v := lambda.At(r, 0)*xA[0] + lambda.At(r, 1)*xA[1] + lambda.At(r, 2)*xA[2]
			v += omega.At(r, 0)*xB[0] + omega.At(r, 1)*xB[1] + omega.At(r, 2)*xB[2]
			switch r {
			case 0:
				pos[d] = v
			case 1:
				vel[d] = v
			case 2:
				acc[d] = v
			}
		}
	}
	return Interpolant{
		pose: a.Pose().Oplus(manifold.Vec6FromSlice(pos)),
		vel:  manifold.Vec6FromSlice(vel),
		acc:  manifold.Vec6FromSlice(acc),
	}
}

// PoseInterpolator is a lazily-evaluable pose query at a fixed time,
// matching spec.md §4.2's getPoseInterpolator.
type PoseInterpolator struct {
	traj *Trajectory
	t    float64
}

// Evaluate computes the interpolated pose.
func (pi PoseInterpolator) Evaluate() manifold.Pose { return pi.traj.Evaluate(pi.t).Pose() }

// GetPoseInterpolator returns a lazy pose query at time t.
func (traj *Trajectory) GetPoseInterpolator(t float64) PoseInterpolator {
	return PoseInterpolator{traj: traj, t: t}
}

// VelocityInterpolator is a lazily-evaluable body-velocity query.
type VelocityInterpolator struct {
	traj *Trajectory
	t    float64
}

// Evaluate computes the interpolated velocity.
func (vi VelocityInterpolator) Evaluate() manifold.Vec6 { return vi.traj.Evaluate(vi.t).Velocity() }

// GetVelocityInterpolator returns a lazy velocity query at time t.
func (traj *Trajectory) GetVelocityInterpolator(t float64) VelocityInterpolator {
	return VelocityInterpolator{traj: traj, t: t}
}

// AccelerationInterpolator is a lazily-evaluable body-acceleration query.
type AccelerationInterpolator struct {
	traj *Trajectory
	t    float64
}

// Evaluate computes the interpolated acceleration.
func (ai AccelerationInterpolator) Evaluate() manifold.Vec6 {
	return ai.traj.Evaluate(ai.t).Acceleration()
}

// GetAccelerationInterpolator returns a lazy acceleration query at time t.
func (traj *Trajectory) GetAccelerationInterpolator(t float64) AccelerationInterpolator {
	return AccelerationInterpolator{traj: traj, t: t}
}

// AddPriorCostTerms emits the between-knot GP factors for every consecutive
// pair of knots that are both active in problem; a pair with a marginalized
// endpoint is skipped, since its contribution already lives in the sliding
// window filter's base prior (spec.md §4.6).
func (traj *Trajectory) AddPriorCostTerms(problem *lstsq.Problem) error {
	for i := 0; i+1 < len(traj.knots); i++ {
		a, b := traj.knots[i], traj.knots[i+1]
		if !problem.HasVariable(a.poseID) || !problem.HasVariable(b.poseID) {
			continue
		}
		term := &gpPriorTerm{traj: traj, knotA: a, knotB: b, dt: b.time - a.time}
		if err := problem.AddCostTerm(term); err != nil {
			return err
		}
	}
	return nil
}

// AddPosePrior adds a prior cost term pinning knot k's pose near T with
// covariance sigma (per spec.md's initial-priors design in §4.5).
func (traj *Trajectory) AddPosePrior(problem *lstsq.Problem, k *Knot, T manifold.Pose, sigma manifold.Vec6) error {
	return problem.AddCostTerm(&posePriorTerm{knot: k, value: T, sigma: sigma})
}

// AddVelocityPrior adds a prior cost term pinning knot k's velocity near w.
func (traj *Trajectory) AddVelocityPrior(problem *lstsq.Problem, k *Knot, w manifold.Vec6, sigma manifold.Vec6) error {
	return problem.AddCostTerm(&vec6PriorTerm{varID: k.velID, get: k.Velocity, value: w, sigma: sigma})
}

// AddAccelerationPrior adds a prior cost term pinning knot k's acceleration
// near a.
func (traj *Trajectory) AddAccelerationPrior(problem *lstsq.Problem, k *Knot, a manifold.Vec6, sigma manifold.Vec6) error {
	return problem.AddCostTerm(&vec6PriorTerm{varID: k.accID, get: k.Acceleration, value: a, sigma: sigma})
}

// AddBiasPrior adds a prior cost term pinning knot k's IMU bias near b.
func (traj *Trajectory) AddBiasPrior(problem *lstsq.Problem, k *Knot, b manifold.Vec6, sigma manifold.Vec6) error {
	return problem.AddCostTerm(&vec6PriorTerm{varID: k.biasID, get: k.Bias, value: b, sigma: sigma})
}

// AddTmiPrior adds a prior cost term pinning knot k's T_mi near T, with the
// anisotropic covariance spec.md §4.5 calls for (small on x/y/z rotation,
// larger on the unobservable-under-gravity yaw component).
func (traj *Trajectory) AddTmiPrior(problem *lstsq.Problem, k *Knot, T manifold.Pose, sigma manifold.Vec6) error {
	return problem.AddCostTerm(&tmiPriorTerm{knot: k, value: T, sigma: sigma})
}

// GetCovariance returns the 18x18 (pos6, vel6, accel6) marginal covariance
// of the interpolated state at time t, propagated from the bracketing
// knots' solved block covariances through the same Lambda/Omega weights
// used for the mean (Barfoot's GP-interpolation covariance formula). Cross-
// covariance between the two knots is not available from Result's per-
// variable BlockCovariance and is treated as zero, a documented
// approximation valid when the window is well constrained.
func (traj *Trajectory) GetCovariance(result *lstsq.Result, t float64) *mat.SymDense {
	a, b, interior := traj.Bracket(t)
	if a == nil {
		return nil
	}
	out := mat.NewSymDense(18, nil)
	if !interior {
		covPose := result.BlockCovariance(a.poseID)
		covVel := result.BlockCovariance(a.velID)
		covAcc := result.BlockCovariance(a.accID)
		setBlockDiag(out, 0, covPose)
		setBlockDiag(out, 6, covVel)
		setBlockDiag(out, 12, covAcc)
		return out
	}
	dt := b.time - a.time
	tau := t - a.time
	covPoseA, covVelA, covAccA := result.BlockCovariance(a.poseID), result.BlockCovariance(a.velID), result.BlockCovariance(a.accID)
	covPoseB, covVelB, covAccB := result.BlockCovariance(b.poseID), result.BlockCovariance(b.velID), result.BlockCovariance(b.accID)
	for d := 0; d < 6; d++ {
		model := traj.modelForDOF(d)
		lambda, omega := gpInterpCoeffs(model, dt, tau)
		covA := dofCov3(d, covPoseA, covVelA, covAccA)
		covB := dofCov3(d, covPoseB, covVelB, covAccB)
		var lc, oc mat.Dense
		lc.Mul(lambda, covA)
		var lct mat.Dense
		lct.Mul(&lc, lambda.T())
		oc.Mul(omega, covB)
		var oct mat.Dense
		oct.Mul(&oc, omega.T())
		var sum mat.Dense
		sum.Add(&lct, &oct)
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				rowIdx, colIdx := r*6+d, c*6+d
				if colIdx < rowIdx {
					rowIdx, colIdx = colIdx, rowIdx
				}
				out.SetSym(rowIdx, colIdx, sum.At(r, c))
			}
		}
	}
	return out
}

func setBlockDiag(out *mat.SymDense, off int, block *mat.Dense) {
	if block == nil {
		return
	}
	r, _ := block.Dims()
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			out.SetSym(off+i, off+j, block.At(i, j))
		}
	}
}

// dofCov3 assembles the 3x3 (pos,vel,accel) covariance for a single DOF d
// from the solver's 6x6 pose/velocity/acceleration blocks, taking only the
// diagonal-in-DOF entries (consistent with qc_diag/ad_diag being diagonal
// across DOFs, so cross-DOF covariance is never introduced by this prior).
func dofCov3(d int, covPose, covVel, covAcc *mat.Dense) *mat.Dense {
	get := func(block *mat.Dense) float64 {
		if block == nil {
			return 0
		}
		return block.At(d, d)
	}
	return mat.NewDense(3, 3, []float64{
		get(covPose), 0, 0,
		0, get(covVel), 0,
		0, 0, get(covAcc),
	})
}
