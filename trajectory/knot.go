package trajectory

import (
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
)

// Knot is a discrete trajectory state sample, per spec.md §3's tuple
// (time, T_rm, ω, α̇, bias, T_mi). Each field lives in its own lstsq
// variable so the sliding-window filter can marginalize pose/velocity/
// acceleration/bias/T_mi independently and factors can reference exactly
// the subset they depend on.
type Knot struct {
	time float64

	poseID  lstsq.VarID
	velID   lstsq.VarID
	accID   lstsq.VarID
	biasID  lstsq.VarID
	tmiID   lstsq.VarID
	pose    *PoseVariable
	vel     *Vec6Variable
	acc     *Vec6Variable
	bias    *Vec6Variable
	tmi     *PoseVariable
	tmiLock bool // true once T_mi is locked to a constant (spec.md §3)
}

// Time returns the knot's timestamp.
func (k *Knot) Time() float64 { return k.time }

// Pose, Velocity, Acceleration, Bias, and Tmi return the knot's current
// values.
func (k *Knot) Pose() manifold.Pose         { return k.pose.Pose() }
func (k *Knot) Velocity() manifold.Vec6     { return k.vel.Vec6() }
func (k *Knot) Acceleration() manifold.Vec6 { return k.acc.Vec6() }
func (k *Knot) Bias() manifold.Vec6         { return k.bias.Vec6() }
func (k *Knot) Tmi() manifold.Pose          { return k.tmi.Pose() }

// PoseVarID, VelocityVarID, AccelerationVarID, BiasVarID, and TmiVarID
// return this knot's ids for enrolling/referencing it in an lstsq.Problem.
func (k *Knot) PoseVarID() lstsq.VarID         { return k.poseID }
func (k *Knot) VelocityVarID() lstsq.VarID     { return k.velID }
func (k *Knot) AccelerationVarID() lstsq.VarID { return k.accID }
func (k *Knot) BiasVarID() lstsq.VarID         { return k.biasID }
func (k *Knot) TmiVarID() lstsq.VarID          { return k.tmiID }

// TmiLocked reports whether this knot's T_mi is held constant (never
// enrolled as an active variable); odom sets it from the use_t_mi_gt config
// knob.
func (k *Knot) TmiLocked() bool { return k.tmiLock }

// EnrollActive registers this knot's non-locked variables as active in
// problem, matching swf.Filter.EnrollKnot's per-knot contract.
func (k *Knot) EnrollActive(problem *lstsq.Problem) {
	problem.AddVariable(k.poseID, k.pose)
	problem.AddVariable(k.velID, k.vel)
	problem.AddVariable(k.accID, k.acc)
	problem.AddVariable(k.biasID, k.bias)
	if !k.tmiLock {
		problem.AddVariable(k.tmiID, k.tmi)
	}
}
