package imufactor

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/trajectory"
)

// accelTerm is the accel residual of spec.md §4.5: e_a = adot_body(tau) -
// R_body_world(tau)*T_mi*g - (accel_meas - bias_accel). Gated behind
// Params.UseAccel, spec.md §9's open question (defaulting true here).
type accelTerm struct {
	traj         *trajectory.Trajectory
	knotA, knotB *trajectory.Knot
	t            float64
	meas         r3.Vector
	gravity      float64
	rAcc         [3]float64
}

// NewAccelTerm builds the accel cost term for sample at time t.
func NewAccelTerm(traj *trajectory.Trajectory, sample Sample, gravity float64, rAcc [3]float64) (lstsq.CostTerm, error) {
	knotA, knotB, err := bracketOrFatal(traj, sample.Timestamp)
	if err != nil {
		return nil, err
	}
	return &accelTerm{traj: traj, knotA: knotA, knotB: knotB, t: sample.Timestamp, meas: sample.LinAcc, gravity: gravity, rAcc: rAcc}, nil
}

func (a *accelTerm) Vars() []lstsq.VarID {
	return []lstsq.VarID{
		a.knotA.PoseVarID(), a.knotA.VelocityVarID(), a.knotA.AccelerationVarID(),
		a.knotB.PoseVarID(), a.knotB.VelocityVarID(), a.knotB.AccelerationVarID(),
		a.knotA.BiasVarID(), a.knotA.TmiVarID(),
	}
}

func (a *accelTerm) Dim() int { return 3 }

func (a *accelTerm) Loss() lstsq.LossFunction { return lstsq.L1Loss{} }

func (a *accelTerm) Residual() []float64 {
	interp := a.traj.Evaluate(a.t)
	accLocal := interp.Acceleration().Linear
	g := r3.Vector{Z: a.gravity}
	worldGravity := a.knotA.Tmi().TransformDirection(g)
	bodyGravity := interp.Pose().Inverse().TransformDirection(worldGravity)
	biasAccel := a.knotA.Bias().Linear

	e := accLocal.Sub(bodyGravity).Sub(a.meas).Add(biasAccel)
	rAcc := a.rAcc
	return []float64{
		e.X / math.Sqrt(rAcc[0]),
		e.Y / math.Sqrt(rAcc[1]),
		e.Z / math.Sqrt(rAcc[2]),
	}
}
