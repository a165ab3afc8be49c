package imufactor

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/ctlio/ctlerrors"
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/trajectory"
)

// gyroTerm is the gyro residual of spec.md §4.5: e_g = w_body(tau) -
// (gyro_meas - bias_gyro), robust-weighted with L1.
type gyroTerm struct {
	traj         *trajectory.Trajectory
	knotA, knotB *trajectory.Knot
	t            float64
	meas         r3.Vector
	rAng         [3]float64
}

// NewGyroTerm builds the gyro cost term for sample at time t, bracketed by
// knotA/knotB. Returns a fatal error if t does not fall strictly within
// [knotA.Time(), knotB.Time()) per spec.md §4.5/§7.
func NewGyroTerm(traj *trajectory.Trajectory, sample Sample, rAng [3]float64) (lstsq.CostTerm, error) {
	knotA, knotB, err := bracketOrFatal(traj, sample.Timestamp)
	if err != nil {
		return nil, err
	}
	return &gyroTerm{traj: traj, knotA: knotA, knotB: knotB, t: sample.Timestamp, meas: sample.AngVel, rAng: rAng}, nil
}

func bracketOrFatal(traj *trajectory.Trajectory, t float64) (a, b *trajectory.Knot, err error) {
	a, b, interior := traj.Bracket(t)
	if !interior {
		// Bracket reports the first knot's own time as a boundary; a sample
		// stamped exactly there still lies in [t_0, t_1).
		if knots := traj.Knots(); len(knots) > 1 && t == knots[0].Time() {
			return knots[0], knots[1], nil
		}
		return nil, nil, ctlerrors.NewFatal("IMU sample at t=%.9f falls outside its bracketing knots", t)
	}
	return a, b, nil
}

func (g *gyroTerm) Vars() []lstsq.VarID {
	return []lstsq.VarID{
		g.knotA.PoseVarID(), g.knotA.VelocityVarID(), g.knotA.AccelerationVarID(),
		g.knotB.PoseVarID(), g.knotB.VelocityVarID(), g.knotB.AccelerationVarID(),
		g.knotA.BiasVarID(),
	}
}

func (g *gyroTerm) Dim() int { return 3 }

func (g *gyroTerm) Loss() lstsq.LossFunction { return lstsq.L1Loss{} }

func (g *gyroTerm) Residual() []float64 {
	omega := g.traj.Evaluate(g.t).Velocity().Angular
	biasGyro := g.knotA.Bias().Angular
	e := omega.Sub(g.meas).Add(biasGyro)
	rAng := g.rAng
	return []float64{
		e.X / math.Sqrt(rAng[0]),
		e.Y / math.Sqrt(rAng[1]),
		e.Z / math.Sqrt(rAng[2]),
	}
}
