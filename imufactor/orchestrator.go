package imufactor

import (
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/trajectory"
)

// AddIMUCostTerms builds and enrolls the gyro/accel residual for every
// sample and the bias/T_mi random-walk factor for every consecutive active
// knot pair (spec.md §4.5). Samples whose bracketing knots have already
// been marginalized out of problem are skipped rather than treated as
// fatal — only a sample outside the whole trajectory's knot span raises.
func AddIMUCostTerms(problem *lstsq.Problem, traj *trajectory.Trajectory, samples []Sample, params Params) error {
	if !params.UseIMU {
		return nil
	}
	for _, s := range samples {
		gyro, err := NewGyroTerm(traj, s, params.RImuAng)
		if err != nil {
			return err
		}
		if allVarsActive(problem, gyro.Vars()) {
			if err := problem.AddCostTerm(gyro); err != nil {
				return err
			}
		}
		if params.UseAccel {
			accel, err := NewAccelTerm(traj, s, params.Gravity, params.RImuAcc)
			if err != nil {
				return err
			}
			if allVarsActive(problem, accel.Vars()) {
				if err := problem.AddCostTerm(accel); err != nil {
					return err
				}
			}
		}
	}

	knots := traj.Knots()
	for i := 0; i+1 < len(knots); i++ {
		a, b := knots[i], knots[i+1]
		if !problem.HasVariable(a.BiasVarID()) || !problem.HasVariable(b.BiasVarID()) {
			continue
		}
		if err := problem.AddCostTerm(&biasRWTerm{knotA: a, knotB: b, qImu: params.QImu}); err != nil {
			return err
		}
		if params.TmiInitOnly || params.UseTmiGT {
			continue
		}
		if !problem.HasVariable(a.TmiVarID()) || !problem.HasVariable(b.TmiVarID()) {
			continue
		}
		if err := problem.AddCostTerm(&tmiRWTerm{knotA: a, knotB: b, qgDiag: params.QgDiag}); err != nil {
			return err
		}
	}
	return nil
}

func allVarsActive(problem *lstsq.Problem, vars []lstsq.VarID) bool {
	for _, v := range vars {
		if !problem.HasVariable(v) {
			return false
		}
	}
	return true
}

// AddInitialPriors pins the very first knot's state, per
// spec.md §4.5's initial-priors design: pose at knot0's own pinned value
// (T_sr^-1 when the sensor frame is offset from the robot frame, identity
// otherwise — see registerFirstFrame) with tight covariance, velocity at
// zero with tight covariance, acceleration at zero with a looser
// covariance, bias at zero scaled by p0_imu, and T_mi at identity with the
// anisotropic covariance of InitialTmiSigma.
func AddInitialPriors(problem *lstsq.Problem, traj *trajectory.Trajectory, knot0 *trajectory.Knot, params Params) error {
	tight := manifold.NewVec6(1e-4, 1e-4, 1e-4, 1e-4, 1e-4, 1e-4)
	loose := manifold.NewVec6(1e-1, 1e-1, 1e-1, 1e-1, 1e-1, 1e-1)
	biasSigma := manifold.NewVec6(params.P0Imu, params.P0Imu, params.P0Imu, params.P0Imu, params.P0Imu, params.P0Imu)

	if err := traj.AddPosePrior(problem, knot0, knot0.Pose(), tight); err != nil {
		return err
	}
	if err := traj.AddVelocityPrior(problem, knot0, manifold.Zero6(), tight); err != nil {
		return err
	}
	if err := traj.AddAccelerationPrior(problem, knot0, manifold.Zero6(), loose); err != nil {
		return err
	}
	if err := traj.AddBiasPrior(problem, knot0, manifold.Zero6(), biasSigma); err != nil {
		return err
	}
	if !knot0.TmiLocked() {
		if err := traj.AddTmiPrior(problem, knot0, manifold.Identity(), InitialTmiSigma(params.TmiPriorDiag)); err != nil {
			return err
		}
	}
	return nil
}
