// Package imufactor implements the IMU-derived cost terms of spec.md §4.5:
// gyro/accel residuals against the continuous-time trajectory, bias and
// T_mi random-walk priors, and the first-knot initial priors.
package imufactor

import "go.viam.com/ctlio/manifold"

// Params bundles the IMU-related configuration knobs of spec.md §6.
type Params struct {
	UseIMU      bool
	UseAccel    bool // imu_use_accel, spec.md §9 open question, default true
	RImuAcc     [3]float64
	RImuAng     [3]float64
	QImu        float64 // bias random-walk spectral density
	P0Imu       float64 // bias initial-prior variance
	Gravity     float64
	QgDiag      [6]float64
	TmiInitOnly bool
	UseTmiGT    bool       // debug-only: drive T_mi to ground truth, spec.md §9
	TmiPriorDiag [6]float64 // t_mi_prior_diag, defaults via DefaultTmiPriorDiag
}

// DefaultTmiPriorDiag is the anisotropic covariance spec.md §4.5 calls for
// on the first knot's T_mi prior, with the concrete numbers resolved in
// DESIGN.md's Open Question entry: rotation×3 then translation×3, tight on
// roll/pitch (observable from a single gravity vector), loose on yaw
// (unobservable), and pinned near zero on translation since this engine's
// T_mi only ever corrects a gravity-aligned rotation.
func DefaultTmiPriorDiag() [6]float64 {
	return [6]float64{1e-4, 1e-2, 1e-2, 1e-4, 1e-4, 1e-8}
}

// InitialTmiSigma converts diag into the Vec6 form trajectory.AddTmiPrior
// expects, falling back to DefaultTmiPriorDiag when diag is the zero value.
func InitialTmiSigma(diag [6]float64) manifold.Vec6 {
	if diag == ([6]float64{}) {
		diag = DefaultTmiPriorDiag()
	}
	return manifold.NewVec6(diag[0], diag[1], diag[2], diag[3], diag[4], diag[5])
}
