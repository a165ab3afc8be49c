package icp

import (
	"go.viam.com/ctlio/ctlutils"
	"go.viam.com/ctlio/manifold"
)

// MinKeypointsDefault is spec.md §4.4's default min_number_keypoints below
// which a frame's ICP is aborted with summary.success=false.
const MinKeypointsDefault = 100

// PoseDelta returns the translation norm (meters) and rotation magnitude
// (degrees) between two poses, the Δ spec.md §4.4 step 5 checks against
// threshold_translation_norm / threshold_orientation_norm.
func PoseDelta(a, b manifold.Pose) (transNorm, rotDeg float64) {
	xi := a.Ominus(b)
	return xi.Linear.Norm(), ctlutils.RadToDeg(xi.Angular.Norm())
}

// Converged reports whether the begin/end pose deltas between two ICP outer
// iterations are both within threshold (spec.md §4.4 step 5); frame index 0
// and 1 never report converged early since there is nothing to compare
// against yet.
func Converged(indexFrame int, beginDelta, endDelta [2]float64, threshTrans, threshRotDeg float64) bool {
	if indexFrame <= 1 {
		return false
	}
	transNorm := beginDelta[0] + endDelta[0]
	rotNorm := beginDelta[1] + endDelta[1]
	return transNorm < threshTrans && rotNorm < threshRotDeg
}
