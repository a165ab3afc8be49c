package odom

import "go.viam.com/ctlio/manifold"

// extrapolateMotion implements spec.md §4.7 step 2's constant body-twist
// guess for frame index >= 2: the rotation and translation delta between
// the previous two frames' end poses is reapplied on top of the most
// recent one.
func extrapolateMotion(prev1, prev2 manifold.Pose) manifold.Pose {
	relRot := manifold.Pose{Rot: prev1.Rot}.Compose(manifold.Pose{Rot: prev2.Rot}.Inverse())
	endRot := relRot.Compose(manifold.Pose{Rot: prev1.Rot})
	endTrans := prev1.Trans.Add(relRot.TransformDirection(prev1.Trans.Sub(prev2.Trans)))
	return manifold.Pose{Rot: endRot.Rot, Trans: endTrans}
}

// downsampleVoxelSize picks the coarser init-regime grid for the first
// init_num_frames frames, per spec.md §4.7 step 3 / §4.4 step 2.
func downsampleVoxelSize(frameIndex, initNumFrames int, voxelSize, initVoxelSize float64) float64 {
	if frameIndex < initNumFrames {
		return initVoxelSize
	}
	return voxelSize
}

// nbVoxelsVisited picks the wider init-regime neighbor search radius, per
// spec.md §4.4 step 2.
func nbVoxelsVisited(frameIndex, initNumFrames int) int {
	if frameIndex < initNumFrames {
		return 2
	}
	return 1
}
