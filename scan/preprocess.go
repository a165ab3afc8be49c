package scan

import (
	"math/rand"

	"go.viam.com/ctlio/ctlutils"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/voxelmap"
)

// SubSampleFrame bins points by their signed-truncated raw-frame voxel key
// and keeps exactly the first point inserted per occupied voxel (spec.md
// §4.3). Callers that want a uniformly-random representative per voxel
// instead of "whichever the scan order put first" should shuffle points
// beforehand with ShuffleInPlace; the core keeps the first once shuffled.
func SubSampleFrame(points []Point, voxelSize float64) []Point {
	seen := make(map[voxelmap.Coords]struct{}, len(points))
	out := make([]Point, 0, len(points))
	for _, p := range points {
		key := voxelmap.Coords{
			I: ctlutils.VoxelKey(p.Raw.X, voxelSize),
			J: ctlutils.VoxelKey(p.Raw.Y, voxelSize),
			K: ctlutils.VoxelKey(p.Raw.Z, voxelSize),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// GridSampling is a convenience wrapper over SubSampleFrame that first
// copies and shuffles the input, used to select ICP keypoints (spec.md
// §4.3) so repeated calls on the same frame don't always keep the same
// spatial bias within each voxel.
func GridSampling(points []Point, voxelSize float64, r *rand.Rand) []Point {
	cp := make([]Point, len(points))
	copy(cp, points)
	ShuffleInPlace(cp, r)
	return SubSampleFrame(cp, voxelSize)
}

// ShuffleInPlace Fisher-Yates shuffles points using r.
func ShuffleInPlace(points []Point, r *rand.Rand) {
	r.Shuffle(len(points), func(i, j int) { points[i], points[j] = points[j], points[i] })
}

// InitialWorldPlacement seeds Point.World for every point in the frame
// from the motion guess (beginPose, endPose), per spec.md §4.3:
// world = slerp(q_begin, q_end, alpha)*raw + (1-alpha)*t_begin + alpha*t_end.
// This mutates points in place and is the ICP outer loop's starting guess.
func InitialWorldPlacement(points []Point, beginPose, endPose manifold.Pose) {
	for i := range points {
		p := &points[i]
		pose := manifold.Slerp(beginPose, endPose, p.Alpha)
		p.World = pose.Transform(p.Raw)
	}
}
