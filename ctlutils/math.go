// Package ctlutils collects small numeric helpers shared across the
// odometry engine's packages, in the spirit of the teacher's own grab-bag
// utils package.
package ctlutils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Square avoids the overhead of math.Pow for the common x*x case.
func Square(x float64) float64 {
	return x * x
}

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// VoxelKey is the signed-truncation voxel key of spec.md §3/§9: truncation
// toward zero, not floor. This intentionally maps points in (-size, 0) and
// [0, size) to the same key 0; spec §9 calls this out explicitly as a known
// asymmetry to preserve rather than "fix" with floor().
func VoxelKey(x, size float64) int64 {
	return int64(x / size)
}
