// Package scan holds the per-frame sensor data model (spec.md §3): points,
// frames, and the preprocessing operations (voxel downsampling, initial
// world placement) that run before ICP. It mirrors the shape of the
// teacher's pointcloud.Point / pointcloud.PointCloud split, adapted to a
// continuous-time LIDAR frame instead of a static cloud.
package scan

import "github.com/golang/geo/r3"

// Point is one LIDAR return within a Frame. Raw is in sensor frame; World
// is derived by the trajectory as World = R(alpha)*Raw + t(alpha), per the
// invariant of spec.md §3.
type Point struct {
	Raw       r3.Vector
	World     r3.Vector
	Timestamp float64 // absolute seconds
	Alpha     float64 // normalized in-frame timestamp, [0,1]
	BeamID    int
	Aux       float64 // radial velocity or intensity, sensor-dependent
}
