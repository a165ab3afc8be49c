// Package manifold provides the thin SE(3)/SO(3) wrapper this engine treats
// as the "external math library" of spec §1: a pose type, tangent-space
// vectors, and the retraction/log operations the trajectory and solver
// packages build on. It intentionally does not attempt to be a general
// robotics manifold library; see spatialmath in the retrieval pack for that.
package manifold

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vec6 is a 6-dimensional body-frame vector split into an angular and a
// linear half, matching the ω / α̇ 6-vectors of the data model (§3).
type Vec6 struct {
	Angular r3.Vector
	Linear  r3.Vector
}

// Zero6 returns the zero Vec6.
func Zero6() Vec6 {
	return Vec6{}
}

// NewVec6 builds a Vec6 from six scalar components (angular xyz, linear xyz).
func NewVec6(wx, wy, wz, vx, vy, vz float64) Vec6 {
	return Vec6{
		Angular: r3.Vector{X: wx, Y: wy, Z: wz},
		Linear:  r3.Vector{X: vx, Y: vy, Z: vz},
	}
}

// Add returns the component-wise sum of two Vec6.
func (v Vec6) Add(o Vec6) Vec6 {
	return Vec6{Angular: v.Angular.Add(o.Angular), Linear: v.Linear.Add(o.Linear)}
}

// Sub returns the component-wise difference v - o.
func (v Vec6) Sub(o Vec6) Vec6 {
	return Vec6{Angular: v.Angular.Sub(o.Angular), Linear: v.Linear.Sub(o.Linear)}
}

// Scale returns v scaled by s.
func (v Vec6) Scale(s float64) Vec6 {
	return Vec6{Angular: v.Angular.Mul(s), Linear: v.Linear.Mul(s)}
}

// Slice flattens v into a 6-element slice, angular first, matching the
// tangent-space ordering used by every Jacobian in this package.
func (v Vec6) Slice() []float64 {
	return []float64{v.Angular.X, v.Angular.Y, v.Angular.Z, v.Linear.X, v.Linear.Y, v.Linear.Z}
}

// Vec6FromSlice is the inverse of Slice.
func Vec6FromSlice(s []float64) Vec6 {
	return Vec6{
		Angular: r3.Vector{X: s[0], Y: s[1], Z: s[2]},
		Linear:  r3.Vector{X: s[3], Y: s[4], Z: s[5]},
	}
}

// Norm returns the Euclidean norm of the flattened 6-vector.
func (v Vec6) Norm() float64 {
	a, l := v.Angular, v.Linear
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z + l.X*l.X + l.Y*l.Y + l.Z*l.Z)
}
