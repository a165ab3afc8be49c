package manifold

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// angleEpsilon below this magnitude a rotation vector is treated as zero;
// avoids a divide-by-zero when normalizing the rotation axis.
const angleEpsilon = 1e-9

// Pose is a rigid transform in SE(3), stored as a unit quaternion rotation
// plus a translation. It is used throughout this engine wherever spec.md
// writes T_rm, T_ms, T_sr, or T_mi.
type Pose struct {
	Rot   quat.Number
	Trans r3.Vector
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{Rot: quat.Number{Real: 1}, Trans: r3.Vector{}}
}

// NewPose builds a pose from an already-normalized rotation quaternion and a
// translation.
func NewPose(rot quat.Number, trans r3.Vector) Pose {
	return Pose{Rot: normalizeQuat(rot), Trans: trans}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// Compose returns p * o, i.e. the transform that first applies o then p.
func (p Pose) Compose(o Pose) Pose {
	return Pose{
		Rot:   normalizeQuat(quat.Mul(p.Rot, o.Rot)),
		Trans: p.Transform(o.Trans),
	}
}

// Inverse returns the inverse transform.
func (p Pose) Inverse() Pose {
	invRot := quat.Conj(p.Rot)
	return Pose{
		Rot:   invRot,
		Trans: rotate(invRot, p.Trans.Mul(-1)),
	}
}

// Transform applies the pose to a point: p.Rot*pt + p.Trans.
func (p Pose) Transform(pt r3.Vector) r3.Vector {
	return rotate(p.Rot, pt).Add(p.Trans)
}

// TransformDirection applies only the rotation, for direction/velocity
// vectors that do not carry a translation component.
func (p Pose) TransformDirection(v r3.Vector) r3.Vector {
	return rotate(p.Rot, v)
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Oplus retracts the pose along a body-frame tangent vector xi = (angular,
// linear), applying a left SO(3) perturbation to the rotation and a plain
// additive update to the translation. This matches the "SE(3)×R^6×R^6"
// state-space phrasing of spec §4.2: rotation and translation are treated
// as a direct product, not a coupled SE(3) exponential, so no V(theta)
// coupling matrix is needed.
func (p Pose) Oplus(xi Vec6) Pose {
	dq := ExpSO3(xi.Angular)
	return Pose{
		Rot:   normalizeQuat(quat.Mul(dq, p.Rot)),
		Trans: p.Trans.Add(xi.Linear),
	}
}

// Ominus returns the tangent vector xi such that p.Oplus(xi) == o, i.e. the
// local coordinates of o relative to p (o boxminus p).
func (p Pose) Ominus(o Pose) Vec6 {
	dq := quat.Mul(o.Rot, quat.Conj(p.Rot))
	return Vec6{
		Angular: LogSO3(dq),
		Linear:  o.Trans.Sub(p.Trans),
	}
}

// ExpSO3 is the SO(3) exponential map: an angular velocity/axis-angle
// 3-vector (magnitude = angle in radians) to a unit rotation quaternion.
func ExpSO3(w r3.Vector) quat.Number {
	theta := w.Norm()
	if theta < angleEpsilon {
		// first-order approximation avoids the 0/0 in the axis normalization
		return normalizeQuat(quat.Number{Real: 1, Imag: w.X / 2, Jmag: w.Y / 2, Kmag: w.Z / 2})
	}
	half := theta / 2
	s := math.Sin(half) / theta
	return quat.Number{Real: math.Cos(half), Imag: w.X * s, Jmag: w.Y * s, Kmag: w.Z * s}
}

// LogSO3 is the SO(3) logarithm map: a unit rotation quaternion to an
// axis-angle 3-vector.
func LogSO3(q quat.Number) r3.Vector {
	q = normalizeQuat(q)
	if q.Real < 0 {
		q = quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
	}
	vNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if vNorm < angleEpsilon {
		return r3.Vector{X: 2 * q.Imag, Y: 2 * q.Jmag, Z: 2 * q.Kmag}
	}
	theta := 2 * math.Atan2(vNorm, q.Real)
	s := theta / vNorm
	return r3.Vector{X: q.Imag * s, Y: q.Jmag * s, Z: q.Kmag * s}
}

// RotationMatrix returns the 3x3 rotation matrix equivalent of p.Rot, row
// major, for callers (the trajectory writer, odom's summary) that need it directly rather than
// rotating individual vectors.
func (p Pose) RotationMatrix() [3][3]float64 {
	q := normalizeQuat(p.Rot)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// NewPoseFromMatrix builds a pose from a 3x3 rotation matrix and a
// translation, using Shepperd's method so the largest denominator is always
// used regardless of the matrix's trace sign. Used to decode the row-major
// wire form of T_sr (spec.md §6) into a Pose.
func NewPoseFromMatrix(rot [3][3]float64, trans r3.Vector) Pose {
	m00, m01, m02 := rot[0][0], rot[0][1], rot[0][2]
	m10, m11, m12 := rot[1][0], rot[1][1], rot[1][2]
	m20, m21, m22 := rot[2][0], rot[2][1], rot[2][2]

	trace := m00 + m11 + m22
	var q quat.Number
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{
			Real: s / 4,
			Imag: (m21 - m12) / s,
			Jmag: (m02 - m20) / s,
			Kmag: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: s / 4,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: s / 4,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: s / 4,
		}
	}
	return NewPose(q, trans)
}

// Slerp spherically interpolates the rotation of two poses at alpha in
// [0,1] and linearly interpolates translation, matching the initial
// world-placement rule of spec §4.3.
func Slerp(a, b Pose, alpha float64) Pose {
	return Pose{
		Rot:   slerpQuat(a.Rot, b.Rot, alpha),
		Trans: a.Trans.Mul(1 - alpha).Add(b.Trans.Mul(alpha)),
	}
}

func slerpQuat(a, b quat.Number, alpha float64) quat.Number {
	a, b = normalizeQuat(a), normalizeQuat(b)
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Number{Real: -b.Real, Imag: -b.Imag, Jmag: -b.Jmag, Kmag: -b.Kmag}
		dot = -dot
	}
	if dot > 0.9995 {
		// nearly colinear: fall back to normalized lerp
		q := quat.Number{
			Real: a.Real + alpha*(b.Real-a.Real),
			Imag: a.Imag + alpha*(b.Imag-a.Imag),
			Jmag: a.Jmag + alpha*(b.Jmag-a.Jmag),
			Kmag: a.Kmag + alpha*(b.Kmag-a.Kmag),
		}
		return normalizeQuat(q)
	}
	theta0 := math.Acos(dot)
	theta := theta0 * alpha
	sinTheta0 := math.Sin(theta0)
	s0 := math.Cos(theta) - dot*math.Sin(theta)/sinTheta0
	s1 := math.Sin(theta) / sinTheta0
	return quat.Number{
		Real: s0*a.Real + s1*b.Real,
		Imag: s0*a.Imag + s1*b.Imag,
		Jmag: s0*a.Jmag + s1*b.Jmag,
		Kmag: s0*a.Kmag + s1*b.Kmag,
	}
}
