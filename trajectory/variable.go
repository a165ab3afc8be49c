package trajectory

import "go.viam.com/ctlio/manifold"

// PoseVariable is the lstsq.Retractable wrapper around a manifold.Pose,
// perturbed via Oplus/Ominus so the solver only ever sees a 6-D tangent
// space regardless of the underlying quaternion parameterization.
type PoseVariable struct {
	pose manifold.Pose
}

// NewPoseVariable wraps an initial pose value.
func NewPoseVariable(p manifold.Pose) *PoseVariable {
	return &PoseVariable{pose: p}
}

// Dim implements lstsq.Retractable.
func (p *PoseVariable) Dim() int { return 6 }

// Retract implements lstsq.Retractable.
func (p *PoseVariable) Retract(delta []float64) {
	p.pose = p.pose.Oplus(manifold.Vec6FromSlice(delta))
}

// Value implements lstsq.Retractable.
func (p *PoseVariable) Value() interface{} { return p.pose }

// SetValue implements lstsq.Retractable.
func (p *PoseVariable) SetValue(v interface{}) { p.pose = v.(manifold.Pose) }

// Pose returns the current value.
func (p *PoseVariable) Pose() manifold.Pose { return p.pose }

// Vec6Variable is the lstsq.Retractable wrapper around a manifold.Vec6
// (velocity, acceleration, or bias), perturbed by plain addition.
type Vec6Variable struct {
	v manifold.Vec6
}

// NewVec6Variable wraps an initial vector value.
func NewVec6Variable(v manifold.Vec6) *Vec6Variable {
	return &Vec6Variable{v: v}
}

// Dim implements lstsq.Retractable.
func (v *Vec6Variable) Dim() int { return 6 }

// Retract implements lstsq.Retractable.
func (v *Vec6Variable) Retract(delta []float64) {
	v.v = v.v.Add(manifold.Vec6FromSlice(delta))
}

// Value implements lstsq.Retractable.
func (v *Vec6Variable) Value() interface{} { return v.v }

// SetValue implements lstsq.Retractable.
func (v *Vec6Variable) SetValue(x interface{}) { v.v = x.(manifold.Vec6) }

// Vec6 returns the current value.
func (v *Vec6Variable) Vec6() manifold.Vec6 { return v.v }
