package scan

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/ctlio/manifold"
)

// State is the per-frame lifecycle of spec.md §4.8.
type State int

// Frame lifecycle states, in the order spec.md §4.8 transitions through
// them. MARGINALIZED is terminal and reached asynchronously, once frame
// i+delay_adding_points+1 arrives.
const (
	Ingress State = iota
	Downsampled
	Initialized
	ICPIterating
	SWFSolved
	Committed
	Marginalized
)

func (s State) String() string {
	switch s {
	case Ingress:
		return "INGRESS"
	case Downsampled:
		return "DOWNSAMPLED"
	case Initialized:
		return "INITIALIZED"
	case ICPIterating:
		return "ICP_ITERATING"
	case SWFSolved:
		return "SWF_SOLVED"
	case Committed:
		return "COMMITTED"
	case Marginalized:
		return "MARGINALIZED"
	default:
		return "UNKNOWN"
	}
}

// Frame is one incoming scan, per spec.md §3. Points is cleared (set to
// nil) once its points have been folded into the voxel map, since after
// that the frame only needs its poses/state for trajectory reporting.
type Frame struct {
	Index int
	State State

	BeginTime float64
	EndTime   float64
	EvalTime  float64

	BeginPose manifold.Pose
	EndPose   manifold.Pose
	MidPose   manifold.Pose

	MidVelocity     manifold.Vec6
	MidAcceleration manifold.Vec6
	Bias            manifold.Vec6
	Tmi             manifold.Pose

	// Covariance is the 18x18 marginal state covariance at MidPose's time,
	// ordered (pose 6, velocity 6, acceleration 6); nil until a solve has
	// populated it.
	Covariance *mat.SymDense

	Points []Point

	// Success records whether ICP registration converged for this frame;
	// a false value means the map was not updated for it (spec.md §4.4).
	Success bool
}

// New creates a frame at the given index with begin/end/eval timestamps
// already known from the incoming point set.
func New(index int, begin, end, eval float64) *Frame {
	return &Frame{Index: index, BeginTime: begin, EndTime: end, EvalTime: eval, State: Ingress}
}

// ClearPoints drops the frame's point buffer once they've been folded into
// the map; the frame's poses remain valid for trajectory reporting.
func (f *Frame) ClearPoints() {
	f.Points = nil
}
