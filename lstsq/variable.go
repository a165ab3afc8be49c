// Package lstsq is the thin nonlinear-least-squares solver spec.md §1
// treats as an assumed external library: a generic Gauss-Newton solve over
// tangent-space variables, robust loss functions, and the sliding-window
// snapshot mechanism §4.6 needs. It knows nothing about SE(3), IMUs, or
// point clouds — those live in trajectory/icp/imufactor and only depend on
// this package through the Retractable/CostTerm interfaces.
package lstsq

// VarID identifies a state variable (a knot's pose, velocity, acceleration,
// bias, or T_mi block) inside a Problem. Per the design note in spec.md §9,
// factors store VarIDs rather than raw references, so marginalization can
// retarget the "active window" without touching factor objects.
type VarID int64

// Retractable is anything a Gauss-Newton step can perturb: a local
// (tangent-space) delta is applied via Retract, and Value/SetValue let the
// solver snapshot and restore state around a numeric-differentiation probe
// without needing to know the concrete type (manifold.Pose, manifold.Vec6,
// ...) it wraps.
type Retractable interface {
	// Dim is the tangent-space dimension of this variable.
	Dim() int
	// Retract applies delta (len == Dim()) in local coordinates, in place.
	Retract(delta []float64)
	// Value returns an opaque snapshot of the current state.
	Value() interface{}
	// SetValue restores a snapshot previously returned by Value.
	SetValue(v interface{})
}

// variable is a registered Retractable plus bookkeeping the solver needs:
// its offset into the stacked normal-equation vector.
type variable struct {
	id     VarID
	r      Retractable
	offset int // unused: layout() returns offsets in a separate map instead
}
