package lstsq

// CostTerm is one factor in the graph: a residual over a fixed set of
// variables, with an optional robust loss. Implementations live in
// trajectory (GP prior, pose/velocity/acceleration priors), imufactor
// (gyro/accel/bias-RW/T_mi-RW), and icp (point-to-plane).
type CostTerm interface {
	// Vars lists the VarIDs this term reads. The solver only differentiates
	// with respect to variables that are both here and registered active in
	// the Problem; a reference to a marginalized variable is a bug in the
	// caller, not something this package resolves.
	Vars() []VarID
	// Residual evaluates e(x) at the variables' current values. Dim() must
	// equal len(Residual()).
	Residual() []float64
	Dim() int
	// Loss returns the robust loss to apply, or nil for plain L2.
	Loss() LossFunction
}
