package lstsq

import "math"

// LossFunction is the tagged-variant robust loss of spec.md §4.4 / §9:
// a single weight(e^2) -> w method, with the solver multiplying the
// residual and Jacobian by sqrt(w). This mirrors the "single weight
// method" design note verbatim.
type LossFunction interface {
	Weight(sqNorm float64) float64
}

// L2Loss is the trivial (no-op) loss: every residual keeps unit weight.
type L2Loss struct{}

// Weight implements LossFunction.
func (L2Loss) Weight(float64) float64 { return 1 }

// CauchyLoss implements the Cauchy M-estimator, w(e^2) = 1 / (1 + e^2/sigma^2).
type CauchyLoss struct{ Sigma float64 }

// Weight implements LossFunction.
func (c CauchyLoss) Weight(sqNorm float64) float64 {
	s2 := c.Sigma * c.Sigma
	return 1 / (1 + sqNorm/s2)
}

// GemanMcClureLoss implements the Geman-McClure M-estimator,
// w(e^2) = sigma^2 / (sigma + e^2)^2, matching spec.md §9's supplemented
// closed form for the GM variant.
type GemanMcClureLoss struct{ Sigma float64 }

// Weight implements LossFunction.
func (g GemanMcClureLoss) Weight(sqNorm float64) float64 {
	denom := g.Sigma + sqNorm
	return (g.Sigma * g.Sigma) / (denom * denom)
}

// DCSLoss implements Dynamic Covariance Scaling,
// w(e^2) = min(1, 2*sigma / (sigma + e^2)).
type DCSLoss struct{ Sigma float64 }

// Weight implements LossFunction.
func (d DCSLoss) Weight(sqNorm float64) float64 {
	w := 2 * d.Sigma / (d.Sigma + sqNorm)
	return math.Min(1, w)
}

// L1Loss approximates the L1 (absolute value) loss with a smoothed weight,
// w(e^2) = 1/sqrt(max(e^2, eps)); used by the IMU gyro/accel factors of
// spec.md §4.5.
type L1Loss struct{}

// Weight implements LossFunction.
func (L1Loss) Weight(sqNorm float64) float64 {
	const eps = 1e-12
	if sqNorm < eps {
		return 1 / math.Sqrt(eps)
	}
	return 1 / math.Sqrt(sqNorm)
}

// LossByName resolves spec.md §6's p2p_loss_func config values.
func LossByName(name string, sigma float64) LossFunction {
	switch name {
	case "DCS":
		return DCSLoss{Sigma: sigma}
	case "CAUCHY":
		return CauchyLoss{Sigma: sigma}
	case "GM":
		return GemanMcClureLoss{Sigma: sigma}
	default:
		return L2Loss{}
	}
}
