package trajectory

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// gpModel supplies the per-DOF transition and process-noise closed forms a
// GP prior needs: constant-acceleration (white-noise-on-jerk) or Singer
// (first-order Markov acceleration), per spec.md §4.2/§9. Both are 3-state
// scalar systems (position, velocity, acceleration) in a single DOF's local
// tangent coordinate.
type gpModel interface {
	phi(dt float64) *mat.Dense
	q(dt float64) *mat.Dense
}

// wnojModel is the constant-acceleration (white-noise-on-jerk) prior: a
// triple integrator driven by white noise on the jerk, spectral density qc.
type wnojModel struct{ qc float64 }

func (m wnojModel) phi(dt float64) *mat.Dense { return wnojPhi(dt) }
func (m wnojModel) q(dt float64) *mat.Dense   { return wnojQ(dt, m.qc) }

// wnojPhi is the closed-form transition matrix of the triple integrator.
func wnojPhi(dt float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, dt, dt * dt / 2,
		0, 1, dt,
		0, 0, 1,
	})
}

// wnojQ is the closed-form process-noise covariance accumulated over an
// interval dt under power spectral density q, the standard triple-integrator
// result (Barfoot, "State Estimation for Robotics" §3.2).
func wnojQ(dt, q float64) *mat.Dense {
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	dt5 := dt4 * dt
	return mat.NewDense(3, 3, []float64{
		q * dt5 / 20, q * dt4 / 8, q * dt3 / 6,
		q * dt4 / 8, q * dt3 / 3, q * dt2 / 2,
		q * dt3 / 6, q * dt2 / 2, q * dt,
	})
}

// singerModel is the Singer(1970) first-order-Markov-acceleration prior
// with decay rate ad; it degenerates to wnojModel as ad -> 0.
type singerModel struct{ qc, ad float64 }

func (m singerModel) phi(dt float64) *mat.Dense { return singerPhi(dt, m.ad) }
func (m singerModel) q(dt float64) *mat.Dense   { return singerQ(dt, m.ad, m.qc) }

// singerAdEpsilon below this decay*interval product, the Singer transition
// matrix is numerically indistinguishable from the WNOJ one and the exact
// exponential form loses precision (0/0 in the ad^2 denominator).
const singerAdEpsilon = 1e-4

func singerPhi(dt, ad float64) *mat.Dense {
	if math.Abs(ad*dt) < singerAdEpsilon {
		return wnojPhi(dt)
	}
	eadt := math.Exp(-ad * dt)
	return mat.NewDense(3, 3, []float64{
		1, dt, (ad*dt - 1 + eadt) / (ad * ad),
		0, 1, (1 - eadt) / ad,
		0, 0, eadt,
	})
}

// singerQ integrates the Singer process-noise covariance
// Q(dt) = integral_0^dt Phi(dt-s) L qc L^T Phi(dt-s)^T ds by Simpson's rule
// rather than the closed algebraic form: L qc L^T is zero except its (2,2)
// entry, so the integrand at each s is qc times the outer product of
// Phi(dt-s)'s third column with itself, a smooth function Simpson
// integrates to machine precision with a modest fixed step count.
func singerQ(dt, ad, qc float64) *mat.Dense {
	if dt <= 0 {
		return mat.NewDense(3, 3, nil)
	}
	const n = 64 // even, for Simpson's composite rule
	h := dt / n
	acc := mat.NewDense(3, 3, nil)
	for i := 0; i <= n; i++ {
		s := float64(i) * h
		phi := singerPhi(dt-s, ad)
		col := [3]float64{phi.At(0, 2), phi.At(1, 2), phi.At(2, 2)}
		w := 2.0
		switch {
		case i == 0 || i == n:
			w = 1
		case i%2 == 1:
			w = 4
		}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				acc.Set(r, c, acc.At(r, c)+w*col[r]*col[c])
			}
		}
	}
	acc.Scale(qc*h/3, acc)
	return acc
}

// gpInterpCoeffs returns the Anderson & Barfoot closed-form interpolation
// coefficients for an interior time tau in [0, dt]: x(tau) = Lambda*xA +
// Omega*xB exactly reproduces xA at tau=0 and xB at tau=dt for any model
// whose q(0) is singular (handled by the dt<=0 guard in the caller).
func gpInterpCoeffs(model gpModel, dt, tau float64) (lambda, omega *mat.Dense) {
	phiTau := model.phi(tau)
	phiDt := model.phi(dt)
	phiRem := model.phi(dt - tau)
	qTau := model.q(tau)
	qDt := model.q(dt)

	symQDt := mat.NewSymDense(3, nil)
	for r := 0; r < 3; r++ {
		for c := r; c < 3; c++ {
			symQDt.SetSym(r, c, qDt.At(r, c))
		}
	}
	var qDtInv mat.Dense
	if err := qDtInv.Inverse(symQDt); err != nil {
		// dt effectively zero (duplicate knot times): identity/zero limit.
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), mat.NewDense(3, 3, nil)
	}

	var phiRemT mat.Dense
	phiRemT.CloneFrom(phiRem.T())

	omega = mat.NewDense(3, 3, nil)
	omega.Mul(qTau, &phiRemT)
	omega.Mul(omega, &qDtInv)

	var omegaPhiDt mat.Dense
	omegaPhiDt.Mul(omega, phiDt)

	lambda = mat.NewDense(3, 3, nil)
	lambda.Sub(phiTau, &omegaPhiDt)
	return lambda, omega
}

// whiten3 solves L w = e for w via the Cholesky factor of the symmetric
// positive-definite 3x3 matrix cov, giving w^T w = e^T cov^-1 e. Falls back
// to the raw residual if cov is singular (a duplicate-knot-time degenerate
// interval, already rejected by Trajectory.Add in the non-degenerate path).
func whiten3(cov *mat.Dense, e [3]float64) [3]float64 {
	sym := mat.NewSymDense(3, nil)
	for r := 0; r < 3; r++ {
		for c := r; c < 3; c++ {
			sym.SetSym(r, c, cov.At(r, c))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return e
	}
	var l mat.TriDense
	chol.LTo(&l)
	var w [3]float64
	for i := 0; i < 3; i++ {
		sum := e[i]
		for k := 0; k < i; k++ {
			sum -= l.At(i, k) * w[k]
		}
		w[i] = sum / l.At(i, i)
	}
	return w
}
