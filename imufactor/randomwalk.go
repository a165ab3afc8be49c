package imufactor

import (
	"math"

	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/trajectory"
)

// biasRWTerm is the bias random-walk factor of spec.md §4.5: e_b = bias_i -
// bias_{i+1}, cov = q_imu*I6.
type biasRWTerm struct {
	knotA, knotB *trajectory.Knot
	qImu         float64
}

func (b *biasRWTerm) Vars() []lstsq.VarID {
	return []lstsq.VarID{b.knotA.BiasVarID(), b.knotB.BiasVarID()}
}
func (b *biasRWTerm) Dim() int                { return 6 }
func (b *biasRWTerm) Loss() lstsq.LossFunction { return nil }
func (b *biasRWTerm) Residual() []float64 {
	e := b.knotA.Bias().Sub(b.knotB.Bias()).Slice()
	res := make([]float64, 6)
	for i := range res {
		res[i] = e[i] / math.Sqrt(b.qImu)
	}
	return res
}

// tmiRWTerm is the T_mi random-walk factor of spec.md §4.5: e =
// log(T_mi,{i+1} . T_mi,i^-1), cov = diag(qg_diag). Only added when T_mi is
// not locked to ground truth and not init-only (spec.md §9).
type tmiRWTerm struct {
	knotA, knotB *trajectory.Knot
	qgDiag       [6]float64
}

func (tm *tmiRWTerm) Vars() []lstsq.VarID {
	return []lstsq.VarID{tm.knotA.TmiVarID(), tm.knotB.TmiVarID()}
}
func (tm *tmiRWTerm) Dim() int                { return 6 }
func (tm *tmiRWTerm) Loss() lstsq.LossFunction { return nil }
func (tm *tmiRWTerm) Residual() []float64 {
	e := tm.knotA.Tmi().Ominus(tm.knotB.Tmi()).Slice()
	res := make([]float64, 6)
	for i := range res {
		res[i] = e[i] / math.Sqrt(tm.qgDiag[i])
	}
	return res
}
