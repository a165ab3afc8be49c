package manifold

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityTransform(t *testing.T) {
	id := Identity()
	pt := r3.Vector{X: 1, Y: 2, Z: 3}
	got := id.Transform(pt)
	assert.InDelta(t, pt.X, got.X, 1e-12)
	assert.InDelta(t, pt.Y, got.Y, 1e-12)
	assert.InDelta(t, pt.Z, got.Z, 1e-12)
}

func TestComposeInverseIsIdentity(t *testing.T) {
	p := NewPose(ExpSO3(r3.Vector{X: 0.3, Y: -0.2, Z: 0.1}), r3.Vector{X: 1, Y: -2, Z: 0.5})
	roundTrip := p.Compose(p.Inverse())
	assert.InDelta(t, 1.0, roundTrip.Rot.Real, 1e-9)
	assert.InDelta(t, 0.0, roundTrip.Trans.Norm(), 1e-9)
}

func TestExpLogRoundTrip(t *testing.T) {
	w := r3.Vector{X: 0.1, Y: 0.4, Z: -0.2}
	q := ExpSO3(w)
	back := LogSO3(q)
	assert.InDelta(t, w.X, back.X, 1e-9)
	assert.InDelta(t, w.Y, back.Y, 1e-9)
	assert.InDelta(t, w.Z, back.Z, 1e-9)
}

func TestOplusOminusRoundTrip(t *testing.T) {
	p := NewPose(ExpSO3(r3.Vector{X: 0.2, Y: 0, Z: 0}), r3.Vector{X: 1, Y: 0, Z: 0})
	xi := Vec6{Angular: r3.Vector{X: 0.05, Y: 0.02, Z: -0.01}, Linear: r3.Vector{X: 0.1, Y: -0.1, Z: 0.2}}
	moved := p.Oplus(xi)
	back := p.Ominus(moved)
	assert.InDelta(t, xi.Angular.X, back.Angular.X, 1e-9)
	assert.InDelta(t, xi.Angular.Y, back.Angular.Y, 1e-9)
	assert.InDelta(t, xi.Angular.Z, back.Angular.Z, 1e-9)
	assert.InDelta(t, xi.Linear.X, back.Linear.X, 1e-9)
	assert.InDelta(t, xi.Linear.Y, back.Linear.Y, 1e-9)
	assert.InDelta(t, xi.Linear.Z, back.Linear.Z, 1e-9)
}

func TestSlerpEndpoints(t *testing.T) {
	a := Identity()
	b := NewPose(ExpSO3(r3.Vector{X: 0, Y: 0, Z: math.Pi / 2}), r3.Vector{X: 2, Y: 0, Z: 0})
	require.InDelta(t, 0, Slerp(a, b, 0).Trans.Sub(a.Trans).Norm(), 1e-9)
	require.InDelta(t, 0, Slerp(a, b, 1).Trans.Sub(b.Trans).Norm(), 1e-9)
	mid := Slerp(a, b, 0.5)
	assert.InDelta(t, 1.0, mid.Trans.X, 1e-9)
}
