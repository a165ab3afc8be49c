package trajectory

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/ctlio/manifold"
)

func qcDefault() manifold.Vec6 {
	return manifold.NewVec6(1e-2, 1e-2, 1e-2, 1e-2, 1e-2, 1e-2)
}

func TestAddRejectsNonMonotonicTime(t *testing.T) {
	traj := New(qcDefault(), manifold.Zero6())
	_, err := traj.Add(1.0, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)
	_, err = traj.Add(1.0, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	assert.Error(t, err)
	_, err = traj.Add(0.5, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	assert.Error(t, err)
}

func TestEvaluateAtKnotTimeIsExact(t *testing.T) {
	traj := New(qcDefault(), manifold.Zero6())
	poseA := manifold.NewPose(manifold.ExpSO3(r3.Vector{X: 0.1}), r3.Vector{X: 1, Y: 2, Z: 3})
	velA := manifold.NewVec6(0, 0, 0.2, 0.5, 0, 0)
	accA := manifold.NewVec6(0, 0, 0, 0.1, 0, 0)
	_, err := traj.Add(0.0, poseA, velA, accA, manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)

	poseB := manifold.NewPose(manifold.ExpSO3(r3.Vector{X: 0.2}), r3.Vector{X: 2, Y: 2, Z: 3})
	velB := manifold.NewVec6(0, 0, 0.3, 0.6, 0, 0)
	accB := manifold.NewVec6(0, 0, 0, 0.15, 0, 0)
	_, err = traj.Add(1.0, poseB, velB, accB, manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)

	atA := traj.Evaluate(0.0)
	assert.InDelta(t, 0, poseA.Ominus(atA.Pose()).Norm(), 1e-9)
	assert.InDelta(t, 0, velA.Sub(atA.Velocity()).Norm(), 1e-9)

	atB := traj.Evaluate(1.0)
	assert.InDelta(t, 0, poseB.Ominus(atB.Pose()).Norm(), 1e-6)
	assert.InDelta(t, 0, velB.Sub(atB.Velocity()).Norm(), 1e-6)
}

func TestEvaluateOutsideSpanClampsToBoundary(t *testing.T) {
	traj := New(qcDefault(), manifold.Zero6())
	poseA := manifold.NewPose(manifold.ExpSO3(r3.Vector{}), r3.Vector{X: 1})
	_, err := traj.Add(0.0, poseA, manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)
	poseB := manifold.NewPose(manifold.ExpSO3(r3.Vector{}), r3.Vector{X: 2})
	_, err = traj.Add(1.0, poseB, manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)

	before := traj.Evaluate(-5.0)
	assert.InDelta(t, 1, before.Pose().Trans.X, 1e-9)
	after := traj.Evaluate(5.0)
	assert.InDelta(t, 2, after.Pose().Trans.X, 1e-9)
}

func TestInteriorTranslationLiesBetweenKnots(t *testing.T) {
	traj := New(qcDefault(), manifold.Zero6())
	poseA := manifold.NewPose(manifold.ExpSO3(r3.Vector{}), r3.Vector{X: 0})
	poseB := manifold.NewPose(manifold.ExpSO3(r3.Vector{}), r3.Vector{X: 10})
	velZero := manifold.Zero6()
	_, err := traj.Add(0.0, poseA, velZero, velZero, manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)
	_, err = traj.Add(2.0, poseB, velZero, velZero, manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)

	mid := traj.Evaluate(1.0)
	assert.True(t, mid.Pose().Trans.X > 0 && mid.Pose().Trans.X < 10)
}

func TestSingerModelDegeneratesToWnojForZeroDecay(t *testing.T) {
	dt := 0.5
	wnoj := wnojModel{qc: 0.1}
	singer := singerModel{qc: 0.1, ad: 0}
	pw := wnoj.phi(dt)
	ps := singer.phi(dt)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, pw.At(r, c), ps.At(r, c), 1e-9)
		}
	}
	qw := wnoj.q(dt)
	qs := singer.q(dt)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, qw.At(r, c), qs.At(r, c), 1e-6)
		}
	}
}
