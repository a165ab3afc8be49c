package swf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/ctlio/ctlerrors"
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/trajectory"
)

func buildTrajectory(t *testing.T, n int) *trajectory.Trajectory {
	t.Helper()
	traj := trajectory.New(manifold.NewVec6(1e-2, 1e-2, 1e-2, 1e-2, 1e-2, 1e-2), manifold.Zero6())
	for i := 0; i < n; i++ {
		_, err := traj.Add(float64(i), manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
		require.NoError(t, err)
	}
	return traj
}

func TestEnrollKnotAddsAllVariablesActive(t *testing.T) {
	traj := buildTrajectory(t, 1)
	f := New(nil)
	k := traj.Knots()[0]
	f.EnrollKnot(k)
	assert.True(t, f.Problem().HasVariable(k.PoseVarID()))
	assert.True(t, f.Problem().HasVariable(k.VelocityVarID()))
	assert.True(t, f.Problem().HasVariable(k.AccelerationVarID()))
	assert.True(t, f.Problem().HasVariable(k.BiasVarID()))
	assert.Len(t, f.ActiveKnots(), 1)
}

func TestMarginalizeUpToPreservesCoverageInvariant(t *testing.T) {
	traj := buildTrajectory(t, 5)
	f := New(nil)
	for _, k := range traj.Knots() {
		f.EnrollKnot(k)
	}
	require.NoError(t, traj.AddPriorCostTerms(f.Problem()))
	termsBefore := f.Problem().NumCostTerms()
	require.Greater(t, termsBefore, 0)

	// cutoff=2 would normally drop knots at t=0,1,2, but keepAfter=2 means
	// the next frame begins at t=2, so a knot at or before 2 must survive.
	require.NoError(t, f.MarginalizeUpTo(2, 2))

	active := f.ActiveKnots()
	require.NotEmpty(t, active)
	assert.LessOrEqual(t, active[0].Time(), 2.0)
	for _, k := range active {
		assert.LessOrEqual(t, 2.0, k.Time()+1e-9)
	}
	assert.Less(t, f.Problem().NumCostTerms(), termsBefore)
}

func TestMarginalizeUpToNoopWhenCutoffBeforeAllKnots(t *testing.T) {
	traj := buildTrajectory(t, 3)
	f := New(nil)
	for _, k := range traj.Knots() {
		f.EnrollKnot(k)
	}
	require.NoError(t, f.MarginalizeUpTo(-1, 0))
	assert.Len(t, f.ActiveKnots(), 3)
}

func TestSnapshotSharesBasePriorNotTerms(t *testing.T) {
	traj := buildTrajectory(t, 2)
	f := New(nil)
	for _, k := range traj.Knots() {
		f.EnrollKnot(k)
	}
	require.NoError(t, traj.AddPriorCostTerms(f.Problem()))
	snap := f.Snapshot()
	assert.Equal(t, 0, snap.NumCostTerms())
	assert.True(t, snap.HasVariable(traj.Knots()[0].PoseVarID()))
}

func TestMarginalizeKnotRejectsUnknownVariableFatally(t *testing.T) {
	traj := buildTrajectory(t, 1)
	problem := lstsq.NewProblem()
	err := lstsq.MarginalizeVariable(problem, traj.Knots()[0].PoseVarID())
	require.Error(t, err)
	assert.True(t, ctlerrors.IsFatal(err))
}
