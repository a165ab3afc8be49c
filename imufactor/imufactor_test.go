package imufactor

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/trajectory"
)

func newTestTrajectory(t *testing.T) (*trajectory.Trajectory, *trajectory.Knot, *trajectory.Knot) {
	t.Helper()
	traj := trajectory.New(manifold.NewVec6(1e-2, 1e-2, 1e-2, 1e-2, 1e-2, 1e-2), manifold.Zero6())
	kA, err := traj.Add(0, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), false)
	require.NoError(t, err)
	kB, err := traj.Add(1, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), false)
	require.NoError(t, err)
	return traj, kA, kB
}

func TestNewGyroTermRejectsSampleOutsideKnotSpan(t *testing.T) {
	traj, _, _ := newTestTrajectory(t)
	_, err := NewGyroTerm(traj, Sample{Timestamp: 5}, [3]float64{1, 1, 1})
	require.Error(t, err)
}

func TestGyroResidualZeroForStationaryTrajectory(t *testing.T) {
	traj, _, _ := newTestTrajectory(t)
	term, err := NewGyroTerm(traj, Sample{Timestamp: 0.5, AngVel: r3.Vector{}}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	for _, e := range term.Residual() {
		assert.InDelta(t, 0, e, 1e-9)
	}
	assert.Len(t, term.Vars(), 7)
	assert.Equal(t, 3, term.Dim())
}

func TestAccelResidualMatchesGravityWhenStationary(t *testing.T) {
	traj, _, _ := newTestTrajectory(t)
	term, err := NewAccelTerm(traj, Sample{Timestamp: 0.5, LinAcc: r3.Vector{Z: 9.81}}, -9.81, [3]float64{1, 1, 1})
	require.NoError(t, err)
	for _, e := range term.Residual() {
		assert.InDelta(t, 0, e, 1e-9)
	}
	assert.Len(t, term.Vars(), 8)
}

func TestBiasRandomWalkZeroWhenBiasesEqual(t *testing.T) {
	_, kA, kB := newTestTrajectory(t)
	rw := &biasRWTerm{knotA: kA, knotB: kB, qImu: 1e-3}
	for _, e := range rw.Residual() {
		assert.InDelta(t, 0, e, 1e-9)
	}
	assert.ElementsMatch(t, []lstsq.VarID{kA.BiasVarID(), kB.BiasVarID()}, rw.Vars())
}

func TestTmiRandomWalkZeroWhenTmiEqual(t *testing.T) {
	_, kA, kB := newTestTrajectory(t)
	rw := &tmiRWTerm{knotA: kA, knotB: kB, qgDiag: [6]float64{1, 1, 1, 1, 1, 1}}
	for _, e := range rw.Residual() {
		assert.InDelta(t, 0, e, 1e-9)
	}
}

func TestAddIMUCostTermsSkipsSamplesWithMarginalizedKnots(t *testing.T) {
	traj, kA, kB := newTestTrajectory(t)
	problem := lstsq.NewProblem()
	kA.EnrollActive(problem)
	kB.EnrollActive(problem)

	params := Params{
		UseIMU: true, UseAccel: true,
		RImuAcc: [3]float64{1, 1, 1}, RImuAng: [3]float64{1, 1, 1},
		QImu: 1e-3, Gravity: -9.81, QgDiag: [6]float64{1, 1, 1, 1, 1, 1},
	}
	samples := []Sample{{Timestamp: 0.5, LinAcc: r3.Vector{Z: 9.81}}}
	require.NoError(t, AddIMUCostTerms(problem, traj, samples, params))
	assert.Equal(t, 4, problem.NumCostTerms())

	stale := lstsq.NewProblem()
	require.NoError(t, AddIMUCostTerms(stale, traj, samples, params))
	assert.Equal(t, 0, stale.NumCostTerms())
}

func TestAddIMUCostTermsNoopWhenDisabled(t *testing.T) {
	traj, _, _ := newTestTrajectory(t)
	problem := lstsq.NewProblem()
	require.NoError(t, AddIMUCostTerms(problem, traj, []Sample{{Timestamp: 0.5}}, Params{UseIMU: false}))
	assert.Equal(t, 0, problem.NumCostTerms())
}

func TestAddInitialPriorsWiresAllFiveFactors(t *testing.T) {
	traj, kA, _ := newTestTrajectory(t)
	problem := lstsq.NewProblem()
	kA.EnrollActive(problem)
	params := Params{P0Imu: 1e-2}
	require.NoError(t, AddInitialPriors(problem, traj, kA, params))
	assert.Equal(t, 5, problem.NumCostTerms())
}

func TestAddInitialPriorsSkipsTmiWhenLocked(t *testing.T) {
	traj := trajectory.New(manifold.NewVec6(1e-2, 1e-2, 1e-2, 1e-2, 1e-2, 1e-2), manifold.Zero6())
	k, err := traj.Add(0, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)
	problem := lstsq.NewProblem()
	k.EnrollActive(problem)
	require.NoError(t, AddInitialPriors(problem, traj, k, Params{P0Imu: 1e-2}))
	assert.Equal(t, 4, problem.NumCostTerms())
}
