package icp

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/scan"
	"go.viam.com/ctlio/trajectory"
	"go.viam.com/ctlio/voxelmap"
)

func TestFitPlaneOnFlatPatchIsHighlyPlanar(t *testing.T) {
	var pts []r3.Vector
	for x := -1.0; x <= 1.0; x += 0.25 {
		for y := -1.0; y <= 1.0; y += 0.25 {
			pts = append(pts, r3.Vector{X: x, Y: y, Z: 0})
		}
	}
	nb, ok := FitPlane(pts)
	require.True(t, ok)
	assert.InDelta(t, 1.0, nb.Planarity, 0.05)
	assert.InDelta(t, 1.0, math.Abs(nb.Normal.Z), 1e-6)
}

func TestFitPlaneOnSphereIsNotPlanar(t *testing.T) {
	var pts []r3.Vector
	const n = 200
	for i := 0; i < n; i++ {
		theta := math.Acos(1 - 2*float64(i)/float64(n))
		phi := math.Pi * (1 + math.Sqrt(5)) * float64(i)
		pts = append(pts, r3.Vector{
			X: math.Sin(theta) * math.Cos(phi),
			Y: math.Sin(theta) * math.Sin(phi),
			Z: math.Cos(theta),
		})
	}
	nb, ok := FitPlane(pts)
	require.True(t, ok)
	assert.Less(t, nb.Planarity, 0.3)
}

func TestFitPlaneEmptyReturnsFalse(t *testing.T) {
	_, ok := FitPlane(nil)
	assert.False(t, ok)
}

func TestAssociateSkipsSparseAndFarKeypoints(t *testing.T) {
	m := voxelmap.New(1.0, 20, 0.05)
	var floor []r3.Vector
	for x := -2.0; x <= 2.0; x += 0.3 {
		for y := -2.0; y <= 2.0; y += 0.3 {
			floor = append(floor, r3.Vector{X: x, Y: y, Z: 0})
		}
	}
	m.Add(floor)

	traj := trajectory.New(manifold.NewVec6(1e-2, 1e-2, 1e-2, 1e-2, 1e-2, 1e-2), manifold.Zero6())
	_, err := traj.Add(0, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)
	_, err = traj.Add(1, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)

	onPlane := scan.Point{Raw: r3.Vector{X: 0, Y: 0, Z: 0.01}, World: r3.Vector{X: 0, Y: 0, Z: 0.01}, Timestamp: 0.5}
	farAway := scan.Point{Raw: r3.Vector{X: 100, Y: 100, Z: 50}, World: r3.Vector{X: 100, Y: 100, Z: 50}, Timestamp: 0.5}

	params := Params{
		NbVoxelsVisited: 2, MaxNumberNeighbors: 20, MinNumberNeighbors: 5,
		P2PMaxDist: 0.5, PowerPlanarity: 1, LossFunc: "L2", NumThreads: 2,
	}
	terms, err := Associate(context.Background(), m, traj, manifold.Identity(), []scan.Point{onPlane, farAway}, 1, params)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Less(t, terms[0].Distance(), 0.5)
}

func TestPointToPlaneTermVarsUsesBothBracketingKnots(t *testing.T) {
	traj := trajectory.New(manifold.NewVec6(1e-2, 1e-2, 1e-2, 1e-2, 1e-2, 1e-2), manifold.Zero6())
	kA, err := traj.Add(0, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)
	kB, err := traj.Add(1, manifold.Identity(), manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), true)
	require.NoError(t, err)

	nb := Neighborhood{Barycenter: r3.Vector{}, Normal: r3.Vector{Z: 1}, Planarity: 1}
	term := NewPointToPlaneTerm(traj, manifold.Identity(), r3.Vector{X: 1}, 0.5, nb, 1, lstsq.L2Loss{})
	vars := term.Vars()
	assert.Len(t, vars, 6)
	assert.Contains(t, vars, kA.PoseVarID())
	assert.Contains(t, vars, kB.PoseVarID())
}
