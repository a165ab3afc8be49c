package odom

import (
	"context"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.viam.com/ctlio/ctlutils"
	"go.viam.com/ctlio/engconfig"
	"go.viam.com/ctlio/imufactor"
	"go.viam.com/ctlio/scan"
	"go.viam.com/ctlio/voxelmap"
)

func uniformCubePoint(r *rand.Rand) r3.Vector {
	return r3.Vector{
		X: -5 + 10*r.Float64(),
		Y: -5 + 10*r.Float64(),
		Z: -5 + 10*r.Float64(),
	}
}

// TestRegisterFrameSingleStationaryFrame is the single-frame stationary
// scenario: a stationary sensor at the origin ingests 1000 uniformly
// sampled points in a 10m cube, and the map should end up with exactly one
// point per distinct voxel the samples touch.
func TestRegisterFrameSingleStationaryFrame(t *testing.T) {
	cfg := engconfig.Default()
	cfg.VoxelSize = 1.0
	cfg.InitVoxelSize = 1.0
	cfg.SizeVoxelMap = 1.0
	cfg.MaxNumPointsInVoxel = 20
	cfg.MinDistancePoints = 0.1
	cfg.InitNumFrames = 0

	rng := rand.New(rand.NewSource(42))
	const n = 1000
	points := make([]scan.Point, n)
	distinct := make(map[voxelmap.Coords]struct{}, n)
	for i := 0; i < n; i++ {
		raw := uniformCubePoint(rng)
		points[i] = scan.Point{Raw: raw, Timestamp: 0}
		distinct[voxelmap.Coords{
			I: ctlutils.VoxelKey(raw.X, cfg.VoxelSize),
			J: ctlutils.VoxelKey(raw.Y, cfg.VoxelSize),
			K: ctlutils.VoxelKey(raw.Z, cfg.VoxelSize),
		}] = struct{}{}
	}

	o := New(cfg, nil)
	summary, err := o.RegisterFrame(context.Background(), 0, points, nil)
	require.NoError(t, err)
	require.True(t, summary.Success)

	assert.Equal(t, len(distinct), o.MapNumVoxels())
	assert.Equal(t, len(distinct), o.MapSize())

	assert.InDelta(t, 1, summary.Rms[0][0], 1e-9)
	assert.InDelta(t, 1, summary.Rms[1][1], 1e-9)
	assert.InDelta(t, 1, summary.Rms[2][2], 1e-9)
	assert.Less(t, summary.Tms.Norm(), 1e-6)
}

// planeGridPoints builds a flat, textured grid of points on z=0 so ICP has
// a stable planar surface to associate against.
func planeGridPoints(n int, spacing float64) []scan.Point {
	points := make([]scan.Point, 0, n*n)
	half := float64(n) / 2 * spacing
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			points = append(points, scan.Point{
				Raw:       r3.Vector{X: float64(i)*spacing - half, Y: float64(j)*spacing - half, Z: 0},
				Timestamp: 0,
			})
		}
	}
	return points
}

// TestMarginalizationProgressAfterFiveFrames is the marginalization
// scenario: with delay_adding_points=2, after 5 identical stationary
// frames the sliding-window filter should hold exactly 3 active knots.
func TestMarginalizationProgressAfterFiveFrames(t *testing.T) {
	cfg := engconfig.Default()
	cfg.VoxelSize = 0.5
	cfg.InitVoxelSize = 0.5
	cfg.SizeVoxelMap = 0.5
	cfg.MaxNumPointsInVoxel = 20
	cfg.MinDistancePoints = 0.05
	cfg.InitNumFrames = 0
	cfg.MinNumberNeighbors = 5
	cfg.MaxNumberNeighbors = 15
	cfg.MinNumberKeypoints = 10
	cfg.P2PMaxDist = 1.0
	cfg.DelayAddingPoints = 2
	cfg.UseIMU = false
	cfg.NumItersICP = 2
	cfg.MaxIterations = 3

	o := New(cfg, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		points := planeGridPoints(20, 0.5)
		summary, err := o.RegisterFrame(ctx, 0, points, []imufactor.Sample{})
		require.NoError(t, err)
		require.Truef(t, summary.Success, "frame %d", i)
	}

	assert.Equal(t, 3, o.ActiveKnotCount())
}
