package scan

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"go.viam.com/ctlio/manifold"
)

func TestSubSampleFrameCountsDistinctVoxels(t *testing.T) {
	pts := []Point{
		{Raw: r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}},
		{Raw: r3.Vector{X: 0.2, Y: 0.2, Z: 0.2}}, // same voxel as above
		{Raw: r3.Vector{X: 1.5, Y: 0.1, Z: 0.1}},
		{Raw: r3.Vector{X: 5.0, Y: 5.0, Z: 5.0}},
	}
	out := SubSampleFrame(pts, 1.0)
	assert.Len(t, out, 3)
}

func TestSubSampleFrameKeepsFirstInserted(t *testing.T) {
	pts := []Point{
		{Raw: r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, BeamID: 1},
		{Raw: r3.Vector{X: 0.2, Y: 0.1, Z: 0.1}, BeamID: 2},
	}
	out := SubSampleFrame(pts, 1.0)
	assert.Equal(t, 1, out[0].BeamID)
}

func TestInitialWorldPlacementInterpolatesAlongMotion(t *testing.T) {
	begin := manifold.Identity()
	end := manifold.NewPose(manifold.ExpSO3(r3.Vector{}), r3.Vector{X: 10, Y: 0, Z: 0})
	pts := []Point{
		{Raw: r3.Vector{}, Alpha: 0},
		{Raw: r3.Vector{}, Alpha: 0.5},
		{Raw: r3.Vector{}, Alpha: 1},
	}
	InitialWorldPlacement(pts, begin, end)
	assert.InDelta(t, 0.0, pts[0].World.X, 1e-9)
	assert.InDelta(t, 5.0, pts[1].World.X, 1e-9)
	assert.InDelta(t, 10.0, pts[2].World.X, 1e-9)
}

func TestSubSampleFrameKeepsWholePointStructural(t *testing.T) {
	pts := []Point{
		{Raw: r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, Timestamp: 1.5, BeamID: 3, Aux: 0.9},
		{Raw: r3.Vector{X: 0.2, Y: 0.1, Z: 0.1}, Timestamp: 1.6, BeamID: 4, Aux: 0.1}, // same voxel, dropped
	}
	out := SubSampleFrame(pts, 1.0)
	want := []Point{pts[0]}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("SubSampleFrame() mismatch (-want +got):\n%s", diff)
	}
}

func TestShuffleInPlaceIsAPermutation(t *testing.T) {
	pts := make([]Point, 20)
	for i := range pts {
		pts[i].BeamID = i
	}
	r := rand.New(rand.NewSource(1))
	ShuffleInPlace(pts, r)
	seen := make(map[int]bool)
	for _, p := range pts {
		seen[p.BeamID] = true
	}
	assert.Len(t, seen, 20)
}
