package voxelmap

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRespectsMinDistanceAndCapacity(t *testing.T) {
	m := New(1.0, 3, 0.2)
	pts := []r3.Vector{
		{X: 0.1, Y: 0.1, Z: 0.1},
		{X: 0.11, Y: 0.1, Z: 0.1}, // too close, dropped
		{X: 0.5, Y: 0.1, Z: 0.1},
		{X: 0.9, Y: 0.9, Z: 0.9},
		{X: 0.05, Y: 0.9, Z: 0.9}, // 4th point in a full voxel, dropped
	}
	m.Add(pts)
	v := m.voxels[KeyOf(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, 1.0)]
	require.NotNil(t, v)
	assert.LessOrEqual(t, len(v.points), 3)
	for i := range v.points {
		for j := range v.points {
			if i == j {
				continue
			}
			assert.GreaterOrEqual(t, v.points[i].Sub(v.points[j]).Norm(), 0.2)
		}
	}
}

func TestAddIsIdempotent(t *testing.T) {
	m := New(1.0, 20, 0.1)
	pts := []r3.Vector{{X: 0.1, Y: 0.2, Z: 0.3}, {X: 5.5, Y: 5.5, Z: 5.5}}
	m.Add(pts)
	sizeAfterFirst := m.Size()
	m.Add(pts)
	assert.Equal(t, sizeAfterFirst, m.Size())
}

func TestRemoveDropsFarVoxels(t *testing.T) {
	m := New(1.0, 20, 0.01)
	m.Add([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 100, Y: 0, Z: 0}})
	m.Remove(r3.Vector{}, 10)
	assert.Equal(t, 1, m.NumVoxels())
	for _, v := range m.voxels {
		assert.LessOrEqual(t, v.points[0].Norm(), 10.0)
	}
}

func TestSearchNeighborsSortedAscending(t *testing.T) {
	m := New(1.0, 20, 0.0)
	m.Add([]r3.Vector{
		{X: 0.9, Y: 0, Z: 0},
		{X: 0.1, Y: 0, Z: 0},
		{X: 1.5, Y: 0, Z: 0},
		{X: -0.9, Y: 0, Z: 0},
	})
	res := m.SearchNeighbors(r3.Vector{X: 0, Y: 0, Z: 0}, 2, 10)
	require.NotEmpty(t, res)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Norm(), res[i].Norm())
	}
}

func TestSearchNeighborsEmptyIsPermitted(t *testing.T) {
	m := New(1.0, 20, 0.0)
	res := m.SearchNeighbors(r3.Vector{X: 500, Y: 500, Z: 500}, 1, 10)
	assert.Empty(t, res)
}

func TestSignedTruncationAsymmetry(t *testing.T) {
	// spec.md §9: points in (-size, 0) and [0, size) share key 0.
	assert.Equal(t, KeyOf(r3.Vector{X: -0.5}, 1.0), KeyOf(r3.Vector{X: 0.5}, 1.0))
}
