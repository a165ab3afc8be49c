// Package voxelmap implements the incremental world-frame voxel map of
// spec.md §4.1: a bounded-occupancy spatial index with radius/kNN queries,
// adapted from the teacher's pointcloud.VoxelGrid to the odometry engine's
// add/remove/searchNeighbors contract.
package voxelmap

import (
	"sort"

	"github.com/golang/geo/r3"

	"go.viam.com/ctlio/ctlutils"
)

// Coords is a 3D integer voxel key, computed by signed truncation toward
// zero (see ctlutils.VoxelKey and spec.md §9 for the intentional asymmetry
// this preserves).
type Coords struct {
	I, J, K int64
}

// KeyOf returns the voxel key containing p at the given voxel size.
func KeyOf(p r3.Vector, voxelSize float64) Coords {
	return Coords{
		I: ctlutils.VoxelKey(p.X, voxelSize),
		J: ctlutils.VoxelKey(p.Y, voxelSize),
		K: ctlutils.VoxelKey(p.Z, voxelSize),
	}
}

// voxel holds the points that landed in one cell. Points[0] is the anchor:
// the first point ever inserted, returned first by neighbor queries and
// used by Remove as the voxel's representative location.
type voxel struct {
	key    Coords
	points []r3.Vector
}

// Map is the sparse, bounded-occupancy voxel map described in spec.md
// §3/§4.1. It is single-writer: the odometry orchestrator is the only
// caller of Add/Remove (see spec.md §5).
type Map struct {
	voxels      map[Coords]*voxel
	voxelSize   float64
	maxPerVoxel int
	minDistance float64
}

// New creates an empty voxel map with the given cell size, maximum points
// per cell (K), and minimum inter-point spacing within a cell (d_min).
func New(voxelSize float64, maxPerVoxel int, minDistance float64) *Map {
	return &Map{
		voxels:      make(map[Coords]*voxel),
		voxelSize:   voxelSize,
		maxPerVoxel: maxPerVoxel,
		minDistance: minDistance,
	}
}

// Size returns the total number of points stored across all voxels.
func (m *Map) Size() int {
	n := 0
	for _, v := range m.voxels {
		n += len(v.points)
	}
	return n
}

// NumVoxels returns the number of occupied voxels.
func (m *Map) NumVoxels() int {
	return len(m.voxels)
}

// Add inserts points into the map following spec.md §4.1: a point starts a
// new voxel if none exists at its key; otherwise it is appended only if the
// voxel has room (< K points) and is at least minDistance from every point
// already in that voxel. Insertion order within a voxel is preserved, so
// repeated calls with the same point set are idempotent (a point at
// distance 0 from itself never clears the min-distance gate).
func (m *Map) Add(points []r3.Vector) {
	for _, p := range points {
		key := KeyOf(p, m.voxelSize)
		v, ok := m.voxels[key]
		if !ok {
			m.voxels[key] = &voxel{key: key, points: []r3.Vector{p}}
			continue
		}
		if len(v.points) >= m.maxPerVoxel {
			continue
		}
		if !m.farEnough(v, p) {
			continue
		}
		v.points = append(v.points, p)
	}
}

func (m *Map) farEnough(v *voxel, p r3.Vector) bool {
	for _, q := range v.points {
		if p.Sub(q).Norm() < m.minDistance {
			return false
		}
	}
	return true
}

// Remove drops every voxel whose anchor point lies farther than
// maxDistance from center (spec.md §4.1 map.remove).
func (m *Map) Remove(center r3.Vector, maxDistance float64) {
	for key, v := range m.voxels {
		if len(v.points) == 0 {
			delete(m.voxels, key)
			continue
		}
		if v.points[0].Sub(center).Norm() > maxDistance {
			delete(m.voxels, key)
		}
	}
}

type neighborCandidate struct {
	point  r3.Vector
	dist   float64
	anchor bool
}

// SearchNeighbors examines the (2*nbVoxelsVisited+1)^3 cube of voxels
// centered on query's voxel key, collects every candidate point in that
// cube, and returns the closest maxCount of them sorted by ascending
// distance to query. Among candidates at exactly equal distance, a voxel's
// anchor point (points[0], see voxel) comes first. An empty result is
// permitted.
func (m *Map) SearchNeighbors(query r3.Vector, nbVoxelsVisited, maxCount int) []r3.Vector {
	center := KeyOf(query, m.voxelSize)
	var candidates []neighborCandidate
	for di := -int64(nbVoxelsVisited); di <= int64(nbVoxelsVisited); di++ {
		for dj := -int64(nbVoxelsVisited); dj <= int64(nbVoxelsVisited); dj++ {
			for dk := -int64(nbVoxelsVisited); dk <= int64(nbVoxelsVisited); dk++ {
				key := Coords{I: center.I + di, J: center.J + dj, K: center.K + dk}
				v, ok := m.voxels[key]
				if !ok {
					continue
				}
				for i, p := range v.points {
					candidates = append(candidates, neighborCandidate{point: p, dist: p.Sub(query).Norm(), anchor: i == 0})
				}
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].anchor && !candidates[j].anchor
	})
	if len(candidates) > maxCount {
		candidates = candidates[:maxCount]
	}
	out := make([]r3.Vector, len(candidates))
	for i, c := range candidates {
		out[i] = c.point
	}
	return out
}
