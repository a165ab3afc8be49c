// Package icp implements the per-frame point-to-plane registration of
// spec.md §4.4: keypoint world-transform, voxel-map association, PCA plane
// fitting, and the resulting cost terms fed to the sliding-window solve.
package icp

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Neighborhood is the local plane fit against a keypoint's nearest map
// points: barycenter, unit normal (smallest-eigenvalue eigenvector of the
// centered scatter matrix), full covariance, and planarity a2D, per
// spec.md §3.
type Neighborhood struct {
	Barycenter r3.Vector
	Normal     r3.Vector
	Covariance mat.SymDense
	Planarity  float64
}

// FitPlane computes the Neighborhood of points via PCA. Returns false only
// if points is empty; a degenerate (all-coincident) point set yields
// Planarity = NaN rather than failing outright, since spec.md §4.4 treats
// NaN planarity as the caller's fatal condition to raise, not this
// function's.
func FitPlane(points []r3.Vector) (Neighborhood, bool) {
	n := len(points)
	if n == 0 {
		return Neighborhood{}, false
	}
	var sum r3.Vector
	for _, p := range points {
		sum = sum.Add(p)
	}
	barycenter := sum.Mul(1 / float64(n))

	cov := mat.NewSymDense(3, nil)
	for _, p := range points {
		d := p.Sub(barycenter)
		arr := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+arr[i]*arr[j])
			}
		}
	}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			cov.SetSym(i, j, cov.At(i, j)/float64(n))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return Neighborhood{Barycenter: barycenter, Covariance: *cov, Planarity: math.NaN()}, true
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	type ev struct {
		sigma float64
		vec   r3.Vector
	}
	evs := make([]ev, 3)
	for i := 0; i < 3; i++ {
		v := values[i]
		if v < 0 {
			v = 0
		}
		evs[i] = ev{sigma: math.Sqrt(v), vec: r3.Vector{X: vecs.At(0, i), Y: vecs.At(1, i), Z: vecs.At(2, i)}}
	}
	sort.Slice(evs, func(i, j int) bool { return evs[i].sigma > evs[j].sigma })
	sigma1, sigma2, sigma3 := evs[0].sigma, evs[1].sigma, evs[2].sigma

	planarity := math.NaN()
	if sigma1 > 0 {
		planarity = (sigma2 - sigma3) / sigma1
	}

	return Neighborhood{
		Barycenter: barycenter,
		Normal:     evs[2].vec.Normalize(),
		Covariance: *cov,
		Planarity:  planarity,
	}, true
}
