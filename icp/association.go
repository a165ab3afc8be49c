package icp

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"go.viam.com/ctlio/ctlerrors"
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/scan"
	"go.viam.com/ctlio/trajectory"
	"go.viam.com/ctlio/voxelmap"
)

// Params bundles the per-call association/registration knobs of spec.md §6.
type Params struct {
	NbVoxelsVisited    int
	MaxNumberNeighbors int
	MinNumberNeighbors int
	P2PMaxDist         float64
	PowerPlanarity     float64
	LossFunc           string
	LossSigma          float64
	NumThreads         int
}

// TransformKeypoints recomputes points' World field from the current
// trajectory, per spec.md §4.4 step 1: world = T_ms(t_i)*raw. The loop is
// data-parallel and read-only over the trajectory (spec.md §5), bounded by
// numThreads.
func TransformKeypoints(ctx context.Context, traj *trajectory.Trajectory, tsr manifold.Pose, points []scan.Point, numThreads int) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(numThreads))
	for i := range points {
		i := i
		g.Go(func() error {
			Trm := traj.Evaluate(points[i].Timestamp).Pose()
			points[i].World = Trm.Compose(tsr).Transform(points[i].Raw)
			return nil
		})
	}
	return g.Wait()
}

func workerLimit(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// Associate runs spec.md §4.4 step 2 for every keypoint: search the voxel
// map, PCA-fit a plane, gate on neighbor count / planarity / point-to-plane
// distance, and build an accepted PointToPlaneTerm. Each keypoint writes to
// its own result slot, so no critical section is needed to merge the
// per-worker outputs (spec.md §9's parallel-association design note).
func Associate(ctx context.Context, m *voxelmap.Map, traj *trajectory.Trajectory, tsr manifold.Pose, points []scan.Point, nbVoxelsVisited int, params Params) ([]*PointToPlaneTerm, error) {
	loss := lstsq.LossByName(params.LossFunc, params.LossSigma)
	slots := make([]*PointToPlaneTerm, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(params.NumThreads))
	for i := range points {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			term, err := associateOne(m, traj, tsr, points[i], nbVoxelsVisited, params, loss)
			if err != nil {
				return err
			}
			slots[i] = term
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	terms := make([]*PointToPlaneTerm, 0, len(slots))
	for _, t := range slots {
		if t != nil {
			terms = append(terms, t)
		}
	}
	return terms, nil
}

func associateOne(m *voxelmap.Map, traj *trajectory.Trajectory, tsr manifold.Pose, p scan.Point, nbVoxelsVisited int, params Params, loss lstsq.LossFunction) (*PointToPlaneTerm, error) {
	candidates := m.SearchNeighbors(p.World, nbVoxelsVisited, params.MaxNumberNeighbors)
	if len(candidates) < params.MinNumberNeighbors {
		return nil, nil
	}

	nb, ok := FitPlane(candidates)
	if !ok {
		return nil, nil
	}
	if math.IsNaN(nb.Planarity) {
		return nil, ctlerrors.NewFatal("NaN planarity fitting neighborhood for keypoint at t=%.6f", p.Timestamp)
	}

	weight := math.Pow(nb.Planarity, params.PowerPlanarity)
	d := math.Abs(nb.Normal.Dot(p.World.Sub(nb.Barycenter)))
	if d >= params.P2PMaxDist {
		return nil, nil
	}

	return NewPointToPlaneTerm(traj, tsr, p.Raw, p.Timestamp, nb, weight, loss), nil
}
