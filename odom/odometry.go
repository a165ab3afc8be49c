// Package odom implements the per-frame orchestrator of spec.md §4.7: it
// owns the frame list, the voxel map, and the trajectory, and drives each
// frame through downsampling, ICP registration, sliding-window solving, and
// delayed map update.
package odom

import (
	"context"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/ctlio/ctlerrors"
	"go.viam.com/ctlio/engconfig"
	"go.viam.com/ctlio/icp"
	"go.viam.com/ctlio/imufactor"
	"go.viam.com/ctlio/logging"
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/manifold"
	"go.viam.com/ctlio/scan"
	"go.viam.com/ctlio/swf"
	"go.viam.com/ctlio/trajectory"
	"go.viam.com/ctlio/voxelmap"
)

// zeroSpanEpsilon nudges a new knot's time strictly past the previous
// knot's when the incoming points carry no distinguishing timestamp (a
// zero-span frame, or a run of frames all stamped at the same instant),
// so trajectory.Add's strictly-increasing invariant never fatals on a
// legitimately stationary-sensor scan.
const zeroSpanEpsilon = 1e-6

// Summary is registerFrame's outbound report, per spec.md §6.
type Summary struct {
	Success         bool
	Keypoints       []scan.Point
	CorrectedPoints []scan.Point
	Rms             [3][3]float64
	Tms             r3.Vector
}

// Odometry owns the frame list, voxel map, and trajectory for one run, per
// spec.md §3's ownership note. It is single-threaded at the frame level:
// RegisterFrame is sequential and non-reentrant (spec.md §5).
type Odometry struct {
	cfg    engconfig.Config
	logger logging.Logger

	frames []*scan.Frame
	vmap   *voxelmap.Map
	traj   *trajectory.Trajectory
	filter *swf.Filter
	rng    *rand.Rand

	// frame0SingleKnot is set when frame 0 was zero-span and collapsed to a
	// single knot, so registerSubsequentFrame knows not to enroll that knot
	// (the permanently-pinned anchor) into the sliding window at frame 1.
	frame0SingleKnot bool
}

// New constructs an odometry engine from cfg. logger may be nil, in which
// case a blank logger is used.
func New(cfg engconfig.Config, logger logging.Logger) *Odometry {
	if logger == nil {
		logger = logging.NewBlankLogger("odom")
	}
	if cfg.DebugPrint && cfg.DebugPath != "" {
		logger.AddAppender(logging.NewFileAppender(cfg.DebugPath))
	}
	qc := manifold.NewVec6(cfg.QcDiag[0], cfg.QcDiag[1], cfg.QcDiag[2], cfg.QcDiag[3], cfg.QcDiag[4], cfg.QcDiag[5])
	ad := manifold.NewVec6(cfg.AdDiag[0], cfg.AdDiag[1], cfg.AdDiag[2], cfg.AdDiag[3], cfg.AdDiag[4], cfg.AdDiag[5])
	return &Odometry{
		cfg:    cfg,
		logger: logger,
		vmap:   voxelmap.New(cfg.SizeVoxelMap, cfg.MaxNumPointsInVoxel, cfg.MinDistancePoints),
		traj:   trajectory.New(qc, ad),
		filter: swf.New(logger.Sublogger("swf")),
		rng:    rand.New(rand.NewSource(1)),
	}
}

// Trajectory returns the underlying continuous-time trajectory, for
// collaborators (e.g. a trajectory dump writer) that need to sample it
// after the run.
func (o *Odometry) Trajectory() *trajectory.Trajectory { return o.traj }

// Frames returns the frame list accumulated so far, oldest first.
func (o *Odometry) Frames() []*scan.Frame { return o.frames }

// MapSize returns the total number of points currently stored in the voxel
// map, for diagnostics and testing.
func (o *Odometry) MapSize() int { return o.vmap.Size() }

// MapNumVoxels returns the number of occupied voxels in the map.
func (o *Odometry) MapNumVoxels() int { return o.vmap.NumVoxels() }

// ActiveKnotCount returns the number of trajectory knots currently active
// in the sliding-window filter (i.e. not yet marginalized, and excluding
// the permanently-anchored first knot).
func (o *Odometry) ActiveKnotCount() int { return len(o.filter.ActiveKnots()) }

func (o *Odometry) imuParams() imufactor.Params {
	return imufactor.Params{
		UseIMU:       o.cfg.UseIMU,
		UseAccel:     o.cfg.UseAccel,
		RImuAcc:      o.cfg.RImuAcc,
		RImuAng:      o.cfg.RImuAng,
		QImu:         o.cfg.QImu,
		P0Imu:        o.cfg.P0Imu,
		Gravity:      o.cfg.Gravity,
		QgDiag:       o.cfg.QgDiag,
		TmiInitOnly:  o.cfg.TMiInitOnly,
		UseTmiGT:     o.cfg.UseTMiGT,
		TmiPriorDiag: o.cfg.TMiPriorDiag,
	}
}

// RegisterFrame implements spec.md §4.7's five steps for one incoming
// sensor bundle.
func (o *Odometry) RegisterFrame(ctx context.Context, evalTime float64, points []scan.Point, imus []imufactor.Sample) (Summary, error) {
	if len(points) == 0 {
		return Summary{}, ctlerrors.NewFatal("registerFrame called with no points")
	}

	// Step 1: append the frame with begin/end/eval timestamps.
	begin, end := points[0].Timestamp, points[0].Timestamp
	for _, p := range points[1:] {
		if p.Timestamp < begin {
			begin = p.Timestamp
		}
		if p.Timestamp > end {
			end = p.Timestamp
		}
	}
	if span := end - begin; span > 0 {
		for i := range points {
			points[i].Alpha = (points[i].Timestamp - begin) / span
		}
	}

	index := len(o.frames)
	frame := scan.New(index, begin, end, evalTime)
	o.frames = append(o.frames, frame)

	// Step 3: voxel-downsample, shuffling before and after.
	voxelSize := downsampleVoxelSize(index, o.cfg.InitNumFrames, o.cfg.VoxelSize, o.cfg.InitVoxelSize)
	scan.ShuffleInPlace(points, o.rng)
	down := scan.SubSampleFrame(points, voxelSize)
	scan.ShuffleInPlace(down, o.rng)
	frame.Points = down
	frame.State = scan.Downsampled

	if index == 0 {
		return o.registerFirstFrame(frame)
	}
	return o.registerSubsequentFrame(ctx, frame, imus)
}

// registerFirstFrame implements spec.md §4.7 step 4: seed knots at the
// frame's begin and end times (a single knot for a zero-span frame), all
// at the T_sr^-1 pose with zero motion, pin the first one with initial priors and permanently
// exclude it from the sliding window, and seed the map directly from this
// frame's own points since there is no delayed frame to fold in yet.
func (o *Odometry) registerFirstFrame(frame *scan.Frame) (Summary, error) {
	tsr := o.cfg.TsrPose()
	guess := tsr.Inverse()
	frame.BeginPose, frame.EndPose = guess, guess
	frame.State = scan.Initialized

	tmiLocked := o.cfg.UseTMiGT
	knot0, err := o.traj.Add(frame.BeginTime, guess, manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), tmiLocked)
	if err != nil {
		return Summary{}, err
	}
	if frame.EndTime > frame.BeginTime {
		if _, err := o.traj.Add(frame.EndTime, guess, manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), tmiLocked); err != nil {
			return Summary{}, err
		}
	} else {
		// Zero-span frame: every point shares one timestamp, so there is no
		// intra-frame motion to bracket. A single knot covers both the
		// begin and end of the frame.
		frame.EndTime = frame.BeginTime
		o.frame0SingleKnot = true
	}

	// knot0 is enrolled directly in the underlying problem (so its initial
	// priors have something to pin) but never through filter.EnrollKnot,
	// so it never appears in ActiveKnots() and is never marginalized: the
	// "not-filtered" anchor of spec.md §4.7 step 4.
	knot0.EnrollActive(o.filter.Problem())
	if err := imufactor.AddInitialPriors(o.filter.Problem(), o.traj, knot0, o.imuParams()); err != nil {
		return Summary{}, err
	}

	scan.InitialWorldPlacement(frame.Points, guess, guess)
	worldPts := make([]r3.Vector, len(frame.Points))
	for i, p := range frame.Points {
		worldPts[i] = p.World
	}
	o.vmap.Add(worldPts)

	keypoints := frame.Points
	frame.ClearPoints()
	frame.State = scan.Committed
	frame.Success = true

	tms := guess.Compose(tsr)
	return Summary{
		Success:         true,
		Keypoints:       keypoints,
		CorrectedPoints: keypoints,
		Rms:             tms.RotationMatrix(),
		Tms:             tms.Trans,
	}, nil
}

// registerSubsequentFrame implements spec.md §4.7 step 2 (motion guess),
// enrolls the new end knot (and, at frame 1, the first frame's end knot)
// into the sliding window, and dispatches to the ICP outer loop.
func (o *Odometry) registerSubsequentFrame(ctx context.Context, frame *scan.Frame, imus []imufactor.Sample) (Summary, error) {
	frame.BeginPose = o.frames[frame.Index-1].EndPose
	frame.EndPose = o.guessEndPose(frame)
	frame.State = scan.Initialized

	prevKnot := o.traj.Last() // the previous frame's end knot
	if frame.EndTime <= prevKnot.Time() {
		// Zero-span frame, or a run of frames all stamped at the same
		// instant: nudge strictly past the previous knot instead of
		// fataling trajectory.Add's strictly-increasing invariant.
		frame.EndTime = prevKnot.Time() + zeroSpanEpsilon
	}
	tmiLocked := o.cfg.UseTMiGT
	newKnot, err := o.traj.Add(frame.EndTime, frame.EndPose, manifold.Zero6(), manifold.Zero6(), manifold.Zero6(), manifold.Identity(), tmiLocked)
	if err != nil {
		return Summary{}, err
	}
	if frame.Index == 1 && !o.frame0SingleKnot {
		o.filter.EnrollKnot(prevKnot)
	}
	o.filter.EnrollKnot(newKnot)

	scan.InitialWorldPlacement(frame.Points, frame.BeginPose, frame.EndPose)

	frame.State = scan.ICPIterating
	keypoints, result, success, err := o.runICP(ctx, frame, imus)
	if err != nil {
		return Summary{}, err
	}
	if !success {
		frame.Success = false
		o.logger.Warnw("icp aborted for frame", "frame", frame.Index)
		return Summary{Success: false}, nil
	}
	frame.State = scan.SWFSolved

	corrected := make([]scan.Point, len(keypoints))
	copy(corrected, keypoints)

	midTime := (frame.BeginTime + frame.EndTime) / 2
	mid := o.traj.Evaluate(midTime)
	frame.MidPose = mid.Pose()
	frame.MidVelocity = mid.Velocity()
	frame.MidAcceleration = mid.Acceleration()
	frame.Bias = newKnot.Bias()
	frame.Tmi = newKnot.Tmi()
	frame.Covariance = o.traj.GetCovariance(result, midTime)

	if err := o.updateMap(ctx, frame); err != nil {
		return Summary{}, err
	}

	frame.State = scan.Committed
	frame.Success = true

	cutoffIdx := frame.Index - o.cfg.DelayAddingPoints - 1
	if cutoffIdx >= 0 {
		cutoffTime := o.frames[cutoffIdx].EndTime
		if err := o.filter.MarginalizeUpTo(cutoffTime, frame.EndTime); err != nil {
			return Summary{}, err
		}
		o.frames[cutoffIdx].State = scan.Marginalized
	}

	tsr := o.cfg.TsrPose()
	tms := frame.EndPose.Compose(tsr)
	return Summary{
		Success:         true,
		Keypoints:       keypoints,
		CorrectedPoints: corrected,
		Rms:             tms.RotationMatrix(),
		Tms:             tms.Trans,
	}, nil
}

// guessEndPose implements spec.md §4.7 step 2's initial motion guess for
// frame index >= 1: a plain copy at index 1, a constant body-twist
// extrapolation from index 2 on.
func (o *Odometry) guessEndPose(frame *scan.Frame) manifold.Pose {
	if frame.Index == 1 {
		return o.frames[0].EndPose
	}
	prev1 := o.frames[frame.Index-1].EndPose
	prev2 := o.frames[frame.Index-2].EndPose
	return extrapolateMotion(prev1, prev2)
}

// runICP drives spec.md §4.4's outer loop: transform keypoints, associate,
// assemble a fresh sliding-window snapshot, solve, and check convergence.
// Returns the keypoints used by the final iteration, the solve that
// produced the committed pose, and whether the frame succeeded (false
// without error on a soft abort: insufficient keypoints).
func (o *Odometry) runICP(ctx context.Context, frame *scan.Frame, imus []imufactor.Sample) ([]scan.Point, *lstsq.Result, bool, error) {
	tsr := o.cfg.TsrPose()
	nbVoxels := nbVoxelsVisited(frame.Index, o.cfg.InitNumFrames)
	icpParams := icp.Params{
		NbVoxelsVisited:    nbVoxels,
		MaxNumberNeighbors: o.cfg.MaxNumberNeighbors,
		MinNumberNeighbors: o.cfg.MinNumberNeighbors,
		P2PMaxDist:         o.cfg.P2PMaxDist,
		PowerPlanarity:     o.cfg.PowerPlanarity,
		LossFunc:           o.cfg.P2PLossFunc,
		LossSigma:          o.cfg.P2PLossSigma,
		NumThreads:         o.cfg.NumThreads,
	}
	imuParams := o.imuParams()

	minKeypoints := o.cfg.MinNumberKeypoints
	if minKeypoints <= 0 {
		minKeypoints = icp.MinKeypointsDefault
	}

	var prevBegin, prevEnd manifold.Pose
	var result *lstsq.Result
	for iter := 0; iter < o.cfg.NumItersICP; iter++ {
		if err := icp.TransformKeypoints(ctx, o.traj, tsr, frame.Points, o.cfg.NumThreads); err != nil {
			return nil, nil, false, errors.Wrap(err, "transforming keypoints")
		}
		terms, err := icp.Associate(ctx, o.vmap, o.traj, tsr, frame.Points, nbVoxels, icpParams)
		if err != nil {
			return nil, nil, false, err
		}
		if len(terms) < minKeypoints {
			return nil, nil, false, nil
		}

		problem := o.filter.Snapshot()
		if err := o.traj.AddPriorCostTerms(problem); err != nil {
			return nil, nil, false, err
		}
		if err := imufactor.AddIMUCostTerms(problem, o.traj, imus, imuParams); err != nil {
			return nil, nil, false, err
		}
		for _, t := range terms {
			if err := problem.AddCostTerm(t); err != nil {
				return nil, nil, false, err
			}
		}

		result, err = lstsq.GaussNewtonSolve(problem, lstsq.Options{MaxIterations: o.cfg.MaxIterations})
		if err != nil {
			return nil, nil, false, err
		}
		if o.cfg.SolverBackend == "nlopt" {
			refiner := &lstsq.NloptRefiner{MaxEval: o.cfg.NloptMaxEval}
			if err := refiner.Refine(problem); err != nil {
				return nil, nil, false, errors.Wrap(err, "nlopt refinement")
			}
		}

		beginPose := o.traj.Evaluate(frame.BeginTime).Pose()
		endPose := o.traj.Evaluate(frame.EndTime).Pose()
		if iter > 0 {
			beginTrans, beginRot := icp.PoseDelta(prevBegin, beginPose)
			endTrans, endRot := icp.PoseDelta(prevEnd, endPose)
			converged := icp.Converged(frame.Index,
				[2]float64{beginTrans, beginRot}, [2]float64{endTrans, endRot},
				o.cfg.ThresholdTranslationNorm, o.cfg.ThresholdOrientationNorm)
			prevBegin, prevEnd = beginPose, endPose
			frame.BeginPose, frame.EndPose = beginPose, endPose
			if converged {
				return frame.Points, result, true, nil
			}
			continue
		}
		prevBegin, prevEnd = beginPose, endPose
		frame.BeginPose, frame.EndPose = beginPose, endPose
	}
	return frame.Points, result, true, nil
}

// updateMap implements spec.md §4.7 step 5's delayed map update: fold in
// the points from frame (i - delay_adding_points), de-skewed using the
// now-optimized trajectory, then evict far voxels from the map.
func (o *Odometry) updateMap(ctx context.Context, currentFrame *scan.Frame) error {
	mapIdx := currentFrame.Index - o.cfg.DelayAddingPoints
	if mapIdx < 0 || mapIdx >= len(o.frames) {
		return nil
	}
	target := o.frames[mapIdx]
	if target.Points == nil {
		return nil
	}

	tsr := o.cfg.TsrPose()
	if err := icp.TransformKeypoints(ctx, o.traj, tsr, target.Points, o.cfg.NumThreads); err != nil {
		return errors.Wrap(err, "de-skewing delayed frame for map update")
	}
	worldPts := make([]r3.Vector, len(target.Points))
	for i, p := range target.Points {
		worldPts[i] = p.World
	}
	o.vmap.Add(worldPts)
	target.ClearPoints()

	o.vmap.Remove(currentFrame.EndPose.Trans, o.cfg.MaxDistance)
	return nil
}
