package collab

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/ctlio/scan"
	"go.viam.com/ctlio/trajectory"
)

// trajectoryDumpRateHz is the sample rate spec.md §6 fixes for the
// trajectory dump file.
const trajectoryDumpRateHz = 100.0

// TrajectoryWriter is the one concrete collaborator this repo ships: the
// trajectory dump format is fully specified by spec.md §6, unlike frame
// ingestion, simulation, or publishing, so there is no ambiguity left for
// an external component to resolve.
type TrajectoryWriter struct {
	path string
}

// NewTrajectoryWriter returns a writer that dumps to path on Write.
func NewTrajectoryWriter(path string) *TrajectoryWriter {
	return &TrajectoryWriter{path: path}
}

// Write samples traj at 100Hz over [first frame begin, last frame end] and
// writes one line per sample: `0.0 <nanoseconds> <16 row-major T_rm
// elements> <6 omega elements>`, per spec.md §6. It is a synchronous,
// shutdown-time operation, matching spec.md §5 "Suspension/blocking".
func (w *TrajectoryWriter) Write(traj *trajectory.Trajectory, frames []*scan.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	begin := frames[0].BeginTime
	end := frames[len(frames)-1].EndTime
	if end < begin {
		return errors.Errorf("trajectory dump: last frame end %v precedes first frame begin %v", end, begin)
	}

	f, err := os.Create(w.path)
	if err != nil {
		return errors.Wrapf(err, "creating trajectory dump %s", w.path)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	const dt = 1.0 / trajectoryDumpRateHz
	for t := begin; t <= end; t += dt {
		interp := traj.Evaluate(t)
		pose := interp.Pose()
		rot := pose.RotationMatrix()
		trans := pose.Trans
		omega := interp.Velocity().Slice()

		nanos := int64(t * 1e9)
		if _, err := fmt.Fprintf(bw, "0.0 %d "+
			"%.17g %.17g %.17g %.17g "+
			"%.17g %.17g %.17g %.17g "+
			"%.17g %.17g %.17g %.17g "+
			"%.17g %.17g %.17g %.17g "+
			"%.17g %.17g %.17g %.17g %.17g %.17g\n",
			nanos,
			rot[0][0], rot[0][1], rot[0][2], trans.X,
			rot[1][0], rot[1][1], rot[1][2], trans.Y,
			rot[2][0], rot[2][1], rot[2][2], trans.Z,
			0.0, 0.0, 0.0, 1.0,
			omega[0], omega[1], omega[2], omega[3], omega[4], omega[5],
		); err != nil {
			return errors.Wrap(err, "writing trajectory dump line")
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing trajectory dump")
	}
	return nil
}
