// Package swf implements the sliding-window filter of spec.md §4.6: a
// running lstsq.Problem plus the bookkeeping needed to enroll new knots,
// marginalize old ones into a base prior, and hand out per-iteration
// snapshots for the ICP outer loop.
package swf

import (
	"github.com/google/uuid"

	"go.viam.com/ctlio/logging"
	"go.viam.com/ctlio/lstsq"
	"go.viam.com/ctlio/trajectory"
)

// Filter owns the active-variable window: which trajectory knots are still
// live in problem versus already folded into its base prior. The
// odometry orchestrator holds one Filter for the whole run; it never
// constructs an lstsq.Problem directly.
type Filter struct {
	problem     *lstsq.Problem
	active      []*trajectory.Knot // ordered oldest-first, matches trajectory.Trajectory's knot order
	marginalize int                // index into active of the oldest knot not yet marginalized
	logger      logging.Logger
}

// New returns an empty filter. logger may be nil, in which case a blank
// logger is used and Snapshot's diagnostic logging is a no-op.
func New(logger logging.Logger) *Filter {
	if logger == nil {
		logger = logging.NewBlankLogger("swf")
	}
	return &Filter{problem: lstsq.NewProblem(), logger: logger}
}

// Problem returns the filter's live problem. Callers add per-frame cost
// terms directly to it, or to a Snapshot() of it when they need the ICP
// inner solve's per-iteration terms to not persist across outer iterations.
func (f *Filter) Problem() *lstsq.Problem { return f.problem }

// EnrollKnot enrolls a newly created trajectory knot's variables as active
// and tracks it for future marginalization, per addStateVariable of
// spec.md §4.6.
func (f *Filter) EnrollKnot(k *trajectory.Knot) {
	k.EnrollActive(f.problem)
	f.active = append(f.active, k)
}

// Snapshot returns a child problem sharing this filter's base prior and
// active variables, with an empty per-iteration term list — the "assemble
// problem" step of spec.md §4.4 step 3, used so the ICP inner solve's
// point-to-plane terms never leak into the next outer iteration.
func (f *Filter) Snapshot() *lstsq.Problem {
	snap := f.problem.Snapshot()
	f.logger.Debugw("snapshot", "id", uuid.New().String(), "active_knots", len(f.ActiveKnots()))
	return snap
}

// ActiveKnots returns the knots currently enrolled as active, oldest first.
func (f *Filter) ActiveKnots() []*trajectory.Knot {
	return f.active[f.marginalize:]
}

// MarginalizeUpTo marginalizes every active knot with Time() <= cutoff,
// stopping short of removing the last knot whose time is <= cutoff if doing
// so would leave no active knot overlapping keepAfter — the invariant
// spec.md §4.6 requires ("there is always at least one active knot
// overlapping the next frame's begin time").
func (f *Filter) MarginalizeUpTo(cutoff, keepAfter float64) error {
	for f.marginalize < len(f.active) {
		k := f.active[f.marginalize]
		if k.Time() > cutoff {
			break
		}
		if f.wouldViolateCoverage(f.marginalize, keepAfter) {
			break
		}
		if err := f.marginalizeKnot(k); err != nil {
			return err
		}
		f.marginalize++
	}
	return nil
}

// wouldViolateCoverage reports whether marginalizing active[idx] would
// leave no remaining active knot with Time() <= keepAfter, i.e. no knot
// left to bracket the next frame's begin timestamp.
func (f *Filter) wouldViolateCoverage(idx int, keepAfter float64) bool {
	for j := idx + 1; j < len(f.active); j++ {
		if f.active[j].Time() <= keepAfter {
			return false
		}
	}
	// idx is the last knot at or before keepAfter; removing it would strand
	// keepAfter with no left bracket, unless keepAfter itself precedes it.
	return f.active[idx].Time() <= keepAfter
}

func (f *Filter) marginalizeKnot(k *trajectory.Knot) error {
	ids := []lstsq.VarID{k.PoseVarID(), k.VelocityVarID(), k.AccelerationVarID(), k.BiasVarID()}
	if !k.TmiLocked() {
		ids = append(ids, k.TmiVarID())
	}
	for _, id := range ids {
		if !f.problem.HasVariable(id) {
			continue
		}
		if err := lstsq.MarginalizeVariable(f.problem, id); err != nil {
			return err
		}
	}
	return nil
}
