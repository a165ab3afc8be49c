// Package ctlerrors distinguishes the two error lanes of spec.md §7:
// transient per-frame failures (ordinary errors, surfaced through
// Summary.Success) and invariant violations (FatalError, which only
// cmd/ctlio is allowed to treat as a reason to stop the process).
package ctlerrors

import "github.com/pkg/errors"

// FatalError wraps an invariant violation: non-monotonic knot insertion,
// an IMU sample outside its bracketing knots, a NaN plane normal, or a
// sliding window that exceeded its resource bound. Library code returns
// these instead of panicking or calling os.Exit; only the entrypoint acts
// on them.
type FatalError struct {
	cause error
}

// NewFatal wraps msg (formatted like errors.Errorf) as a FatalError.
func NewFatal(msg string, args ...interface{}) *FatalError {
	return &FatalError{cause: errors.Errorf(msg, args...)}
}

// WrapFatal marks an existing error as fatal, always attaching the current
// stack via errors.WithStack (even if err already carries one).
func WrapFatal(err error) *FatalError {
	if err == nil {
		return nil
	}
	return &FatalError{cause: errors.WithStack(err)}
}

func (f *FatalError) Error() string {
	return f.cause.Error()
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (f *FatalError) Unwrap() error {
	return f.cause
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
