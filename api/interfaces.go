// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// DeadlineProvider is an external subsystem that piggy-backs its internal
// deadlines onto the session poll, the way a USB transfer stack does. The
// iteration engine folds the provider's next deadline into the composite
// poll timeout, and treats the provider value itself as the poll object of
// the associated event source.
//
// Implementations must be comparable; the engine matches sources against
// the provider by interface equality.
type DeadlineProvider interface {
	// NextTimeout returns the relative time in microseconds until the
	// subsystem next needs servicing. ok reports whether such a deadline
	// is currently pending. A non-nil error aborts the running session
	// iteration.
	NextTimeout() (micros int64, ok bool, err error)
}
