// File: clock/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Monotonic microsecond clock used for all event source deadlines.

// Package clock provides the monotonic time base of the session core.
//
// Deadlines are absolute microsecond values on a non-decreasing clock;
// wall-clock time is never used for scheduling. The time source behind
// the microsecond counter is pluggable so tests can substitute a
// chronon.FakeClock.
package clock

import "time"

// Source yields the current time. *chronon.FakeClock satisfies this
// interface, as does the system clock below.
type Source interface {
	Now() time.Time
}

type systemSource struct{}

func (systemSource) Now() time.Time { return time.Now() }

// System is the default time source, backed by time.Now. Values returned
// by time.Now carry a monotonic reading, so differences between them are
// immune to wall-clock adjustment.
var System Source = systemSource{}

// Monotonic converts a Source into non-decreasing microsecond timestamps.
// The zero point is the moment of construction; only differences between
// returned values are meaningful.
type Monotonic struct {
	src    Source
	anchor time.Time
	last   int64
}

// NewMonotonic creates a microsecond clock anchored at src's current time.
// A nil src selects the system clock.
func NewMonotonic(src Source) *Monotonic {
	if src == nil {
		src = System
	}
	return &Monotonic{
		src:    src,
		anchor: src.Now(),
	}
}

// Now returns the current time in microseconds since the anchor. The
// result never decreases, even if the underlying source steps backwards.
func (m *Monotonic) Now() int64 {
	us := m.src.Now().Sub(m.anchor).Microseconds()
	if us < m.last {
		return m.last
	}
	m.last = us
	return us
}
