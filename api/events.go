// File: api/events.go
// Package api defines the contracts shared by the sigcore packages.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "strings"

// Events is a bitmask of I/O readiness conditions, following the poll(2)
// convention. The platform poll driver translates between these bits and
// the host OS representation; the values pass through source callbacks
// unchanged otherwise.
type Events int16

const (
	// EventIn indicates data is available to read.
	EventIn Events = 1 << iota
	// EventPri indicates urgent data is available to read.
	EventPri
	// EventOut indicates a write will not block.
	EventOut
	// EventErr indicates an error condition on the descriptor.
	EventErr
	// EventHup indicates the peer closed its end.
	EventHup
	// EventNval indicates the descriptor is not open.
	EventNval
)

// String renders the mask as "in|out|err" style for log output.
func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	names := []struct {
		bit  Events
		name string
	}{
		{EventIn, "in"},
		{EventPri, "pri"},
		{EventOut, "out"},
		{EventErr, "err"},
		{EventHup, "hup"},
		{EventNval, "nval"},
	}
	var parts []string
	for _, n := range names {
		if e&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ReceiveFunc is invoked when an event source fires.
//
// fd is the source's file descriptor when it polls exactly one. A pure
// timer registered by (negative) fd number receives that fd; any other
// source without descriptors, and every source polling multiple
// descriptors, receives -1 (the callback must then introspect via data).
// revents is the aggregated readiness mask, or zero when the source fired
// on a timeout. The return value reports whether the source stays
// installed; returning false removes it.
type ReceiveFunc func(fd int, revents Events, data any) bool
