// File: poll/poll.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral poll driver: one blocking wait across a set of
// descriptors with a millisecond timeout.

// Package poll wraps the host OS readiness notification call used by the
// session iteration engine. A single operation is exposed: Wait blocks on
// an aggregated descriptor set until I/O readiness or timeout.
package poll

import "github.com/momentics/sigcore/api"

// Descriptor pairs a file descriptor with the events to watch for and the
// events reported back by the last Wait.
type Descriptor struct {
	// Fd is the file descriptor to poll.
	Fd int

	// Events is the readiness mask to watch for.
	Events api.Events

	// Revents is filled in by Wait with the conditions that occurred.
	Revents api.Events
}

// Wait blocks until at least one descriptor is ready or the timeout
// expires, and returns the number of ready descriptors.
//
// timeoutMs follows the poll(2) convention: -1 blocks indefinitely, 0
// returns immediately. A wakeup by signal interruption is not an error;
// Wait reports it as zero ready descriptors.
func Wait(descs []Descriptor, timeoutMs int) (int, error) {
	return wait(descs, timeoutMs)
}
