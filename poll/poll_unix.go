//go:build linux || darwin || freebsd || netbsd || openbsd

// File: poll/poll_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// POSIX implementation of the poll driver on top of poll(2).

package poll

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/sigcore/api"
)

// eventBits maps the portable mask onto the host poll(2) bits.
var eventBits = []struct {
	event api.Events
	bit   int16
}{
	{api.EventIn, unix.POLLIN},
	{api.EventPri, unix.POLLPRI},
	{api.EventOut, unix.POLLOUT},
	{api.EventErr, unix.POLLERR},
	{api.EventHup, unix.POLLHUP},
	{api.EventNval, unix.POLLNVAL},
}

func toHost(e api.Events) int16 {
	var bits int16
	for _, m := range eventBits {
		if e&m.event != 0 {
			bits |= m.bit
		}
	}
	return bits
}

func fromHost(bits int16) api.Events {
	var e api.Events
	for _, m := range eventBits {
		if bits&m.bit != 0 {
			e |= m.event
		}
	}
	return e
}

func wait(descs []Descriptor, timeoutMs int) (int, error) {
	pfds := make([]unix.PollFd, len(descs))
	for i, d := range descs {
		pfds[i] = unix.PollFd{
			Fd:     int32(d.Fd),
			Events: toHost(d.Events),
		}
	}

	n, err := unix.Poll(pfds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			// Premature wakeup by a signal; treated as a timeout-less
			// return with no ready descriptors.
			for i := range descs {
				descs[i].Revents = 0
			}
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %v: %w", err, api.ErrFailed)
	}

	for i := range descs {
		descs[i].Revents = fromHost(pfds[i].Revents)
	}
	return n, nil
}
