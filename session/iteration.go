// File: session/iteration.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The iteration engine: scan deadlines, poll, dispatch callbacks.

package session

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/poll"
)

// pollWait is the poll driver entry point, indirected for tests.
var pollWait = poll.Wait

// rebuildPollFds flattens the per-source descriptors into the scratch
// array handed to the poll driver. Source i's descriptors occupy
// contiguous slots starting at the prefix sum of the preceding sources'
// descriptor counts.
func (s *Session) rebuildPollFds() {
	s.pollfds = s.pollfds[:0]
	for _, src := range s.sources {
		s.pollfds = append(s.pollfds, src.descs...)
	}
}

// scatterRevents copies the readiness reported by the poll back into the
// per-source descriptors. Must run before any dispatch mutates the
// source list, while the flat array is still aligned.
func (s *Session) scatterRevents() {
	i := 0
	for _, src := range s.sources {
		for k := range src.descs {
			src.descs[k].Revents = s.pollfds[i].Revents
			i++
		}
	}
}

// iterate performs one pass of the engine: compute the composite poll
// timeout across all sources (and the external deadline provider, if
// active), block in the poll driver, then dispatch every source that is
// ready or due. Callbacks may mutate the source list; dispatch restarts
// from the top after every invocation, with the triggered marker
// preventing duplicate fires within the iteration.
func (s *Session) iterate() error {
	if len(s.sources) == 0 {
		s.checkAborted()
		return nil
	}

	startTime := s.mono.Now()
	minDue := int64(infiniteDue)

	for _, src := range s.sources {
		if src.due < minDue {
			minDue = src.due
		}
		src.triggered = false
	}

	// Fold in the external deadline provider, if its source is present.
	provDue := int64(infiniteDue)
	if s.ctx.providerActive {
		micros, ok, err := s.ctx.provider.NextTimeout()
		if err != nil {
			slog.Error("session: error getting provider timeout", "error", err)
			return fmt.Errorf("session: deadline provider: %v: %w", err, api.ErrFailed)
		}
		if ok {
			provDue = startTime + micros
			if provDue < minDue {
				minDue = provDue
			}
			slog.Debug("session: next provider timeout", "micros", micros)
		}
	}

	var timeoutMs int
	switch {
	case minDue == infiniteDue:
		timeoutMs = -1
	case minDue > startTime:
		ms := (minDue - startTime + 999) / 1000
		if ms > math.MaxInt32 {
			ms = math.MaxInt32
		}
		timeoutMs = int(ms)
	default:
		timeoutMs = 0
	}

	s.rebuildPollFds()
	slog.Debug("session: poll enter",
		"sources", len(s.sources), "fds", len(s.pollfds), "timeout_ms", timeoutMs)

	ready, err := pollWait(s.pollfds, timeoutMs)
	if err != nil {
		slog.Error("session: error in poll", "error", err)
		return err
	}
	stopTime := s.mono.Now()

	slog.Debug("session: poll leave",
		"elapsed_us", stopTime-startTime, "events", ready)

	s.scatterRevents()

	triggered := false
	stopped := false

	for i := 0; i < len(s.sources); i++ {
		src := s.sources[i]

		pollObject := src.pollObject
		fd := -1
		if n, ok := pollObject.(int); ok {
			fd = n
		}
		var revents api.Events
		for _, d := range src.descs {
			fd = d.Fd
			revents |= d.Revents
		}

		if src.triggered {
			continue // already handled
		}
		if ready > 0 && revents == 0 {
			continue // skip timeouts if any I/O event occurred
		}

		// Make invalid to avoid confusion in case of multiple FDs.
		if len(src.descs) > 1 {
			fd = -1
		}
		if ready <= 0 {
			revents = 0
		}

		due := src.due
		if provDue < due && s.ctx.provider != nil && pollObject == any(s.ctx.provider) {
			due = provDue
		}
		if revents == 0 && stopTime < due {
			continue
		}

		// The source may be gone after the callback returns, so re-arm
		// and mark it now.
		if src.timeout >= 0 {
			src.due = stopTime + src.timeout
		}
		src.triggered = true
		triggered = true

		slog.Debug("session: callback for event source",
			"poll_object", pollObject, "revents", revents.String())
		if !src.cb(fd, revents, src.data) {
			if err := s.removeSource(pollObject); err != nil {
				slog.Warn("session: source self-removal", "error", err)
			}
		}

		// Check the abort flag after every callback, not just once per
		// iteration, to keep the stop latency at one callback.
		if !stopped {
			stopped = s.checkAborted()
		}

		// Restart dispatch: the source list may have changed under the
		// callback. The triggered marker keeps handled sources from
		// firing again.
		i = -1
	}

	if !triggered {
		s.checkAborted()
	}
	return nil
}
