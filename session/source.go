// File: session/source.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event source registry: timers, descriptors, and their poll objects.

package session

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/poll"
)

// infiniteDue marks a source that only fires on I/O.
const infiniteDue = math.MaxInt64

// source is one registered event producer: a pure timer (no
// descriptors), a typical I/O source (one descriptor) or a multiplexed
// source contributing several descriptors.
type source struct {
	// timeout is the re-arm period in microseconds, -1 for infinite.
	timeout int64

	// due is the absolute monotonic deadline in microseconds,
	// infiniteDue for infinite-timeout sources.
	due int64

	cb   api.ReceiveFunc
	data any

	// pollObject identifies the source for registration, lookup and
	// removal. Its dynamic type distinguishes the source kind: int for
	// plain fds, *poll.Descriptor, *os.File, or a DeadlineProvider.
	// Must be unique within the session.
	pollObject any

	// descs are the descriptors this source contributes to the poll.
	descs []poll.Descriptor

	// triggered is a transient marker cleared at the top of each
	// iteration; it shields already-handled sources from the dispatch
	// restart.
	triggered bool
}

// addSource installs a source. descs may be nil for a pure timer.
func (s *Session) addSource(descs []poll.Descriptor, timeoutMs int, cb api.ReceiveFunc,
	data any, pollObject any) error {

	// Note: data can be nil, that's not a bug.
	if cb == nil {
		slog.Error("session: source callback was nil")
		return fmt.Errorf("session: cb was nil: %w", api.ErrInvalidArgument)
	}
	if len(descs) == 0 && timeoutMs < 0 {
		slog.Error("session: timer source without timeout would block indefinitely")
		return fmt.Errorf("session: timer source without timeout: %w", api.ErrInvalidArgument)
	}
	for _, src := range s.sources {
		if src.pollObject == pollObject {
			slog.Error("session: event source already installed", "poll_object", pollObject)
			return fmt.Errorf("session: event source %v already installed: %w",
				pollObject, api.ErrInvalidArgument)
		}
	}

	slog.Debug("session: installing event source",
		"poll_object", pollObject, "fds", len(descs), "timeout_ms", timeoutMs)

	src := &source{
		cb:         cb,
		data:       data,
		pollObject: pollObject,
		descs:      append([]poll.Descriptor(nil), descs...),
	}
	for i := range src.descs {
		src.descs[i].Revents = 0
	}
	if timeoutMs >= 0 {
		src.timeout = 1000 * int64(timeoutMs)
		src.due = s.mono.Now() + src.timeout
	} else {
		src.timeout = -1
		src.due = infiniteDue
	}
	s.sources = append(s.sources, src)

	for _, d := range src.descs {
		slog.Debug("session: registering poll fd", "fd", d.Fd, "events", d.Events.String())
	}
	return nil
}

// removeSource removes the source identified by the given poll object,
// compacting the registry. Removing an unknown poll object is reported
// but never fatal; identities may be reused.
func (s *Session) removeSource(pollObject any) error {
	for i, src := range s.sources {
		if src.pollObject != pollObject {
			continue
		}
		s.sources = append(s.sources[:i], s.sources[i+1:]...)

		// The provider's piggy-backed deadline dies with its source.
		if s.ctx.provider != nil && pollObject == any(s.ctx.provider) {
			s.ctx.providerActive = false
		}

		slog.Debug("session: removed event source", "poll_object", pollObject)
		return nil
	}

	// Removing an already removed source is problematic since the poll
	// object may have been reused in the meantime.
	slog.Warn("session: cannot remove non-existing event source", "poll_object", pollObject)
	return fmt.Errorf("session: event source %v: %w", pollObject, api.ErrNotFound)
}

// SourceAdd installs an event source for a single file descriptor. A
// negative fd registers a pure timer, which requires a non-negative
// timeout. The poll object is the fd itself.
func (s *Session) SourceAdd(fd int, events api.Events, timeoutMs int,
	cb api.ReceiveFunc, data any) error {

	if fd < 0 && timeoutMs < 0 {
		slog.Error("session: timer source without timeout would block indefinitely")
		return fmt.Errorf("session: timer source without timeout: %w", api.ErrInvalidArgument)
	}
	var descs []poll.Descriptor
	if fd >= 0 {
		descs = []poll.Descriptor{{Fd: fd, Events: events}}
	}
	return s.addSource(descs, timeoutMs, cb, data, fd)
}

// SourceAddDescriptor installs an event source for a caller-owned poll
// descriptor. The poll object is the descriptor's pointer identity.
func (s *Session) SourceAddDescriptor(d *poll.Descriptor, timeoutMs int,
	cb api.ReceiveFunc, data any) error {

	if d == nil {
		slog.Error("session: descriptor was nil")
		return fmt.Errorf("session: descriptor was nil: %w", api.ErrInvalidArgument)
	}
	return s.addSource([]poll.Descriptor{*d}, timeoutMs, cb, data, d)
}

// SourceAddFile installs an event source for an open file. The poll
// object is the file's pointer identity.
func (s *Session) SourceAddFile(f *os.File, events api.Events, timeoutMs int,
	cb api.ReceiveFunc, data any) error {

	if f == nil {
		slog.Error("session: file was nil")
		return fmt.Errorf("session: file was nil: %w", api.ErrInvalidArgument)
	}
	descs := []poll.Descriptor{{Fd: int(f.Fd()), Events: events}}
	return s.addSource(descs, timeoutMs, cb, data, f)
}

// SourceAddDeadlineProvider installs the event source backing the
// context's external deadline provider. The provider itself is the poll
// object, so the iteration engine can fold the provider's deadline into
// this source's firing decision. descs may span several descriptors; the
// callback then receives a sentinel fd.
func (s *Session) SourceAddDeadlineProvider(p api.DeadlineProvider, descs []poll.Descriptor,
	timeoutMs int, cb api.ReceiveFunc, data any) error {

	if p == nil {
		slog.Error("session: deadline provider was nil")
		return fmt.Errorf("session: provider was nil: %w", api.ErrInvalidArgument)
	}
	if s.ctx.provider != p {
		slog.Error("session: provider not installed on the session context")
		return fmt.Errorf("session: provider not installed on context: %w", api.ErrInvalidArgument)
	}
	if err := s.addSource(descs, timeoutMs, cb, data, p); err != nil {
		return err
	}
	s.ctx.providerActive = true
	return nil
}

// SourceRemove removes the source registered for the given fd.
func (s *Session) SourceRemove(fd int) error {
	return s.removeSource(fd)
}

// SourceRemoveDescriptor removes the source registered for the given
// descriptor.
func (s *Session) SourceRemoveDescriptor(d *poll.Descriptor) error {
	if d == nil {
		slog.Error("session: descriptor was nil")
		return fmt.Errorf("session: descriptor was nil: %w", api.ErrInvalidArgument)
	}
	return s.removeSource(d)
}

// SourceRemoveFile removes the source registered for the given file.
func (s *Session) SourceRemoveFile(f *os.File) error {
	if f == nil {
		slog.Error("session: file was nil")
		return fmt.Errorf("session: file was nil: %w", api.ErrInvalidArgument)
	}
	return s.removeSource(f)
}

// SourceCount returns the number of installed sources.
func (s *Session) SourceCount() int { return len(s.sources) }

// descriptorCount returns the total number of descriptors contributed by
// all sources.
func (s *Session) descriptorCount() int {
	n := 0
	for _, src := range s.sources {
		n += len(src.descs)
	}
	return n
}
