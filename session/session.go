// File: session/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session aggregate: devices, datafeed bus, trigger, event sources.

// Package session implements the acquisition session core: a registry of
// timer-plus-descriptor event sources, the iteration engine multiplexing
// them over one poll call, the datafeed bus threading packets through
// transforms to subscribers, and the cross-thread stop protocol.
//
// The engine is single-threaded cooperative. All source callbacks,
// transforms and subscribers run on the goroutine that called Run; the
// only state shared with other goroutines is the abort/running flag pair
// behind its own mutex, flipped by Stop.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/clock"
	"github.com/momentics/sigcore/datafeed"
	"github.com/momentics/sigcore/device"
	"github.com/momentics/sigcore/poll"
	"github.com/momentics/sigcore/trigger"
)

// DatafeedCallback consumes packets on the far side of the transform
// chain. Callbacks must not fail; they run on the session goroutine.
type DatafeedCallback func(dev *device.Instance, p *datafeed.Packet, data any)

type datafeedCallback struct {
	cb   DatafeedCallback
	data any
}

// Session is the root aggregate of an acquisition run.
type Session struct {
	ctx *Context

	devs      []*device.Instance
	ownedDevs []*device.Instance

	datafeedCallbacks []datafeedCallback
	transforms        []datafeed.Transform

	trig *trigger.Trigger

	sources []*source
	// pollfds is the flat descriptor scratch array rebuilt before each
	// poll; source i's descriptors occupy contiguous slots starting at
	// the prefix sum of num_fds.
	pollfds []poll.Descriptor

	mono *clock.Monotonic

	// stopMu guards the only cross-thread state: abort and running.
	stopMu  sync.Mutex
	abort   bool
	running bool
}

// New creates a session in the given context. A nil context gets a fresh
// one with no external deadline provider.
func New(ctx *Context) *Session {
	if ctx == nil {
		ctx = NewContext()
	}
	return &Session{
		ctx:  ctx,
		mono: clock.NewMonotonic(ctx.timeSource),
	}
}

// Context returns the session's context handle.
func (s *Session) Context() *Context { return s.ctx }

// Destroy detaches all devices, releases owned devices and drops the
// trigger and both source arrays. The session must not be running on
// another goroutine.
func (s *Session) Destroy() error {
	if err := s.DevRemoveAll(); err != nil {
		return err
	}
	for _, dev := range s.ownedDevs {
		if err := dev.Release(); err != nil {
			slog.Error("session: releasing owned device", "device", dev.ID(), "error", err)
		}
	}
	s.ownedDevs = nil
	s.trig = nil
	s.sources = nil
	s.pollfds = nil
	s.datafeedCallbacks = nil
	s.transforms = nil
	return nil
}

// DevAdd attaches a device instance to the session.
//
// A device with no driver is virtual and is attached without opening.
// If the session is already running, the device's config is committed
// and its acquisition started immediately so it participates in the
// current run.
func (s *Session) DevAdd(dev *device.Instance) error {
	if dev == nil {
		slog.Error("session: dev was nil")
		return fmt.Errorf("session: dev was nil: %w", api.ErrInvalidArgument)
	}
	if dev.SessionRef() != nil {
		slog.Error("session: device already assigned to a session", "device", dev.ID())
		return fmt.Errorf("session: device %s already assigned to a session: %w",
			dev.ID(), api.ErrInvalidArgument)
	}

	drv := dev.Driver()
	if drv == nil {
		// Virtual device: just attach.
		s.devs = append(s.devs, dev)
		dev.SetSessionRef(s)
		return nil
	}

	if _, ok := drv.(device.Opener); !ok {
		slog.Error("session: driver has no open support", "driver", drv.Name())
		return fmt.Errorf("session: driver %s cannot open devices: %w",
			drv.Name(), api.ErrInternal)
	}

	s.devs = append(s.devs, dev)
	dev.SetSessionRef(s)

	if s.isRunning() {
		// Adding a device to a running session. Commit settings and
		// start acquisition on that device now.
		if err := dev.Commit(); err != nil {
			slog.Error("session: commit before start in running session failed",
				"device", dev.ID(), "error", err)
			return err
		}
		if err := drv.AcquisitionStart(dev, dev); err != nil {
			slog.Error("session: acquisition start in running session failed",
				"device", dev.ID(), "error", err)
			return fmt.Errorf("session: start acquisition on %s: %w", dev.ID(), err)
		}
	}

	return nil
}

// DevOwn transfers ownership of an instance to the session: it is
// attached like DevAdd and released when the session is destroyed.
func (s *Session) DevOwn(dev *device.Instance) error {
	if err := s.DevAdd(dev); err != nil {
		return err
	}
	s.ownedDevs = append(s.ownedDevs, dev)
	return nil
}

// DevRemoveAll detaches every device from the session. The instances
// themselves survive.
func (s *Session) DevRemoveAll() error {
	for _, dev := range s.devs {
		dev.SetSessionRef(nil)
	}
	s.devs = nil
	return nil
}

// DevList returns the attached devices in attach order. The returned
// slice is a copy.
func (s *Session) DevList() []*device.Instance {
	out := make([]*device.Instance, len(s.devs))
	copy(out, s.devs)
	return out
}

// SetTrigger assigns the session trigger; nil clears it.
func (s *Session) SetTrigger(t *trigger.Trigger) {
	s.trig = t
}

// Trigger returns the assigned trigger, nil if none.
func (s *Session) Trigger() *trigger.Trigger { return s.trig }

// AddDatafeedCallback registers a subscriber for packets leaving the
// transform chain. Subscribers are invoked in registration order.
func (s *Session) AddDatafeedCallback(cb DatafeedCallback, data any) error {
	if cb == nil {
		slog.Error("session: datafeed callback was nil")
		return fmt.Errorf("session: cb was nil: %w", api.ErrInvalidArgument)
	}
	s.datafeedCallbacks = append(s.datafeedCallbacks, datafeedCallback{cb: cb, data: data})
	return nil
}

// RemoveDatafeedCallbacks drops all registered subscribers.
func (s *Session) RemoveDatafeedCallbacks() {
	s.datafeedCallbacks = nil
}

// AddTransform appends a transform to the rewrite chain. Transforms run
// in registration order on every Send.
func (s *Session) AddTransform(t datafeed.Transform) error {
	if t == nil {
		slog.Error("session: transform was nil")
		return fmt.Errorf("session: transform was nil: %w", api.ErrInvalidArgument)
	}
	s.transforms = append(s.transforms, t)
	return nil
}

// Send puts a packet on the datafeed bus: the packet is threaded through
// the transform chain in order, then the result is broadcast to every
// subscriber in registration order. Drivers call this from source
// callbacks on the session goroutine.
//
// A transform yielding no output truncates delivery; Send still reports
// success. A transform error aborts the send.
func (s *Session) Send(dev *device.Instance, p *datafeed.Packet) error {
	if dev == nil {
		slog.Error("session: send with nil device")
		return fmt.Errorf("session: dev was nil: %w", api.ErrInvalidArgument)
	}
	if p == nil {
		slog.Error("session: send with nil packet")
		return fmt.Errorf("session: packet was nil: %w", api.ErrInvalidArgument)
	}
	if dev.SessionRef() != s {
		slog.Error("session: send from detached device", "device", dev.ID())
		return fmt.Errorf("session: device %s not attached to this session: %w",
			dev.ID(), api.ErrInternal)
	}

	// Pass the packet through the transform chain. Each stage's output
	// feeds the next; no output aborts delivery silently.
	current := p
	for _, t := range s.transforms {
		out, err := t.Receive(current)
		if err != nil {
			slog.Error("session: transform failed", "error", err)
			return fmt.Errorf("session: transform: %v: %w", err, api.ErrFailed)
		}
		if out == nil {
			slog.Debug("session: transform yielded no packet, delivery skipped")
			return nil
		}
		current = out
	}

	datafeedDump(current)
	for _, sub := range s.datafeedCallbacks {
		sub.cb(dev, current, sub.data)
	}
	return nil
}

// datafeedDump logs one debug line per packet on the bus.
func datafeedDump(p *datafeed.Packet) {
	switch payload := p.Payload.(type) {
	case *datafeed.Logic:
		slog.Debug("session: bus packet", "type", p.Type.String(),
			"length", payload.Length, "unitsize", payload.UnitSize)
	case *datafeed.Analog:
		slog.Debug("session: bus packet", "type", p.Type.String(),
			"samples", payload.NumSamples)
	case *datafeed.Analog2:
		slog.Debug("session: bus packet", "type", p.Type.String(),
			"samples", payload.NumSamples)
	default:
		slog.Debug("session: bus packet", "type", p.Type.String())
	}
}
