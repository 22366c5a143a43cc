// File: session/lifecycle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session lifecycle: start, run, cooperative stop.

package session

import (
	"fmt"
	"log/slog"

	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/device"
	"github.com/momentics/sigcore/trigger"
)

// Start begins acquisition on every attached device: the trigger (if
// any) is verified, then each device's pending config is committed and
// its driver's AcquisitionStart invoked, in attach order.
//
// The first failure aborts the walk and is returned; devices already
// started are left running.
func (s *Session) Start() error {
	if len(s.devs) == 0 {
		slog.Error("session: cannot start without devices")
		return fmt.Errorf("session: no devices attached: %w", api.ErrInvalidArgument)
	}

	if s.trig != nil {
		if err := trigger.Verify(s.trig); err != nil {
			return err
		}
	}

	slog.Info("session: starting")

	for _, dev := range s.devs {
		if !dev.HasEnabledChannel() {
			slog.Error("session: device has no enabled channels",
				"device", dev.ID(), "connection", dev.ConnectionID)
			return fmt.Errorf("session: device %s has no enabled channels: %w",
				dev.ID(), api.ErrInvalidArgument)
		}
		if err := dev.Commit(); err != nil {
			slog.Error("session: commit before acquisition failed",
				"device", dev.ID(), "error", err)
			return err
		}
		drv := dev.Driver()
		if drv == nil {
			continue
		}
		if err := drv.AcquisitionStart(dev, dev); err != nil {
			slog.Error("session: could not start acquisition",
				"device", dev.ID(), "error", err)
			return fmt.Errorf("session: start acquisition on %s: %w", dev.ID(), err)
		}
	}

	return nil
}

// Run drives the iteration engine on the calling goroutine until the
// source registry empties, then returns. Devices are not torn down;
// a stopped or completed session can be started again.
func (s *Session) Run() error {
	if len(s.devs) == 0 {
		slog.Error("session: cannot run without devices")
		return fmt.Errorf("session: no devices attached: %w", api.ErrInvalidArgument)
	}

	s.stopMu.Lock()
	s.running = true
	s.stopMu.Unlock()

	slog.Info("session: running")

	// Poll event sources until none are left.
	for len(s.sources) > 0 {
		if err := s.iterate(); err != nil {
			return err
		}
	}
	return nil
}

// Stop requests a cooperative stop from any goroutine. Only the abort
// flag is flipped; the session goroutine observes it at the next
// callback boundary and performs the synchronous stop there. Non-blocking
// by contract.
func (s *Session) Stop() {
	s.stopMu.Lock()
	s.abort = true
	s.stopMu.Unlock()
}

// checkAborted consumes a pending abort: if Stop was called, the
// synchronous stop path runs on the calling (session) goroutine and the
// flag is cleared. Reports whether a stop was performed.
func (s *Session) checkAborted() bool {
	s.stopMu.Lock()
	stop := s.abort
	if stop {
		s.stopSyncLocked()
		// But once is enough.
		s.abort = false
	}
	s.stopMu.Unlock()
	return stop
}

// stopSyncLocked stops acquisition on every device whose driver supports
// it and clears the running flag. Caller holds stopMu; runs on the
// session goroutine only.
func (s *Session) stopSyncLocked() {
	slog.Info("session: stopping")

	for _, dev := range s.devs {
		drv := dev.Driver()
		if drv == nil {
			continue
		}
		if stopper, ok := drv.(device.AcquisitionStopper); ok {
			if err := stopper.AcquisitionStop(dev, dev); err != nil {
				slog.Error("session: acquisition stop failed",
					"device", dev.ID(), "error", err)
			}
		}
	}
	s.running = false
}

// isRunning reports whether Run is active, for the attach-while-running
// path.
func (s *Session) isRunning() bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.running
}
