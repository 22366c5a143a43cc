// File: device/device.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acquisition device instances and their driver bindings.

// Package device models the acquisition devices a session drives: the
// instance record, its channels, its configuration store, and the driver
// interface the session core consumes.
package device

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/momentics/sigcore/api"
)

// Status describes the lifecycle state of a device instance.
type Status int

const (
	// StatusInactive is the initial state of a new instance.
	StatusInactive Status = iota
	// StatusActive means the device is open and usable.
	StatusActive
	// StatusStopping means acquisition is being wound down.
	StatusStopping
)

// Driver is the minimal surface a hardware driver exposes to the session
// core. Optional capabilities are modelled as extension interfaces
// (Opener, AcquisitionStopper, ConfigCommitter) the core probes for.
type Driver interface {
	// Name identifies the driver in log output.
	Name() string

	// AcquisitionStart begins acquisition on the device. data is an
	// opaque value threaded back through datafeed sends; the session
	// passes the instance itself.
	AcquisitionStart(dev *Instance, data any) error
}

// Opener is implemented by drivers that open a hardware connection.
// A driver without it cannot have devices attached to a session.
type Opener interface {
	Open(dev *Instance) error
}

// AcquisitionStopper is implemented by drivers that need an explicit stop
// call when the session is halted.
type AcquisitionStopper interface {
	AcquisitionStop(dev *Instance, data any) error
}

// ConfigCommitter is implemented by drivers that push pending
// configuration to the hardware before acquisition starts.
type ConfigCommitter interface {
	CommitConfig(dev *Instance, snapshot map[string]any) error
}

// Instance is a single attached (or attachable) device.
type Instance struct {
	id string

	// Vendor, Model and Version describe the hardware.
	Vendor  string
	Model   string
	Version string

	// ConnectionID names the transport endpoint (port, address, ...).
	ConnectionID string

	// Status tracks the instance lifecycle.
	Status Status

	// Priv is driver-private state.
	Priv any

	driver   Driver
	channels []*Channel
	config   *ConfigStore

	// session is the back-pointer to the owning session, nil while
	// detached. Typed as any to keep the device package free of a
	// dependency on the session package; the session core maintains it.
	session any
}

// NewInstance creates a detached device instance for the given driver.
// A nil driver designates a virtual device, which a session attaches
// without opening.
func NewInstance(driver Driver, vendor, model string) *Instance {
	return &Instance{
		id:     uuid.NewString(),
		Vendor: vendor,
		Model:  model,
		driver: driver,
		config: NewConfigStore(),
	}
}

// ID returns the unique instance identifier.
func (d *Instance) ID() string { return d.id }

// Driver returns the bound driver, nil for virtual devices.
func (d *Instance) Driver() Driver { return d.driver }

// Config returns the instance's configuration store.
func (d *Instance) Config() *ConfigStore { return d.config }

// AddChannel creates a channel on the device and returns it. New channels
// start out enabled.
func (d *Instance) AddChannel(index int, typ ChannelType, name string) *Channel {
	ch := &Channel{
		Index:   index,
		Type:    typ,
		Enabled: true,
		Name:    name,
	}
	d.channels = append(d.channels, ch)
	return ch
}

// Channels returns the device's channel list. The slice is shared; do not
// mutate its length.
func (d *Instance) Channels() []*Channel { return d.channels }

// HasEnabledChannel reports whether at least one channel is enabled.
func (d *Instance) HasEnabledChannel() bool {
	for _, ch := range d.channels {
		if ch.Enabled {
			return true
		}
	}
	return false
}

// SessionRef returns the owning session, nil while detached. The session
// core keeps this consistent with actual membership.
func (d *Instance) SessionRef() any { return d.session }

// SetSessionRef is used by the session core when attaching or detaching
// the instance.
func (d *Instance) SetSessionRef(s any) { d.session = s }

// Commit snapshots the config store and hands it to the driver's
// ConfigCommitter, if any. Virtual devices and drivers without pending
// config support commit trivially.
func (d *Instance) Commit() error {
	if d.driver == nil {
		return nil
	}
	committer, ok := d.driver.(ConfigCommitter)
	if !ok {
		return nil
	}
	snapshot := d.config.Snapshot()
	if err := committer.CommitConfig(d, snapshot); err != nil {
		slog.Error("device: config commit failed",
			"driver", d.driver.Name(), "device", d.id, "error", err)
		return fmt.Errorf("device %s: commit config: %w", d.id, err)
	}
	d.config.notifyCommitted()
	return nil
}

// Release drops the instance's channels and configuration. The session
// calls this for owned devices on destroy; the instance must be detached.
func (d *Instance) Release() error {
	if d.session != nil {
		return fmt.Errorf("device %s: release while attached: %w", d.id, api.ErrInternal)
	}
	d.channels = nil
	d.config = NewConfigStore()
	d.Priv = nil
	return nil
}
