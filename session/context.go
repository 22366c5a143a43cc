// File: session/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/clock"
)

// Context is the opaque handle a session is created in. It carries the
// optional external deadline provider (a USB-style transfer stack whose
// internal deadlines piggy-back on the session poll) and the time source
// behind the monotonic clock.
type Context struct {
	provider       api.DeadlineProvider
	providerActive bool

	timeSource clock.Source
}

// NewContext creates a context with the system time source and no
// deadline provider.
func NewContext() *Context {
	return &Context{timeSource: clock.System}
}

// WithTimeSource overrides the time source used for deadline arithmetic.
// Must be called before the context is handed to New.
func (c *Context) WithTimeSource(src clock.Source) *Context {
	c.timeSource = src
	return c
}

// SetDeadlineProvider installs the external deadline provider. The
// provider becomes active once a source identified by it is added to a
// session, and inactive when that source is removed.
func (c *Context) SetDeadlineProvider(p api.DeadlineProvider) {
	c.provider = p
}

// DeadlineProvider returns the installed provider, nil if none.
func (c *Context) DeadlineProvider() api.DeadlineProvider { return c.provider }
