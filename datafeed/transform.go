// File: datafeed/transform.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package datafeed

// Transform is one stage of the packet-rewriting chain a session runs
// before fan-out. Receive consumes the current packet and yields the
// packet to hand to the next stage.
//
// Returning (nil, nil) truncates the chain for this packet: delivery is
// silently skipped and the send reports success. A non-nil error aborts
// the send with a failure.
type Transform interface {
	Receive(in *Packet) (*Packet, error)
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(in *Packet) (*Packet, error)

// Receive implements Transform.
func (f TransformFunc) Receive(in *Packet) (*Packet, error) { return f(in) }
