// File: datafeed/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pull-style packet consumption for feed subscribers.

package datafeed

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/sigcore/device"
)

// Delivery is one packet as received from the bus, with the device that
// produced it.
type Delivery struct {
	Device *device.Instance
	Packet *Packet
}

// PacketQueue accumulates feed deliveries in arrival order so a consumer
// can drain them outside the subscriber callback. Push happens on the
// session thread; Pop may happen anywhere.
type PacketQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewPacketQueue creates an empty queue.
func NewPacketQueue() *PacketQueue {
	return &PacketQueue{q: queue.New()}
}

// Push appends a delivery. Use from a datafeed subscriber callback.
func (pq *PacketQueue) Push(dev *device.Instance, p *Packet) {
	pq.mu.Lock()
	pq.q.Add(Delivery{Device: dev, Packet: p})
	pq.mu.Unlock()
}

// Pop removes and returns the oldest delivery. ok is false when the
// queue is empty.
func (pq *PacketQueue) Pop() (d Delivery, ok bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if pq.q.Length() == 0 {
		return Delivery{}, false
	}
	return pq.q.Remove().(Delivery), true
}

// Len returns the number of buffered deliveries.
func (pq *PacketQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.q.Length()
}

// Drain removes and returns all buffered deliveries in arrival order.
func (pq *PacketQueue) Drain() []Delivery {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	out := make([]Delivery, 0, pq.q.Length())
	for pq.q.Length() > 0 {
		out = append(out, pq.q.Remove().(Delivery))
	}
	return out
}
