// File: datafeed/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pooled sample buffers for deep packet copies.

package datafeed

import "sync"

// bytePool recycles byte buffers used for copied logic payloads. Buffers
// whose capacity no longer fits a request are left to the GC.
type bytePool struct {
	pool sync.Pool
}

func (p *bytePool) get(n int) []byte {
	if v := p.pool.Get(); v != nil {
		buf := v.([]byte)
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]byte, n)
}

func (p *bytePool) put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	p.pool.Put(buf[:0])
}

// floatPool recycles float32 buffers used for copied analog payloads.
type floatPool struct {
	pool sync.Pool
}

func (p *floatPool) get(n int) []float32 {
	if v := p.pool.Get(); v != nil {
		buf := v.([]float32)
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]float32, n)
}

func (p *floatPool) put(buf []float32) {
	if cap(buf) == 0 {
		return
	}
	p.pool.Put(buf[:0])
}

var (
	logicBuffers  bytePool
	analogBuffers floatPool
)
