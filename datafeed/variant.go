// File: datafeed/variant.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package datafeed

import "sync/atomic"

// Variant is a reference-counted immutable value shared between meta
// packets and their copies. A new variant starts with one reference;
// every copy takes another, every release drops one. When the count
// reaches zero the value is dropped.
type Variant struct {
	refs  atomic.Int32
	value any
}

// NewVariant wraps a value with an initial reference.
func NewVariant(value any) *Variant {
	v := &Variant{value: value}
	v.refs.Store(1)
	return v
}

// Ref takes an additional reference and returns the variant.
func (v *Variant) Ref() *Variant {
	v.refs.Add(1)
	return v
}

// Unref drops one reference.
func (v *Variant) Unref() {
	if v.refs.Add(-1) == 0 {
		v.value = nil
	}
}

// Value returns the wrapped value, nil after the last reference is gone.
func (v *Variant) Value() any { return v.value }

// Refs returns the current reference count.
func (v *Variant) Refs() int32 { return v.refs.Load() }
