package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/chronon"
)

func TestMonotonicAdvances(t *testing.T) {
	fc := chronon.NewFakeClock(time.Now())
	m := NewMonotonic(fc)

	require.Equal(t, int64(0), m.Now())

	fc.Add(1500 * time.Microsecond)
	assert.Equal(t, int64(1500), m.Now())

	fc.Add(2 * time.Millisecond)
	assert.Equal(t, int64(3500), m.Now())
}

// stepSource is a Source whose time is set directly, including steps
// backwards.
type stepSource struct{ t time.Time }

func (s *stepSource) Now() time.Time { return s.t }

func TestMonotonicNeverDecreases(t *testing.T) {
	start := time.Now()
	src := &stepSource{t: start}
	m := NewMonotonic(src)

	src.t = start.Add(10 * time.Millisecond)
	require.Equal(t, int64(10_000), m.Now())

	// A source stepping backwards must not move the clock backwards.
	src.t = start.Add(-time.Second)
	assert.Equal(t, int64(10_000), m.Now())

	src.t = start.Add(20 * time.Millisecond)
	assert.Equal(t, int64(20_000), m.Now())
}

func TestMonotonicSystemDefault(t *testing.T) {
	m := NewMonotonic(nil)
	a := m.Now()
	time.Sleep(2 * time.Millisecond)
	b := m.Now()
	assert.GreaterOrEqual(t, b, a)
}
