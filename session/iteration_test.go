package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/sigcore/api"
	"github.com/momentics/sigcore/device"
	"github.com/momentics/sigcore/poll"
)

// fakeProvider is a controllable external deadline provider.
type fakeProvider struct {
	micros int64
	ok     bool
	err    error
	calls  int
}

func (p *fakeProvider) NextTimeout() (int64, bool, error) {
	p.calls++
	return p.micros, p.ok, p.err
}

// fakeDriver drives the lifecycle paths under test.
type fakeDriver struct {
	name        string
	startErr    error
	started     int
	stopped     int
	onStart     func(dev *device.Instance) error
	onStop      func(dev *device.Instance)
	commitErr   error
	commitCalls int
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Open(dev *device.Instance) error { return nil }

func (d *fakeDriver) AcquisitionStart(dev *device.Instance, data any) error {
	d.started++
	if d.startErr != nil {
		return d.startErr
	}
	if d.onStart != nil {
		return d.onStart(dev)
	}
	return nil
}

func (d *fakeDriver) AcquisitionStop(dev *device.Instance, data any) error {
	d.stopped++
	if d.onStop != nil {
		d.onStop(dev)
	}
	return nil
}

func (d *fakeDriver) CommitConfig(dev *device.Instance, snapshot map[string]any) error {
	d.commitCalls++
	return d.commitErr
}

// attachVirtual attaches a driverless device so Run accepts the session.
func attachVirtual(t *testing.T, s *Session) *device.Instance {
	t.Helper()
	dev := device.NewInstance(nil, "virt", "loopback")
	dev.AddChannel(0, device.ChannelLogic, "D0")
	require.NoError(t, s.DevAdd(dev))
	return dev
}

// Scenario S1: three timers at 10/20/40 ms, run for ~100 ms, fire counts
// track the periods.
func TestTimerFanOut(t *testing.T) {
	s := New(nil)
	attachVirtual(t, s)

	var fires [3]int
	periods := []int{10, 20, 40}
	for i, ms := range periods {
		i := i
		require.NoError(t, s.SourceAdd(-(i + 1), 0, ms, func(fd int, revents api.Events, data any) bool {
			fires[i]++
			return true
		}, nil))
	}

	// Closer tears the registry down after 100 ms so Run returns.
	require.NoError(t, s.SourceAdd(-100, 0, 100, func(fd int, revents api.Events, data any) bool {
		for i := range periods {
			require.NoError(t, s.SourceRemove(-(i + 1)))
		}
		return false
	}, nil))

	require.NoError(t, s.Run())

	assert.InDelta(t, 10, fires[0], 2)
	assert.InDelta(t, 5, fires[1], 2)
	assert.InDelta(t, 2, fires[2], 1)
}

// Scenario S2: a source whose callback returns false on its third call
// is gone afterwards and Run returns on the empty registry.
func TestSelfRemovingSource(t *testing.T) {
	s := New(nil)
	attachVirtual(t, s)

	calls := 0
	require.NoError(t, s.SourceAdd(-1, 0, 5, func(fd int, revents api.Events, data any) bool {
		calls++
		return calls < 3
	}, nil))

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return after the source removed itself")
	}
	assert.Equal(t, 3, calls)
	assert.Zero(t, s.SourceCount())
}

// Scenario S3: a callback adding a second timer mid-run; both fire from
// then on.
func TestAddSourceDuringCallback(t *testing.T) {
	s := New(nil)
	attachVirtual(t, s)

	total := 0
	second := func(fd int, revents api.Events, data any) bool {
		total++
		return true
	}

	first := true
	require.NoError(t, s.SourceAdd(-1, 0, 10, func(fd int, revents api.Events, data any) bool {
		total++
		if first {
			first = false
			require.NoError(t, s.SourceAdd(-2, 0, 10, second, nil))
		}
		return true
	}, nil))

	require.NoError(t, s.SourceAdd(-100, 0, 100, func(fd int, revents api.Events, data any) bool {
		_ = s.SourceRemove(-1)
		_ = s.SourceRemove(-2)
		return false
	}, nil))

	require.NoError(t, s.Run())

	// 10 fires from the first timer plus ~9 from the one added at the
	// first fire.
	assert.InDelta(t, 19, total, 3)
}

// Scenario S4 / property 6: stop latency is bounded by one in-flight
// callback plus one poll cycle.
func TestStopLatency(t *testing.T) {
	s := New(nil)

	drv := &fakeDriver{name: "latcheck"}
	drv.onStop = func(dev *device.Instance) {
		_ = s.SourceRemove(-1)
	}
	dev := device.NewInstance(drv, "acme", "slowpoke")
	dev.AddChannel(0, device.ChannelLogic, "D0")
	require.NoError(t, s.DevAdd(dev))

	require.NoError(t, s.SourceAdd(-1, 0, 1, func(fd int, revents api.Events, data any) bool {
		time.Sleep(5 * time.Millisecond)
		return true
	}, nil))

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	time.Sleep(15 * time.Millisecond)
	stopAt := time.Now()
	s.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return after stop")
	}
	// One 5 ms callback may be in flight; allow scheduler slack.
	assert.Less(t, time.Since(stopAt), 30*time.Millisecond)
	assert.Equal(t, 1, drv.stopped)
}

// Property 5: timers do not fire in an iteration where real I/O
// happened.
func TestIOSuppressesTimers(t *testing.T) {
	s := New(nil)
	attachVirtual(t, s)
	r, w := testPipe(t)

	_, err := w.Write([]byte{1})
	require.NoError(t, err)

	timerFired := 0
	pipeFired := 0
	require.NoError(t, s.SourceAdd(-1, 0, 0, func(fd int, revents api.Events, data any) bool {
		timerFired++
		return true
	}, nil))
	require.NoError(t, s.SourceAddFile(r, api.EventIn, -1, func(fd int, revents api.Events, data any) bool {
		pipeFired++
		assert.Equal(t, int(r.Fd()), fd)
		assert.NotZero(t, revents&api.EventIn)
		return true
	}, nil))

	// The due timer must be skipped because the pipe is ready.
	time.Sleep(time.Millisecond)
	require.NoError(t, s.iterate())
	assert.Equal(t, 1, pipeFired)
	assert.Zero(t, timerFired)

	// Drain the pipe; with no I/O pending the timer fires.
	buf := make([]byte, 1)
	_, err = r.Read(buf)
	require.NoError(t, err)
	require.NoError(t, s.iterate())
	assert.Equal(t, 1, timerFired)
}

// Property 4: a source whose callback returned false is absent from the
// next scan.
func TestCallbackFalseRemovesSource(t *testing.T) {
	s := New(nil)
	attachVirtual(t, s)

	require.NoError(t, s.SourceAdd(-1, 0, 1, func(fd int, revents api.Events, data any) bool {
		return false
	}, nil))
	require.Equal(t, 1, s.SourceCount())

	require.NoError(t, s.iterate())
	assert.Zero(t, s.SourceCount())
}

// Pure timeout dispatch passes the sentinel event mask and the negative
// fd the timer was registered with.
func TestTimerCallbackArguments(t *testing.T) {
	s := New(nil)
	attachVirtual(t, s)

	var gotFd = 1
	var gotRevents api.Events = 1
	require.NoError(t, s.SourceAdd(-7, 0, 0, func(fd int, revents api.Events, data any) bool {
		gotFd = fd
		gotRevents = revents
		return false
	}, "payload"))

	time.Sleep(time.Millisecond)
	require.NoError(t, s.iterate())
	assert.Equal(t, -7, gotFd)
	assert.Zero(t, gotRevents)
}

func TestEmptyRegistryHonoursAbort(t *testing.T) {
	s := New(nil)

	drv := &fakeDriver{name: "idle"}
	dev := device.NewInstance(drv, "acme", "idler")
	dev.AddChannel(0, device.ChannelLogic, "D0")
	require.NoError(t, s.DevAdd(dev))

	s.Stop()
	require.NoError(t, s.iterate())
	assert.Equal(t, 1, drv.stopped)

	// The abort is consumed; a second pass stays quiet.
	require.NoError(t, s.iterate())
	assert.Equal(t, 1, drv.stopped)
}

func TestPollErrorPropagates(t *testing.T) {
	s := New(nil)
	attachVirtual(t, s)
	require.NoError(t, s.SourceAdd(-1, 0, 5, keepSource, nil))

	orig := pollWait
	t.Cleanup(func() { pollWait = orig })
	pollWait = func(descs []poll.Descriptor, timeoutMs int) (int, error) {
		return 0, fmt.Errorf("poll: boom: %w", api.ErrFailed)
	}

	err := s.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrFailed)
}

func TestProviderDeadlineFolded(t *testing.T) {
	provider := &fakeProvider{micros: 2_000, ok: true}
	ctx := NewContext()
	ctx.SetDeadlineProvider(provider)
	s := New(ctx)
	attachVirtual(t, s)
	r, _ := testPipe(t)

	fired := 0
	descs := []poll.Descriptor{{Fd: int(r.Fd()), Events: api.EventIn}}
	require.NoError(t, s.SourceAddDeadlineProvider(provider, descs, -1,
		func(fd int, revents api.Events, data any) bool {
			fired++
			return false
		}, nil))
	require.True(t, s.ctx.providerActive)

	// No I/O pending: the provider deadline alone must wake the engine
	// and fire the source with a zero event mask.
	start := time.Now()
	require.NoError(t, s.iterate())
	assert.Equal(t, 1, fired)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Positive(t, provider.calls)

	// Self-removal deactivated the piggy-backed deadline.
	assert.False(t, s.ctx.providerActive)
}

func TestProviderErrorAbortsIteration(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("usb stack gone")}
	ctx := NewContext()
	ctx.SetDeadlineProvider(provider)
	s := New(ctx)
	attachVirtual(t, s)
	r, _ := testPipe(t)

	descs := []poll.Descriptor{{Fd: int(r.Fd()), Events: api.EventIn}}
	require.NoError(t, s.SourceAddDeadlineProvider(provider, descs, -1, keepSource, nil))

	err := s.iterate()
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrFailed)
}

func TestMultiFdSourceGetsSentinelFd(t *testing.T) {
	provider := &fakeProvider{micros: 0, ok: true}
	ctx := NewContext()
	ctx.SetDeadlineProvider(provider)
	s := New(ctx)
	attachVirtual(t, s)
	r1, _ := testPipe(t)
	r2, _ := testPipe(t)

	gotFd := 0
	descs := []poll.Descriptor{
		{Fd: int(r1.Fd()), Events: api.EventIn},
		{Fd: int(r2.Fd()), Events: api.EventIn},
	}
	require.NoError(t, s.SourceAddDeadlineProvider(provider, descs, -1,
		func(fd int, revents api.Events, data any) bool {
			gotFd = fd
			return false
		}, nil))

	require.NoError(t, s.iterate())
	assert.Equal(t, -1, gotFd)
}
