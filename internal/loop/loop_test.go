package loop

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventually = 2 * time.Second

func counting(steps *atomic.Int64) StepFunc {
	return func(float64) error {
		steps.Add(1)
		time.Sleep(100 * time.Microsecond)
		return nil
	}
}

func TestLoop_StartStop(t *testing.T) {
	l := New()
	assert.Equal(t, Stopped, l.State())

	var steps atomic.Int64
	require.NoError(t, l.Start(counting(&steps)))
	assert.ErrorIs(t, l.Start(counting(&steps)), ErrNotStopped)
	assert.Equal(t, Running, l.State())

	require.Eventually(t, func() bool { return steps.Load() > 10 }, eventually, time.Millisecond)
	require.Eventually(t, func() bool { return l.AvgRate() > 0 }, eventually, time.Millisecond)

	assert.True(t, l.Stop(time.Second))
	assert.Equal(t, Stopped, l.State())
	assert.NoError(t, l.Err())

	after := steps.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, steps.Load(), "no steps after Stop")
}

func TestLoop_Restart(t *testing.T) {
	l := New()
	var steps atomic.Int64
	require.NoError(t, l.Start(counting(&steps)))
	require.True(t, l.Stop(time.Second))

	steps.Store(0)
	require.NoError(t, l.Start(counting(&steps)))
	require.Eventually(t, func() bool { return steps.Load() > 0 }, eventually, time.Millisecond)
	require.True(t, l.Stop(time.Second))
}

func TestLoop_StopWhenNeverStarted(t *testing.T) {
	l := New()
	assert.True(t, l.Stop(0))
	l.Kill()
	assert.Equal(t, Stopped, l.State())
}

func TestLoop_TaskRunsBeforeNextStepAfterResume(t *testing.T) {
	l := New()

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	require.NoError(t, l.Start(func(float64) error {
		record("step")
		time.Sleep(100 * time.Microsecond)
		return nil
	}))
	defer l.Stop(time.Second)

	l.Pause()
	assert.True(t, l.Paused())
	require.Eventually(t, func() bool { return l.State() == Paused }, eventually, time.Millisecond)
	// let an in-flight step finish
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	events = nil
	mu.Unlock()

	ran := make(chan struct{})
	l.Enqueue(func() {
		record("task")
		close(ran)
	})
	select {
	case <-ran:
	case <-time.After(eventually):
		t.Fatal("task did not run while paused")
	}

	time.Sleep(5 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"task"}, events, "no steps while paused")
	mu.Unlock()

	l.Resume()
	assert.Equal(t, Running, l.State())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 2
	}, eventually, time.Millisecond)

	mu.Lock()
	assert.Equal(t, "task", events[0])
	assert.Equal(t, "step", events[1])
	mu.Unlock()
}

func TestLoop_EnqueueIsFIFO(t *testing.T) {
	l := New()
	l.Pause()

	var got []int
	for i := 0; i < 50; i++ {
		l.Enqueue(func() { got = append(got, i) })
	}
	assert.Equal(t, 50, l.Pending())

	done := make(chan struct{})
	l.Enqueue(func() { close(done) })
	require.NoError(t, l.Start(func(float64) error { return nil }))
	defer l.Stop(time.Second)

	select {
	case <-done:
	case <-time.After(eventually):
		t.Fatal("queue not drained")
	}
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_DoOnceRunsOnce(t *testing.T) {
	l := New()
	l.Pause()

	var runs atomic.Int64
	var last atomic.Int64
	for i := 1; i <= 3; i++ {
		l.DoOnce(func() {
			runs.Add(1)
			last.Store(int64(i))
		})
	}

	require.NoError(t, l.Start(func(float64) error { return nil }))
	defer l.Stop(time.Second)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, eventually, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
	assert.Equal(t, int64(3), last.Load())

	l.DoOnce(func() { runs.Add(1) })
	require.Eventually(t, func() bool { return runs.Load() == 2 }, eventually, time.Millisecond)
}

func TestLoop_StopDrainsQueue(t *testing.T) {
	l := New()
	require.NoError(t, l.Start(func(float64) error {
		time.Sleep(time.Millisecond)
		return nil
	}))

	var ran atomic.Bool
	l.Enqueue(func() { ran.Store(true) })
	require.True(t, l.Stop(time.Second))
	assert.True(t, ran.Load())
}

func TestLoop_StopTimeoutThenKill(t *testing.T) {
	l := New()
	entered := make(chan struct{})
	var once sync.Once
	require.NoError(t, l.Start(func(float64) error {
		once.Do(func() { close(entered) })
		time.Sleep(300 * time.Millisecond)
		return nil
	}))
	<-entered

	assert.False(t, l.Stop(0))
	assert.Equal(t, Stopping, l.State())

	var dropped atomic.Bool
	l.Enqueue(func() { dropped.Store(true) })

	l.Kill()
	assert.Equal(t, Stopped, l.State())

	select {
	case <-l.Done():
	case <-time.After(eventually):
		t.Fatal("loop goroutine did not exit after Kill")
	}
	assert.False(t, dropped.Load(), "queued tasks are abandoned on Kill")
}

func TestLoop_StartAfterKillWaitsForStep(t *testing.T) {
	l := New()
	var inFlight, peak atomic.Int64
	entered := make(chan struct{})
	var once sync.Once
	step := func(float64) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		once.Do(func() { close(entered) })
		time.Sleep(200 * time.Millisecond)
		return nil
	}
	require.NoError(t, l.Start(step))
	<-entered

	assert.False(t, l.Stop(0))
	l.Kill()
	assert.Equal(t, Stopped, l.State())
	assert.ErrorIs(t, l.Start(step), ErrNotStopped, "previous step still running")

	select {
	case <-l.Done():
	case <-time.After(eventually):
		t.Fatal("loop goroutine did not exit after Kill")
	}
	require.NoError(t, l.Start(step))
	l.Kill()
	<-l.Done()
	assert.Equal(t, int64(1), peak.Load(), "steps never overlap")
}

func TestLoop_StepErrorTerminates(t *testing.T) {
	boom := errors.New("boom")
	l := New()
	require.NoError(t, l.Start(func(float64) error { return boom }))

	select {
	case <-l.Done():
	case <-time.After(eventually):
		t.Fatal("loop did not terminate")
	}
	assert.ErrorIs(t, l.Err(), boom)
	assert.Equal(t, Stopped, l.State())
}

func TestLoop_PanicTerminates(t *testing.T) {
	l := New()
	require.NoError(t, l.Start(func(float64) error { panic("bad strategy") }))

	select {
	case <-l.Done():
	case <-time.After(eventually):
		t.Fatal("loop did not terminate")
	}
	require.Error(t, l.Err())
	assert.Contains(t, l.Err().Error(), "bad strategy")
}

func TestLoop_DtIsRealTime(t *testing.T) {
	l := New()
	dts := make(chan float64, 4)
	require.NoError(t, l.Start(func(dt float64) error {
		select {
		case dts <- dt:
		default:
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	}))
	defer l.Stop(time.Second)

	assert.Equal(t, 0.0, <-dts, "first iteration has no previous tick")
	assert.GreaterOrEqual(t, <-dts, 0.005)
}

func TestClock(t *testing.T) {
	c := newClock(4)
	start := time.Unix(0, 0)
	assert.Equal(t, time.Duration(0), c.tick(start))
	assert.Equal(t, 0.0, c.rate())

	for i := 1; i <= 10; i++ {
		c.tick(start.Add(time.Duration(i) * 10 * time.Millisecond))
	}
	assert.InDelta(t, 100, c.rate(), 1e-9)

	c.reset()
	assert.Equal(t, time.Duration(0), c.tick(start.Add(time.Hour)))
	assert.InDelta(t, 100, c.rate(), 1e-9, "reset keeps the window")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopping", Stopping.String())
	assert.Equal(t, "state(9)", State(9).String())
}
