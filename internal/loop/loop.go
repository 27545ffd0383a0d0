package loop

import (
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olivierh59500/particle-life-engine/internal/logging"
)

// ErrNotStopped is returned by Start when the loop is already running.
var ErrNotStopped = errors.New("loop: already started")

// State of the loop.
type State int32

const (
	Stopped State = iota
	Running
	Paused
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StepFunc advances the simulation. dt is the real time in seconds since
// the previous iteration. A returned error terminates the loop.
type StepFunc func(dt float64) error

// Loop calls a StepFunc back to back on its own goroutine. Other goroutines
// change simulation state only through Enqueue and DoOnce, whose tasks run
// on the loop goroutine between steps.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	once  atomic.Pointer[func()]

	paused atomic.Bool
	state  atomic.Int32
	rate   atomic.Uint64 // math.Float64bits of the rolling step rate

	wake chan struct{}
	stop chan struct{}
	kill chan struct{}
	done chan struct{}
	err  error

	window int
	log    logging.Logger
}

// Option configures New.
type Option func(*Loop)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l logging.Logger) Option {
	return func(lp *Loop) { lp.log = l }
}

// WithRateWindow sets how many iterations the average rate covers.
func WithRateWindow(n int) Option {
	return func(lp *Loop) {
		if n > 0 {
			lp.window = n
		}
	}
}

// New creates a stopped loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		window: 60,
		log:    logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	closed := make(chan struct{})
	close(closed)
	l.done = closed
	return l
}

// State returns the current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Start launches the loop goroutine. The loop starts paused if Pause was
// called while stopped. Start returns ErrNotStopped while the goroutine of
// a previous run has not exited yet, which after Kill can outlast the
// Stopped state.
func (l *Loop) Start(step StepFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.State() != Stopped {
		return ErrNotStopped
	}
	select {
	case <-l.done:
	default:
		return ErrNotStopped
	}

	l.stop = make(chan struct{})
	l.kill = make(chan struct{})
	l.done = make(chan struct{})
	l.err = nil
	l.rate.Store(0)
	if l.paused.Load() {
		l.state.Store(int32(Paused))
	} else {
		l.state.Store(int32(Running))
	}

	go l.run(step, l.stop, l.kill, l.done)
	l.log.Infof("loop: started")
	return nil
}

func (l *Loop) run(step StepFunc, stop, kill <-chan struct{}, done chan struct{}) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop: step panicked: %v\n%s", r, debug.Stack())
		}
		l.finish(err, kill, done)
	}()

	c := newClock(l.window)
	for {
		select {
		case <-kill:
			return
		case <-stop:
			l.drain(kill)
			return
		default:
		}

		dt := c.tick(time.Now())
		l.drain(kill)

		if l.paused.Load() {
			// wait for a task, resume or stop instead of spinning
			c.reset()
			select {
			case <-l.wake:
			case <-stop:
			case <-kill:
			}
			continue
		}

		if err = step(dt.Seconds()); err != nil {
			return
		}
		l.rate.Store(math.Float64bits(c.rate()))
	}
}

func (l *Loop) finish(err error, kill <-chan struct{}, done chan struct{}) {
	l.mu.Lock()
	l.err = err
	l.state.Store(int32(Stopped))
	l.mu.Unlock()

	select {
	case <-kill:
		l.log.Warnf("loop: killed")
	default:
		if err != nil {
			l.log.Errorf("loop: terminated: %v", err)
		} else {
			l.log.Infof("loop: stopped")
		}
	}
	close(done)
}

// drain runs the queued tasks in FIFO order, then the DoOnce task.
func (l *Loop) drain(kill <-chan struct{}) {
	l.mu.Lock()
	tasks := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, task := range tasks {
		select {
		case <-kill:
			return
		default:
		}
		task()
	}
	if task := l.once.Swap(nil); task != nil {
		(*task)()
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Enqueue schedules task to run on the loop goroutine before the next step,
// or right away if the loop is paused. Tasks run in submission order.
func (l *Loop) Enqueue(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.signal()
}

// DoOnce schedules task like Enqueue, but keeps at most one such task
// pending: a call made before the loop picked up the previous one replaces
// it, so the pending task runs exactly once. It runs after the tasks
// queued with Enqueue.
func (l *Loop) DoOnce(task func()) {
	l.once.Store(&task)
	l.signal()
}

// Pending returns the number of queued tasks, not counting DoOnce.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Pause stops calling the step function. Queued tasks keep running.
func (l *Loop) Pause() {
	l.paused.Store(true)
	l.state.CompareAndSwap(int32(Running), int32(Paused))
}

// Resume continues calling the step function.
func (l *Loop) Resume() {
	l.paused.Store(false)
	l.state.CompareAndSwap(int32(Paused), int32(Running))
	l.signal()
}

// TogglePause switches between Pause and Resume.
func (l *Loop) TogglePause() {
	if l.paused.Load() {
		l.Resume()
	} else {
		l.Pause()
	}
}

// Paused reports whether stepping is paused.
func (l *Loop) Paused() bool {
	return l.paused.Load()
}

// AvgRate returns the average steps per second over the recent window.
func (l *Loop) AvgRate() float64 {
	return math.Float64frombits(l.rate.Load())
}

// Done is closed when the loop goroutine exits.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Err returns the error that terminated the last run, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Stop asks the loop to finish the current step and the queued tasks and
// waits up to timeout for it to exit. It reports whether the loop stopped.
// On false the caller is expected to call Kill.
func (l *Loop) Stop(timeout time.Duration) bool {
	l.mu.Lock()
	done := l.done
	if s := l.State(); s == Running || s == Paused {
		l.state.Store(int32(Stopping))
		close(l.stop)
	}
	l.mu.Unlock()

	select {
	case <-done:
		return true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		l.log.Warnf("loop: did not stop within %v", timeout)
		return false
	}
}

// Kill abandons the loop. Queued tasks are dropped; a step already in
// progress runs to completion on its own, after which the goroutine exits.
// The state is Stopped as soon as Kill returns, but the step may still be
// running: wait on Done before touching what the step uses or calling
// Start again.
func (l *Loop) Kill() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.State() == Stopped {
		return
	}
	select {
	case <-l.kill:
	default:
		close(l.kill)
	}
	l.queue = nil
	l.once.Store(nil)
	l.state.Store(int32(Stopped))
}
