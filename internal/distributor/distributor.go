package distributor

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrKilled is returned by Distribute once Kill has been called.
var ErrKilled = errors.New("distributor: killed")

// job is a single chunk handed to a worker, with the barrier it reports to.
type job struct {
	chunk Chunk
	fn    func(Chunk)
	done  chan<- error
}

// Distributor runs range-partitioned work on a persistent pool of worker
// goroutines and blocks the caller until every chunk has finished.
type Distributor struct {
	mu        sync.Mutex // serializes Distribute and pool resizing
	jobs      chan job
	stops     []chan struct{} // one per live worker
	preferred int
	prefMu    sync.Mutex

	quit     chan struct{}
	killOnce sync.Once
	wg       sync.WaitGroup
}

// New starts a distributor with the given number of workers (at least one).
func New(workers int) *Distributor {
	if workers < 1 {
		workers = 1
	}
	d := &Distributor{
		jobs:      make(chan job),
		preferred: workers,
		quit:      make(chan struct{}),
	}
	d.resize(workers)
	return d
}

// PreferredWorkers returns the worker count used by the next Distribute call.
func (d *Distributor) PreferredWorkers() int {
	d.prefMu.Lock()
	defer d.prefMu.Unlock()
	return d.preferred
}

// SetPreferredWorkers changes the pool size for the next Distribute call.
// Values below one are clamped to one. Work already in flight is unaffected.
func (d *Distributor) SetPreferredWorkers(n int) {
	if n < 1 {
		n = 1
	}
	d.prefMu.Lock()
	d.preferred = n
	d.prefMu.Unlock()
}

// Workers returns the number of live worker goroutines.
func (d *Distributor) workers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.stops)
}

// resize grows or shrinks the pool to n workers. Caller holds d.mu or is New.
func (d *Distributor) resize(n int) {
	for len(d.stops) < n {
		stop := make(chan struct{})
		d.stops = append(d.stops, stop)
		d.wg.Add(1)
		go d.work(stop)
	}
	for len(d.stops) > n {
		last := len(d.stops) - 1
		close(d.stops[last])
		d.stops = d.stops[:last]
	}
}

func (d *Distributor) work(stop <-chan struct{}) {
	defer d.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-d.quit:
			return
		case j := <-d.jobs:
			j.done <- run(j)
		}
	}
}

func run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("distributor: chunk [%d,%d) panicked: %v\n%s", j.chunk.Start, j.chunk.End, r, debug.Stack())
		}
	}()
	j.fn(j.chunk)
	return nil
}

// Distribute splits [0, n) into chunks, runs fn once per chunk on the pool
// and waits for all of them. fn must only touch its own index range.
// The first chunk error is returned after every chunk has reported.
// If the distributor is killed, Distribute returns ErrKilled without
// waiting for chunks still running.
func (d *Distributor) Distribute(n int, fn func(Chunk)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.quit:
		return ErrKilled
	default:
	}
	if n <= 0 {
		return nil
	}

	workers := d.PreferredWorkers()
	d.resize(workers)

	chunks := Split(n, workers)
	// buffered so workers never block on the barrier after a kill
	done := make(chan error, len(chunks))
	for _, c := range chunks {
		select {
		case d.jobs <- job{chunk: c, fn: fn, done: done}:
		case <-d.quit:
			return ErrKilled
		}
	}

	var first error
	for range chunks {
		select {
		case err := <-done:
			if err != nil && first == nil {
				first = err
			}
		case <-d.quit:
			return ErrKilled
		}
	}
	return first
}

// Kill stops all workers. In-flight and future Distribute calls return
// ErrKilled. Kill is safe to call more than once and from any goroutine.
func (d *Distributor) Kill() {
	d.killOnce.Do(func() {
		close(d.quit)
	})
}

// Wait blocks until every worker goroutine has exited. Only meaningful after Kill.
func (d *Distributor) Wait() {
	d.wg.Wait()
}

