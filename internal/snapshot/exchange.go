package snapshot

import (
	"sync/atomic"

	"github.com/olivierh59500/particle-life-engine/internal/distributor"
	"github.com/olivierh59500/particle-life-engine/internal/logging"
	"github.com/olivierh59500/particle-life-engine/internal/loop"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
)

// Exchange hands snapshots from the loop goroutine to one reader without
// locks. The loop only writes the buffer while ready is false; the reader
// only reads it while ready is true and clears ready when done.
type Exchange struct {
	snap  Snapshot
	dist  *distributor.Distributor
	ready atomic.Bool
	gen   atomic.Uint64
	log   logging.Logger
}

// NewExchange creates an exchange that copies with its own pool of workers.
func NewExchange(workers int, logger logging.Logger) *Exchange {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Exchange{
		dist: distributor.New(workers),
		log:  logger,
	}
}

// Take copies p into the buffer if the reader has released the previous
// snapshot. It must run on the loop goroutine and reports whether a new
// snapshot was published.
func (x *Exchange) Take(p *physics.Physics) bool {
	if x.ready.Load() {
		return false
	}
	if err := x.snap.Take(p, x.dist); err != nil {
		x.log.Warnf("snapshot: %v", err)
		return false
	}
	x.gen.Store(x.snap.Generation)
	x.ready.Store(true)
	return true
}

// Request asks the loop to take a snapshot of p. Calls made before the loop
// got to it collapse into one.
func (x *Exchange) Request(l *loop.Loop, p *physics.Physics) {
	l.DoOnce(func() { x.Take(p) })
}

// Acquire returns the published snapshot. The pointer stays valid until
// Release; the reader must not keep it afterwards.
func (x *Exchange) Acquire() (*Snapshot, bool) {
	if !x.ready.Load() {
		return nil, false
	}
	return &x.snap, true
}

// Release hands the buffer back to the loop for the next Take.
func (x *Exchange) Release() {
	x.ready.Store(false)
}

// Generation returns the number of snapshots published so far.
func (x *Exchange) Generation() uint64 {
	return x.gen.Load()
}

// PreferredWorkers returns the copy parallelism of the next Take.
func (x *Exchange) PreferredWorkers() int {
	return x.dist.PreferredWorkers()
}

// SetPreferredWorkers changes the copy parallelism from the next Take on.
func (x *Exchange) SetPreferredWorkers(n int) {
	x.dist.SetPreferredWorkers(n)
}

// Kill stops the exchange's worker pool and waits for it to exit.
func (x *Exchange) Kill() {
	x.dist.Kill()
	x.dist.Wait()
}
