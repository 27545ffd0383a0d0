package snapshot

import (
	"fmt"

	"github.com/olivierh59500/particle-life-engine/internal/distributor"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
)

// Snapshot is a reader-owned copy of the simulation state. Positions and
// velocities are packed as x, y, z triples.
type Snapshot struct {
	Positions  []float64
	Velocities []float64
	Types      []int
	TypeCounts []int

	Settings         physics.Settings
	ParticleCount    int
	PreferredWorkers int
	Generation       uint64
}

// Take copies the engine state into s. The particle arrays are copied in
// parallel chunks through d; buffers are only reallocated when the
// particle count changed. Take must run on the loop goroutine.
func (s *Snapshot) Take(p *physics.Physics, d *distributor.Distributor) error {
	n := len(p.Particles)
	if len(s.Types) != n || s.Positions == nil {
		s.Positions = make([]float64, 3*n)
		s.Velocities = make([]float64, 3*n)
		s.Types = make([]int, n)
	}

	particles := p.Particles
	if err := d.Distribute(n, func(c distributor.Chunk) {
		for i := c.Start; i < c.End; i++ {
			q := &particles[i]
			i3 := 3 * i
			s.Positions[i3] = q.Position.X
			s.Positions[i3+1] = q.Position.Y
			s.Positions[i3+2] = q.Position.Z
			s.Velocities[i3] = q.Velocity.X
			s.Velocities[i3+1] = q.Velocity.Y
			s.Velocities[i3+2] = q.Velocity.Z
			s.Types[i] = q.Type
		}
	}); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	s.Settings = p.Settings.DeepCopy()
	s.ParticleCount = n
	s.PreferredWorkers = p.PreferredWorkers()

	s.TypeCounts = append(s.TypeCounts[:0], p.TypeCounts()...)
	s.Generation++
	return nil
}

// Position returns particle i's position.
func (s *Snapshot) Position(i int) (x, y, z float64) {
	return s.Positions[3*i], s.Positions[3*i+1], s.Positions[3*i+2]
}

// Velocity returns particle i's velocity.
func (s *Snapshot) Velocity(i int) (x, y, z float64) {
	return s.Velocities[3*i], s.Velocities[3*i+1], s.Velocities[3*i+2]
}
