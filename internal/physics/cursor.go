package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Cursor is a sphere in simulation space used to select, add, move or
// remove particles interactively.
type Cursor struct {
	Center r3.Vec
	Radius float64
}

// contains honours the boundary mode, so on a torus the sphere wraps
// around the edges of the unit cube.
func (c Cursor) contains(pos r3.Vec, b Boundary) bool {
	d := r3.Sub(pos, c.Center)
	if b == Wrap {
		d = wrapConnection(d)
	}
	return r3.Norm2(d) <= c.Radius*c.Radius
}

// randomPoint samples uniformly inside the disc of the cursor in the z
// plane of its centre.
func (c Cursor) randomPoint(u, v float64) r3.Vec {
	r := c.Radius * math.Sqrt(u)
	theta := 2 * math.Pi * v
	return r3.Add(c.Center, r3.Vec{X: r * math.Cos(theta), Y: r * math.Sin(theta)})
}

// CountWithin returns how many particles the cursor covers.
func (p *Physics) CountWithin(c Cursor) int {
	n := 0
	for i := range p.Particles {
		if c.contains(p.Particles[i].Position, p.Settings.Boundary) {
			n++
		}
	}
	return n
}

// MoveWithin shifts every particle under the cursor by delta.
func (p *Physics) MoveWithin(c Cursor, delta r3.Vec) int {
	moved := 0
	for i := range p.Particles {
		q := &p.Particles[i]
		if c.contains(q.Position, p.Settings.Boundary) {
			q.Position = p.EnsurePosition(r3.Add(q.Position, delta))
			moved++
		}
	}
	return moved
}

// Brush adds count particles at random points under the cursor, typed by
// the engine's type setter.
func (p *Physics) Brush(c Cursor, count int) {
	for i := 0; i < count; i++ {
		q := Particle{Position: p.EnsurePosition(c.randomPoint(p.rng.Float64(), p.rng.Float64()))}
		p.setType(&q)
		p.Particles = append(p.Particles, q)
	}
}

// RemoveWithin deletes every particle under the cursor and returns how
// many were removed.
func (p *Physics) RemoveWithin(c Cursor) int {
	kept := p.Particles[:0]
	for _, q := range p.Particles {
		if !c.contains(q.Position, p.Settings.Boundary) {
			kept = append(kept, q)
		}
	}
	removed := len(p.Particles) - len(kept)
	p.Particles = kept
	return removed
}
