package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func cursorPhysics(t *testing.T, b Boundary) *Physics {
	p := newTestPhysics(t, WithSettings(pairSettings(b)), WithParticleCount(0), WithMatrixSize(2))
	p.Particles = []Particle{
		{Position: r3.Vec{X: 0.5, Y: 0.5}},
		{Position: r3.Vec{X: 0.55, Y: 0.5}},
		{Position: r3.Vec{X: 0.01, Y: 0.5}},
		{Position: r3.Vec{X: 0.99, Y: 0.5}},
	}
	return p
}

func TestCursor_CountWithin(t *testing.T) {
	p := cursorPhysics(t, Wrap)
	assert.Equal(t, 2, p.CountWithin(Cursor{Center: r3.Vec{X: 0.5, Y: 0.5}, Radius: 0.1}))
	assert.Equal(t, 2, p.CountWithin(Cursor{Center: r3.Vec{X: 0, Y: 0.5}, Radius: 0.05}), "wraps across the border")

	p.Settings.Boundary = Clamp
	assert.Equal(t, 1, p.CountWithin(Cursor{Center: r3.Vec{X: 0, Y: 0.5}, Radius: 0.05}))
}

func TestCursor_MoveWithin(t *testing.T) {
	p := cursorPhysics(t, Wrap)
	moved := p.MoveWithin(Cursor{Center: r3.Vec{X: 0, Y: 0.5}, Radius: 0.05}, r3.Vec{X: -0.02})
	assert.Equal(t, 2, moved)
	assert.InDelta(t, 0.99, p.Particles[2].Position.X, 1e-12)
	assert.InDelta(t, 0.97, p.Particles[3].Position.X, 1e-12)
	assert.Equal(t, 0.5, p.Particles[0].Position.X)
}

func TestCursor_Brush(t *testing.T) {
	p := cursorPhysics(t, Wrap)
	c := Cursor{Center: r3.Vec{X: 0.25, Y: 0.25}, Radius: 0.05}
	p.Brush(c, 20)
	assert.Len(t, p.Particles, 24)
	assert.Equal(t, 20, p.CountWithin(c))
	for _, q := range p.Particles[4:] {
		assert.Less(t, q.Type, 2)
	}
}

func TestCursor_RemoveWithin(t *testing.T) {
	p := cursorPhysics(t, Wrap)
	removed := p.RemoveWithin(Cursor{Center: r3.Vec{X: 0.5, Y: 0.5}, Radius: 0.1})
	assert.Equal(t, 2, removed)
	assert.Len(t, p.Particles, 2)
	assert.Equal(t, 0.01, p.Particles[0].Position.X)
}
