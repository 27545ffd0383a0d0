package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is a point mass in the unit cube.
type Particle struct {
	Position r3.Vec
	Velocity r3.Vec
	Type     int
}

// wrapConnection maps each component of a difference of two positions in
// [0, 1] onto its shortest representative on the torus.
func wrapConnection(d r3.Vec) r3.Vec {
	return r3.Vec{X: wrapDelta(d.X), Y: wrapDelta(d.Y), Z: wrapDelta(d.Z)}
}

func wrapDelta(d float64) float64 {
	if d > 0.5 {
		return d - 1
	}
	if d < -0.5 {
		return d + 1
	}
	return d
}

// wrap moves every coordinate into [0, 1) by whole multiples of 1.
func wrap(p r3.Vec) r3.Vec {
	return r3.Vec{X: wrapCoord(p.X), Y: wrapCoord(p.Y), Z: wrapCoord(p.Z)}
}

func wrapCoord(x float64) float64 {
	x -= math.Floor(x)
	// tiny negative inputs round up to exactly 1
	if x >= 1 {
		x = 0
	}
	return x
}

// clamp clips every coordinate into [0, 1].
func clamp(p r3.Vec) r3.Vec {
	return r3.Vec{X: clampCoord(p.X), Y: clampCoord(p.Y), Z: clampCoord(p.Z)}
}

func clampCoord(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
