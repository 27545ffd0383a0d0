package physics

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Accelerator maps an interaction coefficient and a relative position,
// normalized by rmax, to an acceleration. It must be pure.
type Accelerator func(a float64, pos r3.Vec) r3.Vec

// PositionSetter returns a position for a new particle of the given type.
type PositionSetter func(typ, matrixSize int) r3.Vec

// TypeSetter returns a type in [0, matrixSize) for a particle.
type TypeSetter func(pos, vel r3.Vec, prevType, matrixSize int) int

// MatrixGenerator returns a new matrix of the requested size.
type MatrixGenerator func(size int) *Matrix

// DefaultAccelerator repels below beta and applies a tent-shaped force
// scaled by a between beta and 1.
func DefaultAccelerator(a float64, pos r3.Vec) r3.Vec {
	const beta = 0.3
	dist := r3.Norm(pos)
	var force float64
	if dist < beta {
		force = dist/beta - 1
	} else {
		force = a * (1 - math.Abs(1+beta-2*dist)/(1-beta))
	}
	return r3.Scale(force/dist, pos)
}

// UniformPositions spreads particles uniformly over the z = 0 plane.
func UniformPositions(seed int64) PositionSetter {
	rng := rand.New(rand.NewSource(seed))
	return func(typ, matrixSize int) r3.Vec {
		return r3.Vec{X: rng.Float64(), Y: rng.Float64()}
	}
}

// CenteredPositions places particles in a gaussian blob around the centre.
func CenteredPositions(seed int64) PositionSetter {
	rng := rand.New(rand.NewSource(seed))
	return func(typ, matrixSize int) r3.Vec {
		return r3.Vec{
			X: 0.5 + rng.NormFloat64()*0.1,
			Y: 0.5 + rng.NormFloat64()*0.1,
		}
	}
}

// RandomTypes assigns every type with equal probability.
func RandomTypes(seed int64) TypeSetter {
	rng := rand.New(rand.NewSource(seed))
	return func(pos, vel r3.Vec, prevType, matrixSize int) int {
		return rng.Intn(matrixSize)
	}
}

// SliceTypes colours particles in vertical stripes by their x coordinate.
func SliceTypes(int64) TypeSetter {
	return func(pos, vel r3.Vec, prevType, matrixSize int) int {
		t := int(pos.X * float64(matrixSize))
		return min(max(t, 0), matrixSize-1)
	}
}

// RandomMatrix fills every coefficient uniformly from [-1, 1].
func RandomMatrix(seed int64) MatrixGenerator {
	rng := rand.New(rand.NewSource(seed))
	return func(size int) *Matrix {
		m := NewMatrix(size)
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				m.Set(i, j, rng.Float64()*2-1)
			}
		}
		return m
	}
}

// SymmetricMatrix is RandomMatrix mirrored along the diagonal.
func SymmetricMatrix(seed int64) MatrixGenerator {
	rng := rand.New(rand.NewSource(seed))
	return func(size int) *Matrix {
		m := NewMatrix(size)
		for i := 0; i < size; i++ {
			for j := i; j < size; j++ {
				v := rng.Float64()*2 - 1
				m.Set(i, j, v)
				m.Set(j, i, v)
			}
		}
		return m
	}
}

// ZeroMatrix generates matrices without any interaction.
func ZeroMatrix(int64) MatrixGenerator {
	return func(size int) *Matrix { return NewMatrix(size) }
}

// Named strategy constructors, selectable from configuration.
var (
	PositionSetters = map[string]func(seed int64) PositionSetter{
		"uniform":  UniformPositions,
		"centered": CenteredPositions,
		"perlin":   PerlinPositions,
	}
	TypeSetters = map[string]func(seed int64) TypeSetter{
		"random": RandomTypes,
		"slices": SliceTypes,
	}
	MatrixGenerators = map[string]func(seed int64) MatrixGenerator{
		"random":    RandomMatrix,
		"symmetric": SymmetricMatrix,
		"zero":      ZeroMatrix,
	}
)

// Names returns the sorted keys of a strategy registry.
func Names[T any](registry map[string]T) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup fetches a strategy constructor by name.
func Lookup[T any](registry map[string]T, name string) (T, error) {
	s, ok := registry[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown strategy %q (have %v)", name, Names(registry))
	}
	return s, nil
}
