package physics

import (
	"math/rand"

	"github.com/aquilax/go-perlin"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	perlinAlpha   = 2
	perlinBeta    = 2
	perlinOctaves = 3
	perlinScale   = 4
	perlinTries   = 32
)

// PerlinPositions rejection-samples positions from a noise field. Each type
// sees its own slice of the field, so types start out in separate patches.
func PerlinPositions(seed int64) PositionSetter {
	rng := rand.New(rand.NewSource(seed))
	noise := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)
	return func(typ, matrixSize int) r3.Vec {
		var p r3.Vec
		for i := 0; i < perlinTries; i++ {
			p = r3.Vec{X: rng.Float64(), Y: rng.Float64()}
			density := (noise.Noise3D(p.X*perlinScale, p.Y*perlinScale, float64(typ)) + 1) / 2
			if rng.Float64() < density {
				break
			}
		}
		return p
	}
}
