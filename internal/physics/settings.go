package physics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSettings is wrapped by every Settings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Boundary selects how positions leave the unit cube.
type Boundary int

const (
	// Clamp clips every coordinate into [0, 1].
	Clamp Boundary = iota
	// Wrap treats the unit cube as a torus; coordinates stay in [0, 1).
	Wrap
)

func (b Boundary) String() string {
	switch b {
	case Clamp:
		return "clamp"
	case Wrap:
		return "wrap"
	default:
		return fmt.Sprintf("boundary(%d)", int(b))
	}
}

// ParseBoundary accepts "clamp" or "wrap", case-insensitive.
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clamp":
		return Clamp, nil
	case "wrap", "periodic":
		return Wrap, nil
	}
	return Clamp, fmt.Errorf("%w: unknown boundary %q", ErrInvalidSettings, s)
}

// Settings are the per-step parameters of the simulation.
type Settings struct {
	Rmax     float64 // interaction radius
	Friction float64 // velocity kept per 60 Hz frame
	Force    float64 // force scale
	Dt       float64 // time step in seconds
	Boundary Boundary
	Matrix   *Matrix
}

// DefaultSettings mirrors the values the desktop app starts with.
func DefaultSettings() Settings {
	return Settings{
		Rmax:     0.04,
		Friction: 0.85,
		Force:    1.0,
		Dt:       0.02,
		Boundary: Wrap,
	}
}

// DeepCopy returns a copy that shares no memory with s.
func (s Settings) DeepCopy() Settings {
	c := s
	if s.Matrix != nil {
		c.Matrix = s.Matrix.Clone()
	}
	return c
}

// Validate rejects settings that Update cannot run with.
func (s Settings) Validate() error {
	switch {
	case !(s.Rmax > 0):
		return fmt.Errorf("%w: rmax must be positive, got %g", ErrInvalidSettings, s.Rmax)
	case !(s.Dt > 0):
		return fmt.Errorf("%w: time step must be positive, got %g", ErrInvalidSettings, s.Dt)
	case !(s.Friction >= 0 && s.Friction <= 1):
		return fmt.Errorf("%w: friction must be in [0, 1], got %g", ErrInvalidSettings, s.Friction)
	case !(s.Force >= 0):
		return fmt.Errorf("%w: force must not be negative, got %g", ErrInvalidSettings, s.Force)
	case s.Boundary != Clamp && s.Boundary != Wrap:
		return fmt.Errorf("%w: unknown boundary %d", ErrInvalidSettings, int(s.Boundary))
	case s.Matrix == nil:
		return fmt.Errorf("%w: matrix is missing", ErrInvalidSettings)
	}
	return nil
}
