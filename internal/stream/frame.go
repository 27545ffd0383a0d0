package stream

import (
	"encoding/json"
	"fmt"

	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
)

// Frame is the JSON form of a snapshot sent to remote viewers.
type Frame struct {
	Generation    uint64      `json:"generation"`
	ParticleCount int         `json:"particle_count"`
	Positions     []float64   `json:"positions"`
	Types         []int       `json:"types"`
	TypeCounts    []int       `json:"type_counts"`
	Boundary      string      `json:"boundary"`
	Rmax          float64     `json:"rmax"`
	Matrix        [][]float64 `json:"matrix"`
	StepRate      float64     `json:"step_rate"`
}

// NewFrame copies what a viewer needs out of s, so the snapshot can be
// released right after.
func NewFrame(s *snapshot.Snapshot, stepRate float64) Frame {
	return Frame{
		Generation:    s.Generation,
		ParticleCount: s.ParticleCount,
		Positions:     append([]float64(nil), s.Positions...),
		Types:         append([]int(nil), s.Types...),
		TypeCounts:    append([]int(nil), s.TypeCounts...),
		Boundary:      s.Settings.Boundary.String(),
		Rmax:          s.Settings.Rmax,
		Matrix:        s.Settings.Matrix.Rows(),
		StepRate:      stepRate,
	}
}

// JSON encodes the frame.
func (f Frame) JSON() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}
