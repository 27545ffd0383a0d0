package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
)

func TestRecorderKeepsLastRates(t *testing.T) {
	r := newRecorder(3)
	s := &snapshot.Snapshot{ParticleCount: 10, TypeCounts: []int{4, 6}, Generation: 1}
	for i := 1; i <= 5; i++ {
		r.add(s, float64(i))
	}
	assert.Equal(t, []float64{3, 4, 5}, r.rates)
	assert.Equal(t, 5, r.snapshots)
	assert.InDelta(t, 4.0, r.mean(), 1e-12)
}

func TestRecorderCopiesTypeCounts(t *testing.T) {
	r := newRecorder(3)
	s := &snapshot.Snapshot{ParticleCount: 3, TypeCounts: []int{1, 2}}
	r.add(s, 1)
	s.TypeCounts[0] = 99
	assert.Equal(t, []int{1, 2}, r.typeCounts)
}

func TestRenderReport(t *testing.T) {
	r := newRecorder(10)
	r.add(&snapshot.Snapshot{ParticleCount: 1234, TypeCounts: []int{600, 634}, Generation: 7}, 50)
	r.add(&snapshot.Snapshot{ParticleCount: 1234, TypeCounts: []int{600, 634}, Generation: 8}, 70)

	out := renderReport(r, 2*time.Second)
	assert.Contains(t, out, "particles")
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "0:600 1:634")
	assert.Contains(t, out, "generation 8")
	assert.Contains(t, out, "60.0")
	assert.Contains(t, out, "steps/s")
}

func TestRenderReportEmpty(t *testing.T) {
	out := renderReport(newRecorder(10), 0)
	assert.Contains(t, out, "0.0")
}
