package main

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/olivierh59500/particle-life-engine/internal/config"
	"github.com/olivierh59500/particle-life-engine/internal/logging"
	"github.com/olivierh59500/particle-life-engine/internal/loop"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
)

func TestHsvToRGB(t *testing.T) {
	r, g, b := hsvToRGB(0, 1, 1)
	assert.Equal(t, [3]float64{1, 0, 0}, [3]float64{r, g, b})
	r, g, b = hsvToRGB(120, 1, 1)
	assert.Equal(t, [3]float64{0, 1, 0}, [3]float64{r, g, b})
	r, g, b = hsvToRGB(240, 1, 1)
	assert.Equal(t, [3]float64{0, 0, 1}, [3]float64{r, g, b})
}

func TestTypeColor(t *testing.T) {
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, typeColor(0, 3))
	assert.NotEqual(t, typeColor(1, 3), typeColor(2, 3))
	// no types yet
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, typeColor(0, 0))
}

func TestScreenToSim(t *testing.T) {
	v := &Viewer{Width: 800, Height: 600, Zoom: 2, CamX: 100, CamY: 50, boundary: physics.Clamp}

	p := v.screenToSim(v.worldToScreenX(300), v.worldToScreenY(150))
	assert.InDelta(t, 0.5, p.X, 1e-12)
	assert.InDelta(t, 0.25, p.Y, 1e-12)
	assert.Zero(t, p.Z)

	// a wrapped world repeats every side pixels
	v.boundary = physics.Wrap
	p = v.screenToSim(v.worldToScreenX(300+600), v.worldToScreenY(150-600))
	assert.InDelta(t, 0.5, p.X, 1e-9)
	assert.InDelta(t, 0.25, p.Y, 1e-9)
}

func TestDensity(t *testing.T) {
	v := &Viewer{
		positions: []float64{0.01, 0.01, 0, 0.99, 0.99, 0, 0.011, 0.012, 0},
		count:     3,
	}
	cells, grid := v.density(100)
	assert.Equal(t, 10, cells)
	assert.Equal(t, 2, grid[0])
	assert.Equal(t, 1, grid[9*cells+9])
}

func newTestViewer(t *testing.T) *Viewer {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.Particles = 50
	cfg.Simulation.Workers = 2
	cfg.Simulation.SnapshotWorkers = 2
	cfg.Simulation.Seed = 3
	opts, err := cfg.Simulation.PhysicsOptions(logging.NewNoOpLogger())
	require.NoError(t, err)
	p, err := physics.New(physics.DefaultAccelerator, opts...)
	require.NoError(t, err)
	x := snapshot.NewExchange(cfg.Simulation.SnapshotWorkers, nil)
	l := loop.New(loop.WithRateWindow(cfg.Runtime.RateWindow))

	v := NewViewer(cfg, p, l, x, logging.NewNoOpLogger())
	// paused loops still run tasks
	l.Pause()
	require.NoError(t, l.Start(v.Step))
	t.Cleanup(func() { v.Shutdown(time.Second) })
	return v
}

func TestViewerAdjustWorkers(t *testing.T) {
	v := newTestViewer(t)

	v.adjustWorkers(1, false)
	require.Eventually(t, func() bool { return v.physics.PreferredWorkers() == 3 }, 2*time.Second, time.Millisecond)

	v.adjustWorkers(-1, true)
	v.adjustWorkers(-1, true)
	require.Eventually(t, func() bool { return v.exchange.PreferredWorkers() == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, 3, v.physics.PreferredWorkers())
}

func TestViewerTrackHovered(t *testing.T) {
	v := newTestViewer(t)

	// on a torus every point is within 0.71 of the centre
	v.trackHovered(physics.Cursor{Center: r3.Vec{X: 0.5, Y: 0.5}, Radius: 1})
	require.Eventually(t, func() bool { return v.hovered.Load() == 50 }, 2*time.Second, time.Millisecond)

	v.trackHovered(physics.Cursor{Center: r3.Vec{X: 0.5, Y: 0.5}, Radius: 0})
	require.Eventually(t, func() bool { return v.hovered.Load() == 0 }, 2*time.Second, time.Millisecond)
}

func TestViewerPullSnapshot(t *testing.T) {
	v := newTestViewer(t)

	require.Eventually(t, func() bool {
		v.pullSnapshot()
		return v.count == 50
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, 2, v.workers)
	assert.Len(t, v.positions, 150)
	assert.Len(t, v.typeCounts, 6)
	total := 0
	for _, n := range v.typeCounts {
		total += n
	}
	assert.Equal(t, 50, total)
}
