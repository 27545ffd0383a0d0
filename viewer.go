package main

import (
	"fmt"
	"image/color"
	"math"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/olivierh59500/particle-life-engine/internal/config"
	"github.com/olivierh59500/particle-life-engine/internal/logging"
	"github.com/olivierh59500/particle-life-engine/internal/loop"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
)

// Viewer constants
const (
	ParticleSize = 2.0
	MinZoom      = 0.1 // Limit zoom out to prevent excessive tiling
	CountStep    = 1000
	BrushRadius  = 0.03 // in simulation units
	BrushRate    = 10   // particles added per frame while brushing
	HeatmapStep  = 10.0
	BarHeight    = 6.0
)

// Visualisation modes
const (
	VisParticles = iota
	VisHeatmap
	visModes
)

// Viewer draws snapshots of a running simulation and turns keyboard and
// mouse input into tasks for the loop. It never touches the engine from
// the Ebitengine goroutine.
type Viewer struct {
	Width, Height float64

	physics  *physics.Physics
	loop     *loop.Loop
	exchange *snapshot.Exchange
	log      logging.Logger

	// Copy of the latest snapshot
	positions  []float64
	types      []int
	typeCounts []int
	count      int
	boundary   physics.Boundary
	workers    int

	autoDt  atomic.Bool
	hovered atomic.Int64 // particles under the mouse cursor

	VisMode        int
	Zoom           float64
	CamX, CamY     float64 // Camera pan, in screen pixels at zoom 1
	PrevMX, PrevMY float64 // Previous mouse position for drag
}

// NewViewer creates a viewer for an engine driven by l.
func NewViewer(cfg config.Config, p *physics.Physics, l *loop.Loop, x *snapshot.Exchange, logger logging.Logger) *Viewer {
	v := &Viewer{
		Width:    float64(cfg.Runtime.Width),
		Height:   float64(cfg.Runtime.Height),
		physics:  p,
		loop:     l,
		exchange: x,
		log:      logger,
		boundary: p.Settings.Boundary,
		Zoom:     1.0,
	}
	v.autoDt.Store(cfg.Simulation.AutoDt)
	return v
}

// Step is the loop's step function.
func (v *Viewer) Step(dt float64) error {
	return v.physics.Advance(dt, v.autoDt.Load())
}

// Update is called each tick by Ebitengine
func (v *Viewer) Update() error {
	select {
	case <-v.loop.Done():
		if err := v.loop.Err(); err != nil {
			return err
		}
		return ebiten.Termination
	default:
	}
	if ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	v.handleInput()
	v.pullSnapshot()
	return nil
}

// pullSnapshot copies a published snapshot, hands the buffer back and asks
// for the next one.
func (v *Viewer) pullSnapshot() {
	if s, ok := v.exchange.Acquire(); ok {
		v.positions = append(v.positions[:0], s.Positions...)
		v.types = append(v.types[:0], s.Types...)
		v.typeCounts = append(v.typeCounts[:0], s.TypeCounts...)
		v.count = s.ParticleCount
		v.boundary = s.Settings.Boundary
		v.workers = s.PreferredWorkers
		v.exchange.Release()
	}
	v.exchange.Request(v.loop, v.physics)
}

// Shutdown stops the loop, killing it if it does not stop in time, and
// releases the worker pools.
func (v *Viewer) Shutdown(timeout time.Duration) {
	if !v.loop.Stop(timeout) {
		v.log.Warnf("viewer: loop did not stop in %v, killing it", timeout)
		v.loop.Kill()
	}
	v.physics.Kill()
	v.exchange.Kill()
}

// side is the length in pixels of the unit square at zoom 1.
func (v *Viewer) side() float64 {
	return math.Min(v.Width, v.Height)
}

// Draw is called each frame by Ebitengine
func (v *Viewer) Draw(screen *ebiten.Image) {
	screenWidth := float64(screen.Bounds().Dx())
	screenHeight := float64(screen.Bounds().Dy())
	side := v.side()

	// A clamped world is drawn once, a wrapped one is tiled over the view
	dxFrom, dxTo, dyFrom, dyTo := 0.0, 1.0, 0.0, 1.0
	if v.boundary == physics.Wrap {
		dxFrom = math.Floor(v.CamX / side)
		dxTo = math.Ceil((v.CamX + screenWidth/v.Zoom) / side)
		dyFrom = math.Floor(v.CamY / side)
		dyTo = math.Ceil((v.CamY + screenHeight/v.Zoom) / side)
	}

	switch v.VisMode {
	case VisParticles:
		for dx := dxFrom; dx < dxTo; dx++ {
			for dy := dyFrom; dy < dyTo; dy++ {
				offsetX := dx * side
				offsetY := dy * side
				for i := 0; i < v.count; i++ {
					sx := v.worldToScreenX(v.positions[3*i]*side + offsetX)
					sy := v.worldToScreenY(v.positions[3*i+1]*side + offsetY)
					if sx >= -ParticleSize && sx <= screenWidth+ParticleSize && sy >= -ParticleSize && sy <= screenHeight+ParticleSize {
						vector.DrawFilledCircle(screen, float32(sx), float32(sy), float32(ParticleSize*v.Zoom), v.typeColor(v.types[i]), true)
					}
				}
			}
		}
	case VisHeatmap:
		cells, grid := v.density(side)
		step := side / float64(cells)
		// mean occupancy maps to a quarter of the intensity range
		norm := 64 * float64(cells*cells) / math.Max(float64(v.count), 1)
		for dx := dxFrom; dx < dxTo; dx++ {
			for dy := dyFrom; dy < dyTo; dy++ {
				offsetX := dx * side
				offsetY := dy * side
				for cx := 0; cx < cells; cx++ {
					for cy := 0; cy < cells; cy++ {
						n := grid[cx*cells+cy]
						if n == 0 {
							continue
						}
						sx := v.worldToScreenX(float64(cx)*step + offsetX)
						sy := v.worldToScreenY(float64(cy)*step + offsetY)
						if sx >= -step*v.Zoom && sx <= screenWidth && sy >= -step*v.Zoom && sy <= screenHeight {
							intensity := uint8(math.Min(float64(n)*norm, 255))
							col := color.RGBA{intensity, 0, 255 - intensity, 255}
							vector.DrawFilledRect(screen, float32(sx), float32(sy), float32(step*v.Zoom), float32(step*v.Zoom), col, true)
						}
					}
				}
			}
		}
	}

	v.drawTypeBars(screen, screenWidth, screenHeight)
	ebitenutil.DebugPrint(screen, v.status())
}

// density counts particles per heatmap cell.
func (v *Viewer) density(side float64) (int, []int) {
	cells := max(int(side/HeatmapStep), 1)
	grid := make([]int, cells*cells)
	for i := 0; i < v.count; i++ {
		cx := min(max(int(v.positions[3*i]*float64(cells)), 0), cells-1)
		cy := min(max(int(v.positions[3*i+1]*float64(cells)), 0), cells-1)
		grid[cx*cells+cy]++
	}
	return cells, grid
}

// drawTypeBars draws the share of each type as a stacked bar along the
// bottom edge.
func (v *Viewer) drawTypeBars(screen *ebiten.Image, screenWidth, screenHeight float64) {
	if v.count == 0 {
		return
	}
	x := 0.0
	for t, n := range v.typeCounts {
		w := screenWidth * float64(n) / float64(v.count)
		vector.DrawFilledRect(screen, float32(x), float32(screenHeight-BarHeight), float32(w), BarHeight, v.typeColor(t), false)
		x += w
	}
}

func (v *Viewer) status() string {
	dt := "fixed dt"
	if v.autoDt.Load() {
		dt = "auto dt"
	}
	return fmt.Sprintf("FPS %.0f  steps/s %.1f  particles %d  types %d  hovered %d\n%s  %s  %s  queued %d  snapshot %d  workers %d  copy workers %d",
		ebiten.ActualFPS(), v.loop.AvgRate(), v.count, len(v.typeCounts), v.hovered.Load(),
		v.loop.State(), dt, v.boundary, v.loop.Pending(), v.exchange.Generation(), v.workers, v.exchange.PreferredWorkers())
}

// Layout follows the window size
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	v.Width, v.Height = float64(outsideWidth), float64(outsideHeight)
	return outsideWidth, outsideHeight
}

// handleInput processes keyboard and mouse input
func (v *Viewer) handleInput() {
	p := v.physics
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		v.loop.TogglePause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		v.loop.Enqueue(p.SetPositions)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		v.loop.Enqueue(p.SetTypes)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		v.loop.Enqueue(p.GenerateMatrix)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyE) {
		v.loop.Enqueue(p.SetTypeCountEqual)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		v.loop.Enqueue(v.toggleBoundary)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		v.autoDt.Store(!v.autoDt.Load())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		v.VisMode = (v.VisMode + 1) % visModes
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		v.loop.Enqueue(func() { p.SetParticleCount(p.ParticleCount() + CountStep) })
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		v.loop.Enqueue(func() { p.SetParticleCount(max(p.ParticleCount()-CountStep, 0)) })
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		v.loop.Enqueue(func() { p.SetMatrixSize(min(p.MatrixSize()+1, config.MaxTypes)) })
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		v.loop.Enqueue(func() { p.SetMatrixSize(max(p.MatrixSize()-1, 1)) })
	}
	// Shift selects the snapshot copy workers
	if inpututil.IsKeyJustPressed(ebiten.KeyPeriod) {
		v.adjustWorkers(1, ebiten.IsKeyPressed(ebiten.KeyShift))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyComma) {
		v.adjustWorkers(-1, ebiten.IsKeyPressed(ebiten.KeyShift))
	}

	// Zoom
	_, wheelY := ebiten.Wheel()
	v.Zoom += wheelY * 0.1
	if v.Zoom < MinZoom {
		v.Zoom = MinZoom
	}

	mx, my := ebiten.CursorPosition()
	fx, fy := float64(mx), float64(my)

	// Pan (drag)
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		v.CamX -= (fx - v.PrevMX) / v.Zoom
		v.CamY -= (fy - v.PrevMY) / v.Zoom
	}

	// Cursor tools
	c := physics.Cursor{Center: v.screenToSim(fx, fy), Radius: BrushRadius}
	v.trackHovered(c)
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		switch {
		case ebiten.IsKeyPressed(ebiten.KeyShift):
			v.loop.Enqueue(func() { p.RemoveWithin(c) })
		case ebiten.IsKeyPressed(ebiten.KeyControl):
			prev := v.screenToSim(v.PrevMX, v.PrevMY)
			delta := r3.Sub(c.Center, prev)
			c.Center = prev
			v.loop.Enqueue(func() { p.MoveWithin(c, delta) })
		default:
			v.loop.Enqueue(func() { p.Brush(c, BrushRate) })
		}
	}

	v.PrevMX = fx
	v.PrevMY = fy
}

// adjustWorkers changes the engine's worker count by delta, or the snapshot
// copy workers when copyWorkers is set. Counts never drop below one.
func (v *Viewer) adjustWorkers(delta int, copyWorkers bool) {
	p, x := v.physics, v.exchange
	v.loop.Enqueue(func() {
		if copyWorkers {
			x.SetPreferredWorkers(max(x.PreferredWorkers()+delta, 1))
		} else {
			p.SetPreferredWorkers(max(p.PreferredWorkers()+delta, 1))
		}
	})
}

// trackHovered has the loop count the particles under c.
func (v *Viewer) trackHovered(c physics.Cursor) {
	p := v.physics
	v.loop.Enqueue(func() { v.hovered.Store(int64(p.CountWithin(c))) })
}

// toggleBoundary runs on the loop goroutine.
func (v *Viewer) toggleBoundary() {
	s := v.physics.Settings
	if s.Boundary == physics.Wrap {
		s.Boundary = physics.Clamp
	} else {
		s.Boundary = physics.Wrap
	}
	if err := v.physics.ApplySettings(s); err != nil {
		v.log.Errorf("viewer: %v", err)
	}
}

// typeColor returns color for a type
func (v *Viewer) typeColor(t int) color.RGBA {
	return typeColor(t, len(v.typeCounts))
}

func typeColor(t, numTypes int) color.RGBA {
	// Simple hue-based colors
	h := float64(t) / float64(max(numTypes, 1)) * 360
	r, g, b := hsvToRGB(h, 1, 1)
	return color.RGBA{uint8(r * 255), uint8(g * 255), uint8(b * 255), 255}
}

// hsvToRGB helper
func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = math.Mod(h, 360)
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return r + m, g + m, b + m
}

// worldToScreenX/Y for camera
func (v *Viewer) worldToScreenX(wx float64) float64 {
	return (wx - v.CamX) * v.Zoom
}
func (v *Viewer) worldToScreenY(wy float64) float64 {
	return (wy - v.CamY) * v.Zoom
}

// screenToSim maps a screen point to simulation space on the z = 0 plane.
func (v *Viewer) screenToSim(sx, sy float64) r3.Vec {
	side := v.side()
	x := (sx/v.Zoom + v.CamX) / side
	y := (sy/v.Zoom + v.CamY) / side
	if v.boundary == physics.Wrap {
		x -= math.Floor(x)
		y -= math.Floor(y)
	}
	return r3.Vec{X: x, Y: y}
}
