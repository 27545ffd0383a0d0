package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

// recorder keeps the last step rates and the latest population figures.
type recorder struct {
	rates      []float64
	limit      int
	snapshots  int
	particles  int
	typeCounts []int
	generation uint64
}

func newRecorder(limit int) *recorder {
	return &recorder{limit: limit}
}

func (r *recorder) add(s *snapshot.Snapshot, rate float64) {
	r.rates = append(r.rates, rate)
	if len(r.rates) > r.limit {
		r.rates = r.rates[len(r.rates)-r.limit:]
	}
	r.snapshots++
	r.particles = s.ParticleCount
	r.typeCounts = append(r.typeCounts[:0], s.TypeCounts...)
	r.generation = s.Generation
}

func (r *recorder) mean() float64 {
	if len(r.rates) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r.rates {
		sum += v
	}
	return sum / float64(len(r.rates))
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func renderReport(r *recorder, elapsed time.Duration) string {
	counts := make([]string, len(r.typeCounts))
	for t, n := range r.typeCounts {
		counts[t] = fmt.Sprintf("%d:%d", t, n)
	}

	lines := []string{
		headerStyle.Render("particle life"),
		row("elapsed", elapsed.Round(time.Millisecond).String()),
		row("particles", fmt.Sprint(r.particles)),
		row("types", strings.Join(counts, " ")),
		row("snapshots", fmt.Sprintf("%d (generation %d)", r.snapshots, r.generation)),
		row("steps/s", fmt.Sprintf("%.1f", r.mean())),
	}
	if len(r.rates) > 1 {
		chart := asciigraph.Plot(r.rates, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("steps/s"))
		lines = append(lines, graphStyle.Render(chart))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
