package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/olivierh59500/particle-life-engine/internal/config"
	"github.com/olivierh59500/particle-life-engine/internal/logging"
	"github.com/olivierh59500/particle-life-engine/internal/loop"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
)

func main() {
	cfg, err := config.Load("plife", os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.NewStdLogger(cfg.Runtime.LogLevel)

	// Initialize simulation from the resolved config
	opts, err := cfg.Simulation.PhysicsOptions(logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	p, err := physics.New(physics.DefaultAccelerator, opts...)
	if err != nil {
		logger.Fatalf("failed to create engine: %v", err)
	}
	x := snapshot.NewExchange(config.WorkerCount(cfg.Simulation.SnapshotWorkers), logger)
	l := loop.New(loop.WithLogger(logger), loop.WithRateWindow(cfg.Runtime.RateWindow))
	v := NewViewer(cfg, p, l, x, logger)
	if err := l.Start(v.Step); err != nil {
		logger.Fatalf("failed to start loop: %v", err)
	}

	// Set up Ebitengine game
	ebiten.SetWindowSize(cfg.Runtime.Width, cfg.Runtime.Height)
	ebiten.SetWindowTitle("Particle Life")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetTPS(60) // Target 60 ticks per second

	// Run the game loop
	runErr := ebiten.RunGame(v)
	v.Shutdown(cfg.Runtime.StopTimeout())
	if runErr != nil {
		logger.Fatalf("%v", runErr)
	}
}
