// Command plife-headless runs a particle-life simulation without a window.
// It optionally streams snapshot frames over a websocket and prints a
// step-rate report when it exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olivierh59500/particle-life-engine/internal/config"
	"github.com/olivierh59500/particle-life-engine/internal/logging"
	"github.com/olivierh59500/particle-life-engine/internal/loop"
	"github.com/olivierh59500/particle-life-engine/internal/physics"
	"github.com/olivierh59500/particle-life-engine/internal/snapshot"
	"github.com/olivierh59500/particle-life-engine/internal/stream"
)

const (
	reportSamples   = 120
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load("plife-headless", args, os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger := logging.NewStdLogger(cfg.Runtime.LogLevel).
		WithOutput(log.New(os.Stderr, "plife-headless ", log.LstdFlags))
	logger.Debugf("log level %s", logger.Level())

	opts, err := cfg.Simulation.PhysicsOptions(logger)
	if err != nil {
		return err
	}
	p, err := physics.New(physics.DefaultAccelerator, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer p.Kill()
	x := snapshot.NewExchange(config.WorkerCount(cfg.Simulation.SnapshotWorkers), logger)
	defer x.Kill()

	l := loop.New(loop.WithLogger(logger), loop.WithRateWindow(cfg.Runtime.RateWindow))
	autoDt := cfg.Simulation.AutoDt
	if err := l.Start(func(dt float64) error { return p.Advance(dt, autoDt) }); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := cfg.Runtime.RunDuration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	hub := stream.NewHub(logger)
	defer hub.Close()
	rec := newRecorder(reportSamples)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sample(ctx, cfg.Runtime.SnapshotInterval(), l, p, x, hub, rec)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-l.Done():
			if err := l.Err(); err != nil {
				return err
			}
			return errors.New("loop exited")
		}
	})

	if cfg.Runtime.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: cfg.Runtime.Addr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

		g.Go(func() error {
			logger.Infof("streaming snapshots on ws://%s/ws", cfg.Runtime.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			// websocket connections are hijacked, the hub closes them
			_ = hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if !l.Stop(cfg.Runtime.StopTimeout()) {
		l.Kill()
	}
	fmt.Println(renderReport(rec, time.Since(start)))
	return err
}

// sample takes a snapshot every interval, records it and publishes it to
// the hub when someone is listening.
func sample(ctx context.Context, every time.Duration, l *loop.Loop, p *physics.Physics, x *snapshot.Exchange, hub *stream.Hub, rec *recorder) error {
	t := time.NewTicker(every)
	defer t.Stop()
	x.Request(l, p)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		s, ok := x.Acquire()
		if !ok {
			continue
		}
		rate := l.AvgRate()
		rec.add(s, rate)
		var frame *stream.Frame
		if hub.Clients() > 0 {
			f := stream.NewFrame(s, rate)
			frame = &f
		}
		x.Release()
		x.Request(l, p)

		if frame != nil {
			if err := hub.Publish(ctx, *frame); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
