// proxisim drives the proximity feedback engine with a synthetic walk toward
// a wall and prints what the user would hear and feel.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/proxisense/internal/audio"
	"github.com/Faultbox/proxisense/internal/config"
	"github.com/Faultbox/proxisense/internal/haptics"
	"github.com/Faultbox/proxisense/internal/logger"
	"github.com/Faultbox/proxisense/internal/pipeline"
)

var (
	flagSpeaker  = flag.Bool("speaker", false, "Play the tone on the system speaker")
	flagFPS      = flag.Int("fps", 30, "Sensor frames per second")
	flagSpeed    = flag.Float64("speed", 0.6, "Walking speed in meters per second")
	flagWall     = flag.Float64("wall", 4, "Distance to the wall at start")
	flagRealtime = flag.Bool("realtime", true, "Pace frames in wall-clock time")
	flagSave     = flag.String("save-config", "", "Write the effective config to this path and exit")
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	cfg := loaded.Config

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *flagSave != "" {
		if err := cfg.SaveTo(*flagSave); err != nil {
			logger.Error("failed to save config", zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", *flagSave)
		return
	}

	logger.Info("=== ProxiSense simulator ===", zap.String("config", loaded.Source))
	for _, note := range loaded.Clamped {
		logger.Warn("config value clamped", zap.String("change", note))
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("simulation finished")
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	renderer := audio.NewRenderer(audio.DefaultSampleRate)
	if *flagSpeaker {
		out, err := audio.Open(renderer)
		if err != nil {
			return fmt.Errorf("open speaker: %w", err)
		}
		defer out.Close()
	}

	act := haptics.NewMockActuator()
	ctrl := haptics.NewController(act)
	defer func() {
		err = multierr.Append(err, ctrl.Close())
	}()

	engine := pipeline.New(cfg)
	rt := pipeline.NewRuntime(engine, pipeline.NewDispatcher(renderer, ctrl))

	rtCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- rt.Run(rtCtx) }()

	w := newWalk(float32(*flagWall), float32(*flagSpeed), *flagFPS)
	simulate(ctx, engine, ctrl, act, w)

	cancel()
	err = <-done
	report(engine, renderer, ctrl)
	return err
}

// simulate feeds frames until the walker stops at the wall or ctx ends.
func simulate(ctx context.Context, engine *pipeline.Engine, ctrl *haptics.Controller, act *haptics.MockActuator, w *walk) {
	interval := time.Second / time.Duration(w.fps)
	var ticker *time.Ticker
	if *flagRealtime {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	start := time.Now()
	lastPrint := -1
	for !w.done() {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		f := w.next(start)
		engine.ProcessFrame(f)

		// Simulate a device interruption half way to the wall.
		if w.frame == w.interruptAt {
			act.Interrupt()
			ctrl.HandleEngineStopped("simulated audio session interruption")
		}

		if sec := int(w.elapsed().Seconds()); sec != lastPrint {
			lastPrint = sec
			printStatus(w, engine.Snapshot())
		}
	}
	printStatus(w, engine.Snapshot())
}

func printStatus(w *walk, s *pipeline.Snapshot) {
	dist := "clear"
	if s.HasObstacle {
		dist = fmt.Sprintf("%.2fm", s.Obstacle.Distance)
	}
	fmt.Printf("t=%5.1fs  z=%5.2f  obstacle=%-7s  level=%-9s  fragments=%3d  alerts=%d\n",
		w.elapsed().Seconds(), w.position().Z, dist, s.Level, s.Mesh.Fragments, s.Alerts)
}

func report(engine *pipeline.Engine, r *audio.Renderer, ctrl *haptics.Controller) {
	s := engine.Snapshot()
	rs := r.Stats()
	hs := ctrl.Stats()

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Frames:       %d (%d gaps)\n", s.Frames.Frames, s.Frames.Gaps)
	fmt.Printf("  Frame time:   mean %v  p95 %v  max %v\n", s.Frames.Mean, s.Frames.P95, s.Frames.Max)
	fmt.Printf("  Commands:     %d sent, %d dropped\n", s.Sent, s.Dropped)
	fmt.Printf("  Tone:         %d commands, %d buffer switches\n", rs.Commands, rs.Switches)
	fmt.Printf("  Haptics:      %d commands, %d alerts, %d restarts\n", hs.Commands, hs.Alerts, hs.Restarts)
	fmt.Printf("  Cache resets: %d\n", s.Resets.Total())
}
