package pipeline

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/proxisense/internal/config"
	"github.com/Faultbox/proxisense/internal/logger"
)

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithConfigUpdates subscribes the runtime to configuration changes. Each
// value received is applied to the engine.
func WithConfigUpdates(ch <-chan *config.Config) RuntimeOption {
	return func(r *Runtime) { r.configs = ch }
}

// WithMemoryWarnings subscribes the runtime to memory pressure signals.
func WithMemoryWarnings(ch <-chan struct{}) RuntimeOption {
	return func(r *Runtime) { r.memory = ch }
}

// Runtime runs everything around the engine that is not driven by the frame
// callback: the periodic cache reset, config and memory subscriptions, and
// command delivery. All engine mutations still go through the engine lock.
type Runtime struct {
	engine     *Engine
	dispatcher *Dispatcher
	configs    <-chan *config.Config
	memory     <-chan struct{}
}

// NewRuntime wires an engine to a dispatcher.
func NewRuntime(e *Engine, d *Dispatcher, opts ...RuntimeOption) *Runtime {
	r := &Runtime{engine: e, dispatcher: d}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is cancelled. On the way out it stops all feedback
// and delivers the final stop commands.
func (r *Runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.dispatcher.Run(gctx, r.engine.Commands())
	})
	g.Go(func() error {
		return r.control(gctx)
	})
	err := g.Wait()

	r.engine.StopAll()
	return multierr.Append(err, r.dispatcher.Drain(r.engine.Commands()))
}

// control handles the periodic reset timer and the subscriptions. The timer
// follows the configured interval across config changes; zero disables it.
func (r *Runtime) control(ctx context.Context) error {
	interval := r.engine.Config().Eviction.ResetInterval
	var ticker *time.Ticker
	var tick <-chan time.Time
	arm := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			tick = ticker.C
		}
	}
	arm(interval)
	defer arm(0)

	configs := r.configs
	memory := r.memory
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			r.engine.ResetCache(ResetPeriodic)
		case cfg, ok := <-configs:
			if !ok {
				configs = nil
				continue
			}
			r.engine.ApplyConfig(cfg)
			if d := r.engine.Config().Eviction.ResetInterval; d != interval {
				logger.Info("periodic reset interval changed",
					zap.Duration("from", interval),
					zap.Duration("to", d))
				interval = d
				arm(d)
			}
		case _, ok := <-memory:
			if !ok {
				memory = nil
				continue
			}
			logger.Warn("memory pressure, dropping mesh cache")
			r.engine.HandleMemoryWarning()
		}
	}
}
