package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/proxisense/internal/haptics"
	"github.com/Faultbox/proxisense/internal/logger"
	"github.com/Faultbox/proxisense/internal/tone"
)

// ToneSink renders tone commands, typically an audio.Renderer.
type ToneSink interface {
	Apply(cmd tone.Command) error
}

// HapticSink applies haptic commands, typically a haptics.Controller. It
// handles its own faults.
type HapticSink interface {
	Apply(cmd haptics.Command)
}

// DispatchStats counts delivered commands.
type DispatchStats struct {
	Tone   uint64
	Haptic uint64
	Errors uint64
}

// Dispatcher delivers queued commands to the output devices on the output
// side of the queue. A nil sink discards its commands.
type Dispatcher struct {
	tone   ToneSink
	haptic HapticSink

	toneCount   atomic.Uint64
	hapticCount atomic.Uint64
	errCount    atomic.Uint64
}

// NewDispatcher creates a dispatcher for the given sinks.
func NewDispatcher(t ToneSink, h HapticSink) *Dispatcher {
	return &Dispatcher{tone: t, haptic: h}
}

// Stats returns the delivery counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Tone:   d.toneCount.Load(),
		Haptic: d.hapticCount.Load(),
		Errors: d.errCount.Load(),
	}
}

// Deliver hands one command to its sink. Tone errors are logged and
// returned; they never stop delivery.
func (d *Dispatcher) Deliver(c Command) error {
	switch c.Kind {
	case ToneOutput:
		if d.tone == nil {
			return nil
		}
		d.toneCount.Add(1)
		if err := d.tone.Apply(c.Tone); err != nil {
			d.errCount.Add(1)
			logger.Warn("tone output failed",
				zap.Uint64("frame", c.Frame),
				zap.Stringer("band", c.Tone.Band),
				zap.Error(err))
			return err
		}
	case HapticOutput:
		if d.haptic == nil {
			return nil
		}
		d.hapticCount.Add(1)
		d.haptic.Apply(c.Haptic)
	}
	return nil
}

// Run delivers commands from in until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, in <-chan Command) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-in:
			_ = d.Deliver(c)
		}
	}
}

// Drain delivers whatever is already pending in without waiting for more,
// returning the combined delivery errors.
func (d *Dispatcher) Drain(in <-chan Command) error {
	var err error
	for {
		select {
		case c := <-in:
			err = multierr.Append(err, d.Deliver(c))
		default:
			return err
		}
	}
}
