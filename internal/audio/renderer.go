// Package audio renders spatial tone commands into a stereo sample stream
// and plays it on the system speaker.
package audio

import (
	"fmt"
	gomath "math"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"go.uber.org/zap"

	"github.com/Faultbox/proxisense/internal/logger"
	"github.com/Faultbox/proxisense/internal/tone"
	"github.com/Faultbox/proxisense/pkg/math"
)

// DefaultSampleRate is the default sample rate for tone playback.
const DefaultSampleRate = beep.SampleRate(44100)

const resampleQuality = 4

// State is a copy of what the renderer is currently producing.
type State struct {
	Playing   bool
	Ambient   bool
	Band      tone.Band
	Frequency float64
	Volume    float32
	Pan       float64
	Rate      float32
}

// RendererStats counts renderer activity.
type RendererStats struct {
	Commands uint64
	Switches uint64
	Errors   uint64
}

// Renderer turns tone commands into audio. It implements beep.Streamer, so
// it can be handed to the speaker or pulled directly.
type Renderer struct {
	mu sync.Mutex

	sampleRate beep.SampleRate

	// Chain: sine -> resampler (rate) -> pan -> volume -> ctrl
	resampler *beep.Resampler
	pan       *effects.Pan
	volume    *effects.Volume
	ctrl      *beep.Ctrl

	state State
	stats RendererStats
}

// NewRenderer creates a silent renderer at the given sample rate.
func NewRenderer(sr beep.SampleRate) *Renderer {
	if sr <= 0 {
		sr = DefaultSampleRate
	}
	return &Renderer{sampleRate: sr}
}

// SampleRate returns the output sample rate.
func (r *Renderer) SampleRate() beep.SampleRate {
	return r.sampleRate
}

// State returns the current output parameters.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns a copy of the activity counters.
func (r *Renderer) Stats() RendererStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Apply updates the output for one command. A buffer switch or frequency
// change rebuilds the tone source; anything else is updated in place.
func (r *Renderer) Apply(cmd tone.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Commands++
	if cmd.Stop {
		if r.ctrl != nil {
			r.ctrl.Paused = true
		}
		r.state.Playing = false
		return nil
	}

	rate := float64(cmd.Rate)
	if !(rate > 0) {
		rate = 1
	}
	if cmd.BufferSwitch || r.ctrl == nil || cmd.Frequency != r.state.Frequency {
		if err := r.switchLocked(cmd.Frequency, rate); err != nil {
			r.stats.Errors++
			return fmt.Errorf("switch tone to %.1f Hz: %w", cmd.Frequency, err)
		}
		logger.Debug("tone buffer switched",
			zap.Stringer("band", cmd.Band),
			zap.Float64("frequency", cmd.Frequency))
	}

	r.resampler.SetRatio(rate)
	r.pan.Pan = panFor(cmd.Offset)
	exp, silent := gain(cmd.Volume)
	r.volume.Volume = exp
	r.volume.Silent = silent
	r.ctrl.Paused = false

	r.state = State{
		Playing:   true,
		Ambient:   cmd.Ambient,
		Band:      cmd.Band,
		Frequency: cmd.Frequency,
		Volume:    cmd.Volume,
		Pan:       r.pan.Pan,
		Rate:      float32(rate),
	}
	return nil
}

func (r *Renderer) switchLocked(freq, rate float64) error {
	src, err := generators.SineTone(r.sampleRate, freq)
	if err != nil {
		return err
	}
	r.resampler = beep.ResampleRatio(resampleQuality, rate, src)
	r.pan = &effects.Pan{Streamer: r.resampler}
	r.volume = &effects.Volume{Streamer: r.pan, Base: 2}
	r.ctrl = &beep.Ctrl{Streamer: r.volume}
	r.stats.Switches++
	return nil
}

// Stream implements beep.Streamer. It never ends: when nothing is playing
// it yields silence.
func (r *Renderer) Stream(samples [][2]float64) (n int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctrl == nil || !r.state.Playing {
		clear(samples)
		return len(samples), true
	}
	n, _ = r.ctrl.Stream(samples)
	clear(samples[n:])
	return len(samples), true
}

// Err implements beep.Streamer.
func (r *Renderer) Err() error {
	return nil
}

// gain converts a linear 0-1 volume into the exponent used by a base-2
// effects.Volume, so vol=0.5 -> -1, vol=0.25 -> -2.
func gain(vol float32) (exp float64, silent bool) {
	if !(vol > 0) {
		return 0, true
	}
	if vol > 1 {
		vol = 1
	}
	return gomath.Log2(float64(vol)), false
}

// panFor maps the horizontal bearing of the source offset to a stereo pan in
// [-1, 1], positive to the right.
func panFor(offset math.Vec3) float64 {
	h := gomath.Hypot(float64(offset.X), float64(offset.Z))
	if h < 1e-6 {
		return 0
	}
	p := float64(offset.X) / h
	if p < -1 {
		return -1
	}
	if p > 1 {
		return 1
	}
	return p
}
