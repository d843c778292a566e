package config

import (
	"fmt"
	"math"
	"time"
)

// minThresholdGap is the smallest absolute distance between adjacent
// proximity thresholds. Sanitize also keeps the escalation point of the outer
// threshold at or beyond the release point of the inner one.
const minThresholdGap = 0.05

// nextThreshold is the smallest threshold allowed above t: far enough that
// next*(1-h) >= t*(1+h), and at least minThresholdGap away.
func nextThreshold(t, h float32) float32 {
	return max(t+minThresholdGap, t*(1+h)/(1-h))
}

// Sanitize returns a copy of c with every out-of-range value clamped to a
// safe range. The returned notes describe each adjustment for logging.
// It never fails: a bad setting degrades to a usable one.
func (c *Config) Sanitize() (*Config, []string) {
	out := c.Clone()
	d := Default()
	var notes []string

	fix := func(name string, from, to any) {
		notes = append(notes, fmt.Sprintf("%s: %v -> %v", name, from, to))
	}
	positive := func(name string, v *float32, def float32) {
		if !finite32(*v) || *v <= 0 {
			fix(name, *v, def)
			*v = def
		}
	}
	clampF := func(name string, v *float32, lo, hi float32) {
		if !finite32(*v) {
			fix(name, *v, lo)
			*v = lo
			return
		}
		if *v < lo {
			fix(name, *v, lo)
			*v = lo
		} else if *v > hi {
			fix(name, *v, hi)
			*v = hi
		}
	}
	clampD := func(name string, v *time.Duration, lo, hi time.Duration) {
		if *v < lo {
			fix(name, *v, lo)
			*v = lo
		} else if *v > hi {
			fix(name, *v, hi)
			*v = hi
		}
	}
	clampI := func(name string, v *int, lo, hi int) {
		if *v < lo {
			fix(name, *v, lo)
			*v = lo
		} else if *v > hi {
			fix(name, *v, hi)
			*v = hi
		}
	}
	atLeast := func(name string, v *float32, min float32) {
		if *v < min {
			fix(name, *v, min)
			*v = min
		}
	}

	p := &out.Proximity
	positive("proximity.too_close_distance", &p.TooCloseDistance, d.Proximity.TooCloseDistance)
	positive("proximity.near_distance", &p.NearDistance, d.Proximity.NearDistance)
	positive("proximity.medium_distance", &p.MediumDistance, d.Proximity.MediumDistance)
	positive("proximity.max_distance", &p.MaxDistance, d.Proximity.MaxDistance)
	clampF("proximity.hysteresis", &p.Hysteresis, 0, 0.25)
	atLeast("proximity.near_distance", &p.NearDistance, nextThreshold(p.TooCloseDistance, p.Hysteresis))
	atLeast("proximity.medium_distance", &p.MediumDistance, nextThreshold(p.NearDistance, p.Hysteresis))
	atLeast("proximity.max_distance", &p.MaxDistance, p.MediumDistance)
	clampD("proximity.alert_rearm", &p.AlertRearm, 0, 5*time.Second)
	clampF("proximity.fov_cosine", &p.FOVCosine, -1, 1)

	a := &out.Audio
	a.LowFrequency = clampFreq("audio.low_frequency", a.LowFrequency, d.Audio.LowFrequency, fix)
	a.MediumFrequency = clampFreq("audio.medium_frequency", a.MediumFrequency, d.Audio.MediumFrequency, fix)
	a.HighFrequency = clampFreq("audio.high_frequency", a.HighFrequency, d.Audio.HighFrequency, fix)
	clampF("audio.volume_multiplier", &a.VolumeMultiplier, 0, 4)
	clampF("audio.ambient_volume", &a.AmbientVolume, 0, 1)
	clampF("audio.max_source_offset", &a.MaxSourceOffset, 0.1, 10)

	h := &out.Haptics
	positive("haptics.start_distance", &h.StartDistance, d.Haptics.StartDistance)
	clampF("haptics.intensity_multiplier", &h.IntensityMultiplier, 0, 4)
	clampF("haptics.exponent", &h.Exponent, 0.1, 3)
	clampI("haptics.alert_pulses", &h.AlertPulses, 1, 10)
	clampD("haptics.alert_spacing", &h.AlertSpacing, 20*time.Millisecond, time.Second)

	e := &out.Eviction
	clampD("eviction.reset_interval", &e.ResetInterval, 0, 24*time.Hour)
	if !finite32(e.MovementThreshold) || e.MovementThreshold < 0 {
		fix("eviction.movement_threshold", e.MovementThreshold, 0)
		e.MovementThreshold = 0
	}
	positive("eviction.relevance_radius", &e.RelevanceRadius, d.Eviction.RelevanceRadius)
	// Filtering inside the search radius would evict live obstacles.
	atLeast("eviction.relevance_radius", &e.RelevanceRadius, p.MaxDistance)
	clampI("eviction.filter_every_frames", &e.FilterEveryFrames, 1, 600)

	clampI("pipeline.command_queue_size", &out.Pipeline.CommandQueueSize, 8, 4096)
	clampI("pipeline.stats_window", &out.Pipeline.StatsWindow, 10, 10000)

	return out, notes
}

func clampFreq(name string, v, def float64, fix func(string, any, any)) float64 {
	if math.IsNaN(v) || v < 20 || v > 20000 {
		fix(name, v, def)
		return def
	}
	return v
}

func finite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
