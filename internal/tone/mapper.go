// Package tone maps the selected obstacle to spatial tone parameters.
package tone

import (
	gomath "math"

	"github.com/Faultbox/proxisense/internal/config"
	"github.com/Faultbox/proxisense/internal/obstacle"
	"github.com/Faultbox/proxisense/internal/proximity"
	"github.com/Faultbox/proxisense/internal/sensor"
	"github.com/Faultbox/proxisense/pkg/math"
)

// Band is a tone band. Tighter bands play higher and faster.
type Band int

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMedium:
		return "medium"
	case BandHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Rate returns the playback rate for the band.
func (b Band) Rate() float32 {
	switch b {
	case BandMedium:
		return 1.2
	case BandHigh:
		return 1.5
	default:
		return 1.0
	}
}

// BandForLevel picks the band for a proximity level.
func BandForLevel(l proximity.Level) Band {
	switch l {
	case proximity.Near, proximity.TooClose:
		return BandHigh
	case proximity.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

const (
	minVolume = 0.1
	maxVolume = 1.0
)

// Command is a value object for the audio output device.
type Command struct {
	Stop         bool
	Ambient      bool
	Band         Band
	Frequency    float64
	Offset       math.Vec3 // Listener frame: +Z ahead, +X right
	Volume       float32
	Rate         float32
	BufferSwitch bool // Tone buffer must change; otherwise update in place
}

// Mapper converts obstacle and level into tone commands and remembers the
// current band so buffers are only switched on a band change.
type Mapper struct {
	band    Band
	playing bool
	dirty   bool // Next command must switch buffers
}

// NewMapper creates a mapper with no tone playing.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Playing reports whether a tone is playing, that is Update has been called
// since the last Stop.
func (m *Mapper) Playing() bool {
	return m.playing
}

// Invalidate forces the next command to switch buffers, used after a
// configuration change alters band frequencies. A playing tone stays playing.
func (m *Mapper) Invalidate() {
	m.dirty = true
}

// Update computes the tone command for this frame. A nil obstacle yields the
// quiet ambient tone.
func (m *Mapper) Update(obs *obstacle.Point, pose sensor.CameraPose, level proximity.Level, head sensor.HeadPose, cfg *config.Config) Command {
	a := cfg.Audio

	var cmd Command
	if obs == nil {
		cmd = Command{
			Ambient: true,
			Band:    BandLow,
			Offset:  math.Forward,
			Volume:  clamp(a.AmbientVolume, 0, maxVolume),
		}
	} else {
		cmd = Command{
			Band:   BandForLevel(level),
			Offset: Offset(obs.Position, pose, head, a.HeadTracking, a.MaxSourceOffset),
			Volume: Volume(obs.Distance, cfg.Proximity.MaxDistance, a.VolumeMultiplier),
		}
	}
	cmd.Rate = cmd.Band.Rate()
	cmd.Frequency = Frequency(cmd.Band, a)
	cmd.BufferSwitch = !m.playing || m.dirty || cmd.Band != m.band

	m.band = cmd.Band
	m.playing = true
	m.dirty = false
	return cmd
}

// Stop silences the tone and resets change detection.
func (m *Mapper) Stop() Command {
	m.playing = false
	m.dirty = false
	return Command{Stop: true, Band: m.band}
}

// Offset places the virtual source along the direction to the obstacle,
// at most maxOffset away, in the listener frame. The world direction is
// counter-rotated by the camera yaw and, with head tracking, by the head yaw
// as well, so the bearing stays fixed in world space.
func Offset(target math.Vec3, pose sensor.CameraPose, head sensor.HeadPose, headTracking bool, maxOffset float32) math.Vec3 {
	delta := target.Sub(pose.Position)
	dist := delta.Length()
	yaw := float32(gomath.Atan2(float64(pose.Forward.X), float64(pose.Forward.Z)))
	if headTracking && head.Available {
		yaw += head.Yaw
	}
	dir := delta.Normalize().RotateY(-yaw)
	if dist > maxOffset {
		dist = maxOffset
	}
	return dir.Scale(dist)
}

// Volume is (1 - d/max)^2 scaled by multiplier and clamped to [0.1, 1].
// The square favours near-field urgency over a linear falloff.
func Volume(distance, maxDistance, multiplier float32) float32 {
	if !(maxDistance > 0) {
		return minVolume
	}
	p := 1 - distance/maxDistance
	if p < 0 {
		p = 0
	}
	return clamp(p*p*multiplier, minVolume, maxVolume)
}

// Frequency returns the configured tone frequency for a band.
func Frequency(b Band, a config.AudioConfig) float64 {
	switch b {
	case BandHigh:
		return a.HighFrequency
	case BandMedium:
		return a.MediumFrequency
	default:
		return a.LowFrequency
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo || v != v {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
