// Package haptics maps obstacle distance to vibration and drives the
// actuator engine, including recovery from device interruptions.
package haptics

import (
	gomath "math"
	"time"

	"github.com/Faultbox/proxisense/internal/config"
)

const (
	minIntensity  = 0.1
	maxIntensity  = 1.0
	baseSharpness = 0.2
)

// Kind identifies what a Command asks the actuator to do.
type Kind int

const (
	None Kind = iota
	Start
	Update
	Stop
	Alert
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Start:
		return "start"
	case Update:
		return "update"
	case Stop:
		return "stop"
	case Alert:
		return "alert"
	default:
		return "unknown"
	}
}

// Parameters are the continuous pattern values, both in [0, 1].
type Parameters struct {
	Intensity float32
	Sharpness float32
}

// Pulse is one transient event in a burst, offset from the burst start.
type Pulse struct {
	At         time.Duration
	Parameters Parameters
}

// Curve is the distance-to-vibration mapping.
type Curve struct {
	StartDistance float32
	Multiplier    float32
	Exponent      float32
}

// CurveFromConfig extracts the curve from a config snapshot.
func CurveFromConfig(cfg *config.Config) Curve {
	return Curve{
		StartDistance: cfg.Haptics.StartDistance,
		Multiplier:    cfg.Haptics.IntensityMultiplier,
		Exponent:      cfg.Haptics.Exponent,
	}
}

// Derive returns the continuous parameters for distance. The second result
// is false when distance is at or beyond the start distance, meaning the
// continuous pattern should be off.
//
// progress = 1 - d/start is shaped by progress^exponent, a Stevens power
// law, so equal distance steps feel comparable across the range.
func (c Curve) Derive(distance float32) (Parameters, bool) {
	if !(c.StartDistance > 0) || !(distance < c.StartDistance) {
		return Parameters{}, false
	}
	progress := 1 - distance/c.StartDistance
	if progress > 1 {
		progress = 1
	}
	exp := c.Exponent
	if !(exp > 0) {
		exp = 0.5
	}
	perceived := float32(gomath.Pow(float64(progress), float64(exp)))
	return Parameters{
		Intensity: clamp(perceived*c.Multiplier, minIntensity, maxIntensity),
		Sharpness: clamp(baseSharpness+perceived*(1-baseSharpness), 0, 1),
	}, true
}

// Command is a value object for the haptic output side.
type Command struct {
	Kind       Kind
	Parameters Parameters
	Distance   float32
	Curve      Curve   // Lets the controller re-derive after a fault
	Pulses     []Pulse // Alert only
}

// Mapper tracks whether a continuous pattern is active so it can choose
// between starting, updating in place, and stopping.
type Mapper struct {
	active bool
}

// NewMapper creates a mapper with no pattern active.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Active reports whether a continuous pattern is running.
func (m *Mapper) Active() bool {
	return m.active
}

// Update computes the haptic command for distance. Pass +Inf when nothing
// is in view. Returns a None command when nothing needs to change.
func (m *Mapper) Update(distance float32, cfg *config.Config) Command {
	curve := CurveFromConfig(cfg)
	params, on := curve.Derive(distance)
	if !on {
		if !m.active {
			return Command{Kind: None, Distance: distance}
		}
		m.active = false
		return Command{Kind: Stop, Distance: distance}
	}

	kind := Update
	if !m.active {
		kind = Start
	}
	m.active = true
	return Command{Kind: kind, Parameters: params, Distance: distance, Curve: curve}
}

// Stop ends the continuous pattern if one is active.
func (m *Mapper) Stop() Command {
	if !m.active {
		return Command{Kind: None}
	}
	m.active = false
	return Command{Kind: Stop}
}

// TooCloseAlert builds the fixed burst of sharp, full-intensity pulses that
// overlays the continuous pattern.
func (m *Mapper) TooCloseAlert(cfg *config.Config) Command {
	n := cfg.Haptics.AlertPulses
	if n < 1 {
		n = 3
	}
	spacing := cfg.Haptics.AlertSpacing
	if spacing <= 0 {
		spacing = 150 * time.Millisecond
	}
	pulses := make([]Pulse, n)
	for i := range pulses {
		pulses[i] = Pulse{
			At:         time.Duration(i) * spacing,
			Parameters: Parameters{Intensity: 1, Sharpness: 1},
		}
	}
	return Command{Kind: Alert, Pulses: pulses}
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
