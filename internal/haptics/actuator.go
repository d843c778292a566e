package haptics

// Actuator is the platform haptic engine.
//
// Start must be a no-op on an engine that is already running. Device-level
// interruptions are reported to the Controller out of band through
// HandleEngineStopped and HandleEngineReset.
type Actuator interface {
	Start() error
	Stop() error
	PlayContinuous(p Parameters) (Player, error)
	PlayPattern(pulses []Pulse) error
}

// Player is a handle to a running continuous pattern.
type Player interface {
	SetParameters(p Parameters) error
	Stop() error
}
