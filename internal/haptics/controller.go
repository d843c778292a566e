package haptics

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/proxisense/internal/logger"
)

// ControllerStats counts actuator activity.
type ControllerStats struct {
	Commands uint64
	Alerts   uint64
	Faults   uint64
	Restarts uint64
}

// Controller applies haptic commands to an Actuator on the output side.
// It owns the continuous player handle and restarts the engine after
// interruptions, resuming the pattern from the last known distance.
// All methods are safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	act     Actuator
	running bool
	player  Player
	active  bool
	last    Command // Last Start/Update, used to resume
	stats   ControllerStats
}

// NewController wraps an actuator. The engine is started lazily on the
// first command.
func NewController(act Actuator) *Controller {
	return &Controller{act: act}
}

// Stats returns a copy of the activity counters.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Active reports whether a continuous pattern should be playing.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Apply executes one command. Failures are logged and recovered from; they
// never propagate to the caller.
func (c *Controller) Apply(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cmd.Kind == None {
		return
	}
	c.stats.Commands++

	switch cmd.Kind {
	case Start, Update:
		c.active = true
		c.last = cmd
		c.playLocked(cmd.Parameters)
	case Stop:
		c.active = false
		c.stopPlayerLocked()
	case Alert:
		c.stats.Alerts++
		c.alertLocked(cmd.Pulses)
	}
}

// HandleEngineStopped is called by the device layer when the engine stops
// on its own (audio session interruption, app suspension, server death).
func (c *Controller) HandleEngineStopped(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logger.Warn("haptic engine stopped", zap.String("reason", reason))
	c.recoverLocked()
}

// HandleEngineReset is called by the device layer after the engine was reset.
func (c *Controller) HandleEngineReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	logger.Warn("haptic engine reset")
	c.recoverLocked()
}

// Close stops any pattern and the engine.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.player != nil {
		err = multierr.Append(err, c.player.Stop())
		c.player = nil
	}
	if c.running {
		err = multierr.Append(err, c.act.Stop())
		c.running = false
	}
	c.active = false
	return err
}

func (c *Controller) ensureEngineLocked() bool {
	if c.running {
		return true
	}
	if err := c.act.Start(); err != nil {
		c.stats.Faults++
		logger.Warn("haptic engine start failed", zap.Error(err))
		return false
	}
	c.running = true
	return true
}

func (c *Controller) playLocked(p Parameters) {
	if !c.ensureEngineLocked() {
		return
	}
	if c.player != nil {
		err := c.player.SetParameters(p)
		if err == nil {
			return
		}
		c.stats.Faults++
		logger.Warn("haptic parameter update failed, restarting", zap.Error(err))
		c.recoverLocked()
		return
	}
	player, err := c.act.PlayContinuous(p)
	if err != nil {
		c.stats.Faults++
		logger.Warn("haptic pattern start failed", zap.Error(err))
		return
	}
	c.player = player
}

func (c *Controller) stopPlayerLocked() {
	if c.player == nil {
		return
	}
	if err := c.player.Stop(); err != nil {
		logger.Debug("haptic pattern stop failed", zap.Error(err))
	}
	c.player = nil
}

func (c *Controller) alertLocked(pulses []Pulse) {
	if !c.ensureEngineLocked() {
		return
	}
	err := c.act.PlayPattern(pulses)
	if err == nil {
		return
	}
	c.stats.Faults++
	logger.Warn("haptic alert failed, retrying after restart", zap.Error(err))
	c.recoverLocked()
	if c.running {
		if err := c.act.PlayPattern(pulses); err != nil {
			logger.Warn("haptic alert dropped", zap.Error(err))
		}
	}
}

// recoverLocked drops the stale player, restarts the engine and resumes the
// continuous pattern if one was active. Safe to call repeatedly.
func (c *Controller) recoverLocked() {
	if c.player != nil {
		// The handle is usually dead after a reset; stop it in case it is not.
		_ = c.player.Stop()
		c.player = nil
	}
	c.running = false
	if !c.ensureEngineLocked() {
		return
	}
	c.stats.Restarts++

	if !c.active {
		return
	}
	params, on := c.last.Curve.Derive(c.last.Distance)
	if !on {
		c.active = false
		return
	}
	player, err := c.act.PlayContinuous(params)
	if err != nil {
		c.stats.Faults++
		logger.Warn("haptic pattern resume failed", zap.Error(err))
		return
	}
	c.player = player
	logger.Info("haptic pattern resumed",
		zap.Float32("distance", c.last.Distance),
		zap.Float32("intensity", params.Intensity),
		zap.Float32("sharpness", params.Sharpness))
}
