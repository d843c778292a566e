// Package pipeline runs the per-frame proximity feedback loop: mesh
// maintenance, obstacle selection, level classification and command output.
package pipeline

import (
	gomath "math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/proxisense/internal/config"
	"github.com/Faultbox/proxisense/internal/haptics"
	"github.com/Faultbox/proxisense/internal/logger"
	"github.com/Faultbox/proxisense/internal/mesh"
	"github.com/Faultbox/proxisense/internal/obstacle"
	"github.com/Faultbox/proxisense/internal/proximity"
	"github.com/Faultbox/proxisense/internal/sensor"
	"github.com/Faultbox/proxisense/internal/tone"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for resets and for frames that
// carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCellSize sets the mesh store's spatial hash cell size.
func WithCellSize(size float32) Option {
	return func(e *Engine) { e.store = mesh.NewStore(size) }
}

// Engine owns all mutable feedback state. Every mutating entry point takes
// the same lock, so the mesh store has exactly one writer at a time whether
// the call comes from the frame callback, a timer or a lifecycle event.
// Nothing in the engine blocks on the output side.
type Engine struct {
	mu sync.Mutex

	cfg     *config.Config
	store   *mesh.Store
	machine *proximity.Machine
	tone    *tone.Mapper
	haptic  *haptics.Mapper
	queue   *Queue
	now     func() time.Time

	paused   bool
	lastTone tone.Command
	toneSent bool

	ev       eviction
	timer    *frameTimer
	frames   uint64
	gaps     uint64
	alerts   uint64
	tracking sensor.TrackingState

	obstacle    obstacle.Point
	hasObstacle bool
	centerDepth float32
	centerValid bool

	snap atomic.Pointer[Snapshot]
}

// New creates an engine from cfg, which is sanitized first.
func New(cfg *config.Config, opts ...Option) *Engine {
	clean := sanitize(cfg)
	e := &Engine{
		cfg:     clean,
		machine: proximity.NewMachine(thresholds(clean)),
		tone:    tone.NewMapper(),
		haptic:  haptics.NewMapper(),
		queue:   NewQueue(clean.Pipeline.CommandQueueSize),
		timer:   newFrameTimer(clean.Pipeline.StatsWindow),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = mesh.NewStore(mesh.DefaultCellSize)
	}
	e.publishLocked()
	return e
}

func sanitize(cfg *config.Config) *config.Config {
	if cfg == nil {
		cfg = config.Default()
	}
	clean, notes := cfg.Sanitize()
	for _, n := range notes {
		logger.Warn("config value clamped", zap.String("change", n))
	}
	return clean
}

func thresholds(cfg *config.Config) proximity.Thresholds {
	p := cfg.Proximity
	return proximity.Thresholds{
		TooClose:   p.TooCloseDistance,
		Near:       p.NearDistance,
		Medium:     p.MediumDistance,
		Hysteresis: p.Hysteresis,
		AlertRearm: p.AlertRearm,
	}
}

// Commands returns the outbound command stream.
func (e *Engine) Commands() <-chan Command {
	return e.queue.C()
}

// Config returns the active configuration snapshot. Callers must not modify it.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// ProcessFrame runs one sensor frame through the pipeline. Mesh events are
// always applied. Frames without a usable pose are sensing gaps: selection
// is skipped and feedback holds its previous state.
func (e *Engine) ProcessFrame(f *sensor.Frame) {
	if f == nil {
		return
	}
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.frames++
	e.tracking = f.Tracking
	// Movement is checked before this frame's events so a reset never
	// throws away fragments observed at the new location.
	if f.HasValidPose() && e.ev.moved(f.Pose.Position, e.cfg.Eviction.MovementThreshold) {
		e.resetLocked(ResetMovement)
		e.ev.anchorAt(f.Pose.Position)
	}
	e.applyMeshLocked(f.MeshEvents)
	e.centerDepth, e.centerValid = f.Depth.CenterDistance()

	switch {
	case e.paused:
	case !f.HasValidPose():
		e.gaps++
		if (e.gaps == 1 || e.gaps%300 == 0) && logger.Enabled(zapcore.DebugLevel) {
			logger.Debug("sensing gap, holding feedback",
				zap.Stringer("tracking", f.Tracking),
				zap.Bool("pose", f.Pose != nil),
				zap.Uint64("gaps", e.gaps))
		}
	default:
		now := f.Timestamp
		if now.IsZero() {
			now = e.now()
		}
		e.updateLocked(*f.Pose, f.Head, now)
	}

	e.timer.record(time.Since(start))
	e.publishLocked()
}

func (e *Engine) applyMeshLocked(events []sensor.MeshEvent) {
	for _, ev := range events {
		switch ev.Kind {
		case sensor.MeshAdded, sensor.MeshUpdated:
			if _, err := e.store.Upsert(ev.Fragment); err != nil && logger.Enabled(zapcore.DebugLevel) {
				logger.Debug("mesh fragment rejected",
					zap.Stringer("id", ev.Fragment.ID),
					zap.Error(err))
			}
		case sensor.MeshRemoved:
			e.store.Remove(ev.Fragment.ID)
		}
	}
}

func (e *Engine) updateLocked(pose sensor.CameraPose, head sensor.HeadPose, now time.Time) {
	cfg := e.cfg
	debug := logger.Enabled(zapcore.DebugLevel)

	if e.ev.filterDue(cfg.Eviction.FilterEveryFrames) {
		if n := e.store.FilterByDistance(pose.Position, cfg.Eviction.RelevanceRadius); n > 0 && debug {
			logger.Debug("filtered distant fragments",
				zap.Int("removed", n),
				zap.Int("remaining", e.store.Len()))
		}
	}

	pt, found := obstacle.Select(e.store, pose, cfg.Proximity.MaxDistance, cfg.Proximity.FOVCosine)
	e.obstacle, e.hasObstacle = pt, found

	var tr proximity.Transition
	distance := float32(gomath.Inf(1))
	if found {
		distance = pt.Distance
		tr = e.machine.Update(distance, now)
	} else {
		tr = e.machine.Clear(now)
	}
	if tr.Changed() && debug {
		logger.Debug("proximity level changed",
			zap.Stringer("from", tr.From),
			zap.Stringer("to", tr.To),
			zap.Float32("distance", distance))
	}

	var obs *obstacle.Point
	if found {
		obs = &pt
	}
	e.emitToneLocked(obs, pose, tr.To, head)
	e.emitHapticLocked(distance, tr.Alert)
}

func (e *Engine) emitToneLocked(obs *obstacle.Point, pose sensor.CameraPose, level proximity.Level, head sensor.HeadPose) {
	if !e.cfg.Audio.Enabled {
		if e.tone.Playing() {
			e.sendTone(e.tone.Stop())
		}
		return
	}
	cmd := e.tone.Update(obs, pose, level, head, e.cfg)
	prev := e.lastTone
	prev.BufferSwitch = false
	if e.toneSent && !cmd.BufferSwitch && cmd == prev {
		return
	}
	e.sendTone(cmd)
}

func (e *Engine) sendTone(cmd tone.Command) {
	e.lastTone = cmd
	e.toneSent = !cmd.Stop
	e.queue.Send(toneCommand(e.frames, cmd))
}

func (e *Engine) emitHapticLocked(distance float32, alert bool) {
	if !e.cfg.Haptics.Enabled {
		if e.haptic.Active() {
			e.queue.Send(hapticCommand(e.frames, e.haptic.Stop()))
		}
		return
	}
	if cmd := e.haptic.Update(distance, e.cfg); cmd.Kind != haptics.None {
		e.queue.Send(hapticCommand(e.frames, cmd))
	}
	if alert {
		e.alerts++
		logger.Info("too close alert", zap.Float32("distance", distance))
		e.queue.Send(hapticCommand(e.frames, e.haptic.TooCloseAlert(e.cfg)))
	}
}

// ResetCache clears the mesh store. It serves the manual button as well as
// the periodic, movement and memory triggers.
func (e *Engine) ResetCache(reason ResetReason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(reason)
	e.publishLocked()
}

// HandleMemoryWarning responds to memory pressure by dropping the mesh cache.
func (e *Engine) HandleMemoryWarning() {
	e.ResetCache(ResetMemory)
}

func (e *Engine) resetLocked(reason ResetReason) {
	m := e.store.Metrics()
	e.store.Clear()
	e.ev.resets.add(reason)
	e.ev.rearm()
	e.hasObstacle = false
	logger.Info("mesh cache reset",
		zap.Stringer("reason", reason),
		zap.Int("fragments", m.Fragments),
		zap.Int("vertices", m.Vertices))
}

// ApplyConfig swaps in a new configuration. It takes effect on the next
// frame; output devices keep running and every parameter is re-derived.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	clean := sanitize(cfg)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = clean
	e.machine.SetThresholds(thresholds(clean))
	e.tone.Invalidate()
	e.toneSent = false
	e.timer.resize(clean.Pipeline.StatsWindow)
	logger.Info("configuration applied",
		zap.Float32("too_close", clean.Proximity.TooCloseDistance),
		zap.Float32("near", clean.Proximity.NearDistance),
		zap.Float32("medium", clean.Proximity.MediumDistance),
		zap.Bool("audio", clean.Audio.Enabled),
		zap.Bool("haptics", clean.Haptics.Enabled))
	e.publishLocked()
}

// Pause stops continuous feedback, for example when the app goes to the
// background or a modal screen is shown. Mesh events are still applied.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	e.haltLocked()
	e.paused = true
	logger.Info("feedback paused")
	e.publishLocked()
}

// Resume restarts feedback on the next frame.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return
	}
	e.paused = false
	logger.Info("feedback resumed")
	e.publishLocked()
}

// Paused reports whether feedback is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// StopAll silences every output immediately and leaves the engine paused
// until Resume.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltLocked()
	e.paused = true
	logger.Info("all feedback stopped")
	e.publishLocked()
}

func (e *Engine) haltLocked() {
	if e.tone.Playing() {
		e.sendTone(e.tone.Stop())
	}
	if cmd := e.haptic.Stop(); cmd.Kind != haptics.None {
		e.queue.Send(hapticCommand(e.frames, cmd))
	}
	e.machine.Reset(e.now())
	e.hasObstacle = false
}

func (e *Engine) publishLocked() {
	st := e.machine.State()
	e.snap.Store(&Snapshot{
		At:               e.now(),
		Paused:           e.paused,
		Tracking:         e.tracking,
		Level:            st.Level,
		Distance:         st.Distance,
		Obstacle:         e.obstacle,
		HasObstacle:      e.hasObstacle,
		CenterDepth:      e.centerDepth,
		CenterDepthValid: e.centerValid,
		Mesh:             e.store.Metrics(),
		Resets:           e.ev.resets,
		Frames:           e.timer.summarize(e.frames, e.gaps),
		Alerts:           e.alerts,
		Sent:             e.queue.Sent(),
		Dropped:          e.queue.Dropped(),
	})
}
