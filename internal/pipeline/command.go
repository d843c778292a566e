package pipeline

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/proxisense/internal/haptics"
	"github.com/Faultbox/proxisense/internal/logger"
	"github.com/Faultbox/proxisense/internal/tone"
)

// CommandKind tells which output a Command is addressed to.
type CommandKind int

const (
	ToneOutput CommandKind = iota
	HapticOutput
)

func (k CommandKind) String() string {
	switch k {
	case ToneOutput:
		return "tone"
	case HapticOutput:
		return "haptic"
	default:
		return "unknown"
	}
}

// Command is a fire-and-forget instruction for an output device.
type Command struct {
	Kind   CommandKind
	Frame  uint64 // Frame counter when the command was produced
	Tone   tone.Command
	Haptic haptics.Command
}

func toneCommand(frame uint64, c tone.Command) Command {
	return Command{Kind: ToneOutput, Frame: frame, Tone: c}
}

func hapticCommand(frame uint64, c haptics.Command) Command {
	return Command{Kind: HapticOutput, Frame: frame, Haptic: c}
}

// Queue is the bounded outbound channel from the engine to the output side.
// Send never blocks: when the consumer falls behind the command is dropped
// and counted.
type Queue struct {
	ch      chan Command
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to size pending commands.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Command, size)}
}

// Send enqueues c, reporting false if it was dropped.
func (q *Queue) Send(c Command) bool {
	select {
	case q.ch <- c:
		q.sent.Add(1)
		return true
	default:
		n := q.dropped.Add(1)
		// Log the first drop and then every power of two to avoid a flood.
		if n&(n-1) == 0 {
			logger.Warn("output queue full, dropping command",
				zap.Stringer("kind", c.Kind),
				zap.Uint64("dropped", n))
		}
		return false
	}
}

// C returns the receive side of the queue.
func (q *Queue) C() <-chan Command {
	return q.ch
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Sent returns how many commands were enqueued.
func (q *Queue) Sent() uint64 {
	return q.sent.Load()
}

// Dropped returns how many commands were discarded on overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
