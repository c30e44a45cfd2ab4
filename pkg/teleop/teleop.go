// Package teleop streams Cartesian velocity commands to a robot arm from
// game controller input.
package teleop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gwillem/urteleop/pkg/robot"
)

// commandTimeout bounds the best-effort stop and abort commands.
const commandTimeout = time.Second

var (
	// ErrEmergencyStop ends a session stopped by the emergency stop button.
	ErrEmergencyStop = errors.New("emergency stop")
	// ErrExit ends a session closed by the exit button or an interrupt.
	ErrExit = errors.New("exit requested")
	// ErrStreaming ends a session whose robot link failed during a tick.
	ErrStreaming = errors.New("robot command failed")
	// ErrHoming is returned when a home move is already in flight.
	ErrHoming = errors.New("home move in progress")
	// ErrStopped is returned for commands issued after the session ended.
	ErrStopped = errors.New("teleoperation stopped")
)

// StreamError is the failure of a per-tick robot command. It matches
// ErrStreaming and unwraps to the robot error.
type StreamError struct {
	Mode Mode
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrStreaming, e.Mode, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func (e *StreamError) Is(target error) bool { return target == ErrStreaming }

// Mode is the control loop state.
type Mode int

const (
	Idle Mode = iota
	Streaming
	Stopped
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is published after every tick.
type State struct {
	Mode      Mode
	Velocity  robot.Velocity
	Tick      uint64
	Homing    bool
	Timestamp time.Time
	Error     error
}

// Stats counts control loop ticks by outcome.
type Stats struct {
	Ticks     uint64
	Streaming uint64
	Idle      uint64
	Skipped   uint64 // ticks skipped while a home move owned the robot
}

// GripperFunc is called when a gripper button is pressed.
type GripperFunc func(closing bool)

// Config holds configuration for the controller. Zero motion fields get
// their defaults, except Deadzone and Epsilon which are used as given.
type Config struct {
	Motion  robot.MotionConfig
	Logger  *slog.Logger
	Gripper GripperFunc // optional
}

// Controller runs the teleoperation control loop and reacts to discrete
// button commands. The loop and the input callbacks share only the input
// state and the shutdown flag.
type Controller struct {
	robot   robot.Motion
	input   *InputState
	motion  robot.MotionConfig
	period  time.Duration
	gripper GripperFunc
	session string
	logger  *slog.Logger

	// cmdMu serializes robot commands. A home move holds ownership through
	// homing rather than the mutex so an emergency stop can preempt it.
	cmdMu      sync.Mutex
	homing     bool
	homeCancel context.CancelFunc
	mode       Mode
	homeWG     sync.WaitGroup

	stopped  atomic.Bool
	doneOnce sync.Once
	done     chan struct{}
	reason   error

	ticks, streaming, idle, skipped atomic.Uint64

	stateCh chan State
	logCh   chan string
}

// NewController creates a controller driving m.
func NewController(m robot.Motion, cfg Config) (*Controller, error) {
	if m == nil {
		return nil, errors.New("nil robot")
	}
	motion := cfg.Motion.WithDefaults()
	if err := motion.Validate(); err != nil {
		return nil, errors.Wrap(err, "motion parameters")
	}

	session := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		robot:   m,
		input:   NewInputState(),
		motion:  motion,
		period:  motion.Period(),
		gripper: cfg.Gripper,
		session: session,
		logger:  logger.With("session", session),
		done:    make(chan struct{}),
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}, nil
}

// Input returns the shared input state.
func (c *Controller) Input() *InputState {
	return c.input
}

// Motion returns the motion parameters in use.
func (c *Controller) Motion() robot.MotionConfig {
	return c.motion
}

// Session returns the session id attached to every log line.
func (c *Controller) Session() string {
	return c.session
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.motion.RateHz
}

// Done is closed when the session has ended.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns why the session ended, or nil while it is running.
func (c *Controller) Err() error {
	select {
	case <-c.done:
		return c.reason
	default:
		return nil
	}
}

// Stopped reports whether the shutdown flag is set.
func (c *Controller) Stopped() bool {
	return c.stopped.Load()
}

// Stats returns the tick counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Ticks:     c.ticks.Load(),
		Streaming: c.streaming.Load(),
		Idle:      c.idle.Load(),
		Skipped:   c.skipped.Load(),
	}
}

// Close waits for a running home move to finish.
func (c *Controller) Close() error {
	c.homeWG.Wait()
	return nil
}

func (c *Controller) log(level slog.Level, msg string, args ...any) {
	c.logger.Log(context.Background(), level, msg, args...)

	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
	for i := 0; i+1 < len(args); i += 2 {
		line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	select {
	case c.logCh <- line:
	default:
		// Drop if channel full
	}
}

// Run executes the control loop until the session ends or ctx is done.
// It returns the reason the session ended.
func (c *Controller) Run(ctx context.Context) error {
	if c.stopped.Load() {
		return c.Err()
	}

	c.log(slog.LevelInfo, "Teleoperation started", "hz", c.motion.RateHz,
		"scale", c.motion.VelocityScale, "acceleration", c.motion.Acceleration)
	c.log(slog.LevelWarn, "No deadman switch: the robot moves as soon as a stick is deflected")

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx.Err())
			return ctx.Err()
		case <-c.done:
			return c.reason
		case <-ticker.C:
			if err := c.step(ctx); err != nil {
				c.fail(err)
				return c.reason
			}
		}
	}
}

// step runs one control cycle. A returned error is fatal to the session.
func (c *Controller) step(ctx context.Context) error {
	v := Synthesize(c.input.Snapshot(), c.motion.VelocityScale)

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if c.stopped.Load() {
		return nil
	}
	tick := c.ticks.Add(1)

	if c.homing {
		c.skipped.Add(1)
		c.sendState(State{Mode: c.mode, Tick: tick, Homing: true, Timestamp: time.Now()})
		return nil
	}

	var err error
	if v.Exceeds(c.motion.Epsilon) {
		if c.mode != Streaming {
			c.logger.Debug("streaming", "velocity", v)
		}
		c.mode = Streaming
		c.streaming.Add(1)
		err = c.robot.StreamVelocity(ctx, v, c.motion.Acceleration, 2*c.period)
	} else {
		if c.mode != Idle {
			c.logger.Debug("idle")
		}
		c.mode = Idle
		c.idle.Add(1)
		v = robot.Velocity{}
		err = c.robot.Stop(ctx)
	}

	if err != nil {
		err = &StreamError{Mode: c.mode, Err: err}
		c.sendState(State{Mode: c.mode, Velocity: v, Tick: tick, Timestamp: time.Now(), Error: err})
		return err
	}

	c.sendState(State{Mode: c.mode, Velocity: v, Tick: tick, Timestamp: time.Now()})
	return nil
}

// fail handles a robot error during a tick: stop once, then end the session.
func (c *Controller) fail(err error) {
	c.log(slog.LevelError, "Motion control error", "err", err)

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.stopped.Store(true)
	c.mode = Stopped

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if stopErr := c.robot.Stop(ctx); stopErr != nil {
		c.log(slog.LevelWarn, "Best-effort stop failed", "err", stopErr)
	}
	c.finish(err)
}

// shutdown stops the robot when the loop is cancelled from outside.
func (c *Controller) shutdown(reason error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if c.homeCancel != nil {
		c.homeCancel()
	}
	if !c.stopped.Swap(true) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := c.robot.Stop(ctx); err != nil {
			c.log(slog.LevelWarn, "Failed to stop robot", "err", err)
		}
	}
	c.mode = Stopped
	c.finish(reason)
	c.log(slog.LevelInfo, "Teleoperation stopped")
}

// finish records the first reason and closes done. Callers hold cmdMu.
func (c *Controller) finish(reason error) {
	c.doneOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}
