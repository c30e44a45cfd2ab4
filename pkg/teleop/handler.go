package teleop

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/gwillem/urteleop/pkg/input"
)

// Stick and analog trigger axes feeding the input state.
var axisFields = map[input.Control]Field{
	input.LeftX:        Lateral,
	input.LeftY:        Forward,
	input.RightX:       RollAxis,
	input.RightY:       PitchAxis,
	input.LeftTrigger:  LiftDown,
	input.RightTrigger: YawCW,
}

// Digital buttons acting as full-scale triggers.
var buttonFields = map[input.Control]Field{
	input.L1: LiftUp,
	input.R1: YawCCW,
}

// Releasing one of these puts the field back at rest. L2 and R2 report a
// digital release alongside their analog axis.
var releaseFields = map[input.Control]Field{
	input.L1: LiftUp,
	input.R1: YawCCW,
	input.L2: LiftDown,
	input.R2: YawCW,
}

// Binding describes what a control does.
type Binding struct {
	Control string
	Action  string
}

// Bindings lists the control map in display order.
func Bindings() []Binding {
	return []Binding{
		{"Left Stick", "X-Y cartesian motion"},
		{"L1", "Move UP (Z+)"},
		{"L2", "Move DOWN (Z-)"},
		{"Right Stick", "Roll (up/down) & Pitch (left/right)"},
		{"R1", "Rotate CCW (Yaw+)"},
		{"R2", "Rotate CW (Yaw-)"},
		{"Cross", "Close gripper"},
		{"Circle", "Open gripper"},
		{"Triangle", "Move to home position"},
		{"Square", "Emergency stop"},
		{"Options", "Exit program"},
	}
}

// Handle applies one input event. It never waits on the robot for longer
// than a single short command; home moves run in the background.
func (c *Controller) Handle(ev input.Event) {
	if c.stopped.Load() {
		return
	}

	switch ev.Kind {
	case input.AxisMoved:
		if f, ok := axisFields[ev.Control]; ok {
			c.input.Set(f, Deadzone(ev.Value, c.motion.Deadzone))
		}

	case input.ButtonReleased:
		if f, ok := releaseFields[ev.Control]; ok {
			c.input.Reset(f)
		}

	case input.ButtonPressed:
		if f, ok := buttonFields[ev.Control]; ok {
			c.input.Set(f, Deadzone(1, c.motion.Deadzone))
			return
		}
		c.press(ev.Control)
	}
}

func (c *Controller) press(ctl input.Control) {
	switch ctl {
	case input.Cross:
		c.grip(true)
	case input.Circle:
		c.grip(false)
	case input.Triangle:
		c.homeWG.Add(1)
		go func() {
			defer c.homeWG.Done()
			if err := c.Home(); err != nil && !errors.Is(err, context.Canceled) {
				c.log(slog.LevelWarn, "Home move failed", "err", err)
			}
		}()
	case input.Square:
		c.EmergencyStop()
	case input.Options:
		c.Exit()
	}
}

func (c *Controller) grip(closing bool) {
	if c.gripper != nil {
		c.gripper(closing)
		return
	}
	action := "open"
	if closing {
		action = "close"
	}
	c.log(slog.LevelInfo, "Gripper requested, no gripper driver configured", "action", action)
}

// Home stops streaming and moves the arm to the home pose, blocking until
// the move completes. The control loop skips its ticks while the move owns
// the robot. EmergencyStop and Exit cancel a running move.
func (c *Controller) Home() error {
	c.cmdMu.Lock()
	if c.stopped.Load() {
		c.cmdMu.Unlock()
		return ErrStopped
	}
	if c.homing {
		c.cmdMu.Unlock()
		return ErrHoming
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.homing = true
	c.homeCancel = cancel
	c.mode = Idle

	c.log(slog.LevelInfo, "Moving to home position", "pose", c.motion.HomePose)
	err := c.robot.Stop(ctx)
	c.cmdMu.Unlock()

	if err == nil {
		err = c.robot.MoveJoint(ctx, c.motion.HomePose, c.motion.HomeSpeed, c.motion.HomeAcceleration)
	}

	interrupted := ctx.Err() != nil
	c.cmdMu.Lock()
	c.homing = false
	c.homeCancel = nil
	c.cmdMu.Unlock()
	cancel()

	switch {
	case err == nil:
		c.log(slog.LevelInfo, "Reached home")
		return nil
	case interrupted:
		c.log(slog.LevelWarn, "Home move interrupted")
		return context.Canceled
	default:
		return errors.Wrap(err, "home")
	}
}

// EmergencyStop stops the robot, aborts its program and ends the session.
// It preempts a running home move.
func (c *Controller) EmergencyStop() error {
	c.log(slog.LevelWarn, "EMERGENCY STOP")
	return c.halt(ErrEmergencyStop)
}

// Exit stops the robot, aborts its program and ends the session.
func (c *Controller) Exit() error {
	c.log(slog.LevelInfo, "Shutting down")
	return c.halt(ErrExit)
}

func (c *Controller) halt(reason error) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.stopped.Store(true)
	if c.homeCancel != nil {
		c.homeCancel()
	}
	c.mode = Stopped

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var errs []error
	if err := c.robot.Stop(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "stop"))
	}
	if err := c.robot.Abort(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "abort"))
	}
	c.finish(reason)
	c.sendState(State{Mode: Stopped, Tick: c.ticks.Load(), Timestamp: time.Now()})

	if len(errs) > 0 {
		c.log(slog.LevelError, "Halt incomplete", "errors", errs)
		return errs[0]
	}
	return nil
}
