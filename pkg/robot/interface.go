package robot

import (
	"context"
	"time"
)

// Streamer accepts short-lived Cartesian velocity commands.
// A command expires after validFor and the robot decelerates to rest
// unless it is renewed.
type Streamer interface {
	StreamVelocity(ctx context.Context, v Velocity, acceleration float64, validFor time.Duration) error
	Stop(ctx context.Context) error
}

// Mover performs blocking point-to-point joint moves.
type Mover interface {
	MoveJoint(ctx context.Context, pose JointPose, speed, acceleration float64) error
}

// Aborter terminates whatever the robot controller is executing.
type Aborter interface {
	Abort(ctx context.Context) error
}

// Motion is the full motion command sink used by teleoperation.
type Motion interface {
	Streamer
	Mover
	Aborter
}

// StatusReader provides the last known controller state.
type StatusReader interface {
	State() (RealtimeState, bool)
}

// Ensure Arm implements Motion and StatusReader
var (
	_ Motion       = (*Arm)(nil)
	_ StatusReader = (*Arm)(nil)
)
