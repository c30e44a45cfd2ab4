package teleop

import (
	"github.com/golang/geo/r3"

	"github.com/gwillem/urteleop/pkg/robot"
)

// Synthesize maps an input snapshot to a Cartesian velocity command.
// Stick axes are inverted to match the base frame (X forward, Y left),
// opposing triggers combine into one signed axis, and the right stick is
// cross-mapped so that its Y axis rolls and its X axis pitches.
func Synthesize(s Snapshot, scale float64) robot.Velocity {
	linear := r3.Vector{
		X: -s.Forward,
		Y: -s.Lateral,
		Z: s.LiftUp - s.LiftDown,
	}
	angular := r3.Vector{
		X: s.PitchAxis,
		Y: -s.RollAxis,
		Z: s.YawCCW - s.YawCW,
	}
	return robot.NewVelocity(linear, angular).Scale(scale)
}
