package robot

import (
	"math"

	"github.com/golang/geo/r3"
)

// Velocity is a Cartesian velocity command in the robot base frame:
// x, y, z in m/s followed by roll, pitch, yaw in rad/s.
type Velocity [6]float64

// Velocity component indices.
const (
	VX = iota
	VY
	VZ
	VRoll
	VPitch
	VYaw
)

// VelocityLabels names the components of a Velocity in index order.
var VelocityLabels = [6]string{"x", "y", "z", "roll", "pitch", "yaw"}

// NewVelocity builds a Velocity from its linear and angular parts.
func NewVelocity(linear, angular r3.Vector) Velocity {
	return Velocity{linear.X, linear.Y, linear.Z, angular.X, angular.Y, angular.Z}
}

// Linear returns the translational part.
func (v Velocity) Linear() r3.Vector {
	return r3.Vector{X: v[VX], Y: v[VY], Z: v[VZ]}
}

// Angular returns the rotational part.
func (v Velocity) Angular() r3.Vector {
	return r3.Vector{X: v[VRoll], Y: v[VPitch], Z: v[VYaw]}
}

// Exceeds reports whether any component magnitude is greater than eps.
func (v Velocity) Exceeds(eps float64) bool {
	for _, c := range v {
		if math.Abs(c) > eps {
			return true
		}
	}
	return false
}

// Scale returns v with every component multiplied by s.
func (v Velocity) Scale(s float64) Velocity {
	return NewVelocity(v.Linear().Mul(s), v.Angular().Mul(s))
}
