// Package robot provides the motion interface to a 6-axis arm and a client
// for Universal Robots controllers.
package robot

// JointName identifies a joint of the arm.
type JointName string

// Joint names for a UR arm, base to tool.
const (
	Base     JointName = "base"
	Shoulder JointName = "shoulder"
	Elbow    JointName = "elbow"
	Wrist1   JointName = "wrist_1"
	Wrist2   JointName = "wrist_2"
	Wrist3   JointName = "wrist_3"
)

// AllJoints returns all joint names in controller order.
func AllJoints() []JointName {
	return []JointName{
		Base,
		Shoulder,
		Elbow,
		Wrist1,
		Wrist2,
		Wrist3,
	}
}

// JointPose is a joint-space position in radians, in AllJoints order.
type JointPose [6]float64

// ByName returns the pose as a map keyed by joint name.
func (p JointPose) ByName() map[JointName]float64 {
	m := make(map[JointName]float64, len(p))
	for i, name := range AllJoints() {
		m[name] = p[i]
	}
	return m
}

// MaxDelta returns the largest absolute per-joint difference between p and other.
func (p JointPose) MaxDelta(other JointPose) float64 {
	var d float64
	for i := range p {
		diff := p[i] - other[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > d {
			d = diff
		}
	}
	return d
}
