package teleop

import "math"

// Deadzone rescales v in [-1, 1] so that |v| < d maps to exactly 0 and the
// remaining travel maps linearly onto the full [-1, 1] range.
// d must be in [0, 1).
func Deadzone(v, d float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	a := math.Abs(v)
	if a < d {
		return 0
	}
	if a > 1 {
		a = 1
	}
	return math.Copysign((a-d)/(1-d), v)
}
