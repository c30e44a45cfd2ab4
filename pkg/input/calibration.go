package input

// Device-native range of a Linux joystick axis.
const (
	RawMin = -32767
	RawMax = 32767
)

// AxisCalibration maps raw axis samples to a normalized value.
// Sticks rest at Center and map to [-1, 1]; triggers rest at Min and map
// to [0, 1].
type AxisCalibration struct {
	Min     int  `json:"min"`
	Max     int  `json:"max"`
	Center  int  `json:"center"`
	Trigger bool `json:"trigger"`
}

// StickCalibration is the default calibration for a centered stick axis.
func StickCalibration() AxisCalibration {
	return AxisCalibration{Min: RawMin, Max: RawMax}
}

// TriggerCalibration is the default calibration for an analog trigger
// that rests fully negative.
func TriggerCalibration() AxisCalibration {
	return AxisCalibration{Min: RawMin, Max: RawMax, Center: RawMin, Trigger: true}
}

// Rest returns the raw value the axis reports when untouched.
func (c AxisCalibration) Rest() int {
	if c.Trigger {
		return c.Min
	}
	return c.Center
}

// Normalize converts a raw sample to [-1, 1], or [0, 1] for triggers.
// Samples outside the calibrated range are clamped.
func (c AxisCalibration) Normalize(raw int) float64 {
	if c.Trigger {
		span := float64(c.Max - c.Min)
		if span <= 0 {
			return 0
		}
		return clamp(float64(raw-c.Min)/span, 0, 1)
	}

	switch {
	case raw > c.Center:
		span := float64(c.Max - c.Center)
		if span <= 0 {
			return 0
		}
		return clamp(float64(raw-c.Center)/span, 0, 1)
	case raw < c.Center:
		span := float64(c.Center - c.Min)
		if span <= 0 {
			return 0
		}
		return clamp(float64(raw-c.Center)/span, -1, 0)
	default:
		return 0
	}
}

// Denormalize converts a normalized value back to a raw sample.
func (c AxisCalibration) Denormalize(norm float64) int {
	if c.Trigger {
		norm = clamp(norm, 0, 1)
		return int(norm*float64(c.Max-c.Min)) + c.Min
	}
	norm = clamp(norm, -1, 1)
	if norm >= 0 {
		return c.Center + int(norm*float64(c.Max-c.Center))
	}
	return c.Center + int(norm*float64(c.Center-c.Min))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
