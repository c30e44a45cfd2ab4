package input

// Layout maps joystick axis and button indices to controls.
type Layout struct {
	Name         string
	Axes         map[int]Control
	Buttons      map[int]Control
	Calibrations map[Control]AxisCalibration
}

// DS4 is the DualShock 4 layout exposed by the Linux hid-sony driver.
func DS4() Layout {
	return Layout{
		Name: "DualShock 4",
		Axes: map[int]Control{
			0: LeftX,
			1: LeftY,
			2: LeftTrigger,
			3: RightX,
			4: RightY,
			5: RightTrigger,
		},
		Buttons: map[int]Control{
			0:  Cross,
			1:  Circle,
			2:  Triangle,
			3:  Square,
			4:  L1,
			5:  R1,
			6:  L2,
			7:  R2,
			8:  Share,
			9:  Options,
			10: PS,
			11: L3,
			12: R3,
		},
		Calibrations: map[Control]AxisCalibration{
			LeftX:        StickCalibration(),
			LeftY:        StickCalibration(),
			RightX:       StickCalibration(),
			RightY:       StickCalibration(),
			LeftTrigger:  TriggerCalibration(),
			RightTrigger: TriggerCalibration(),
		},
	}
}

// Calibration returns the calibration for control c, falling back to a
// centered stick.
func (l Layout) Calibration(c Control) AxisCalibration {
	if cal, ok := l.Calibrations[c]; ok {
		return cal
	}
	return StickCalibration()
}
