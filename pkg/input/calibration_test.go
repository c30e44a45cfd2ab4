package input

import (
	"math"
	"testing"
)

func TestAxisCalibration_NormalizeStick(t *testing.T) {
	cal := StickCalibration()

	tests := []struct {
		raw      int
		expected float64
	}{
		{0, 0},
		{32767, 1},
		{-32767, -1},
		{-32768, -1}, // clamped
		{16384, 0.5},
		{-16384, -0.5},
	}

	for _, tt := range tests {
		got := cal.Normalize(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestAxisCalibration_NormalizeTrigger(t *testing.T) {
	cal := TriggerCalibration()

	tests := []struct {
		raw      int
		expected float64
	}{
		{-32767, 0}, // rest
		{0, 0.5},
		{32767, 1},
	}

	for _, tt := range tests {
		got := cal.Normalize(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("Normalize(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
	if cal.Rest() != RawMin {
		t.Errorf("Rest() = %d, want %d", cal.Rest(), RawMin)
	}
}

func TestAxisCalibration_OffCenter(t *testing.T) {
	cal := AxisCalibration{Min: -30000, Max: 32000, Center: 500}

	if got := cal.Normalize(500); got != 0 {
		t.Errorf("Normalize(center) = %f, want 0", got)
	}
	if got := cal.Normalize(32000); got != 1 {
		t.Errorf("Normalize(max) = %f, want 1", got)
	}
	if got := cal.Normalize(-30000); got != -1 {
		t.Errorf("Normalize(min) = %f, want -1", got)
	}
}

func TestAxisCalibration_RoundTrip(t *testing.T) {
	for _, cal := range []AxisCalibration{StickCalibration(), TriggerCalibration()} {
		for raw := cal.Min; raw <= cal.Max; raw += 997 {
			norm := cal.Normalize(raw)
			back := cal.Denormalize(norm)
			if math.Abs(float64(back-raw)) > 1 {
				t.Errorf("Round-trip failed: %d -> %f -> %d", raw, norm, back)
			}
		}
	}
}
