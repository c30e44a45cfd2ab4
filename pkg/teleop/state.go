package teleop

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Field is one value of the input state.
type Field int

const (
	Lateral   Field = iota // left stick X
	Forward                // left stick Y
	RollAxis               // right stick X
	PitchAxis              // right stick Y
	LiftUp                 // trigger, [0, 1]
	LiftDown               // trigger, [0, 1]
	YawCCW                 // trigger, [0, 1]
	YawCW                  // trigger, [0, 1]
	numFields
)

var fieldNames = [numFields]string{
	"lateral", "forward", "roll_axis", "pitch_axis",
	"lift_up", "lift_down", "yaw_ccw", "yaw_cw",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// IsTrigger reports whether f is a one-directional trigger magnitude.
func (f Field) IsTrigger() bool {
	return f >= LiftUp && f < numFields
}

// InputState is the latest value of every axis and trigger. Each field is
// stored atomically, so event callbacks can write while the control loop
// reads without a lock.
type InputState struct {
	fields [numFields]atomic.Uint64
}

// NewInputState returns a state with every field at rest.
func NewInputState() *InputState {
	return &InputState{}
}

// Set stores v in f, clamped to [-1, 1] for axes and [0, 1] for triggers.
func (s *InputState) Set(f Field, v float64) {
	if f < 0 || f >= numFields {
		return
	}
	lo := -1.0
	if f.IsTrigger() {
		lo = 0
	}
	switch {
	case math.IsNaN(v):
		v = 0
	case v < lo:
		v = lo
	case v > 1:
		v = 1
	}
	if v == 0 {
		v = 0 // drop negative zero
	}
	s.fields[f].Store(math.Float64bits(v))
}

// Reset puts f back at rest.
func (s *InputState) Reset(f Field) {
	s.Set(f, 0)
}

// Get returns the current value of f.
func (s *InputState) Get(f Field) float64 {
	if f < 0 || f >= numFields {
		return 0
	}
	return math.Float64frombits(s.fields[f].Load())
}

// Snapshot copies every field.
func (s *InputState) Snapshot() Snapshot {
	return Snapshot{
		Lateral:   s.Get(Lateral),
		Forward:   s.Get(Forward),
		RollAxis:  s.Get(RollAxis),
		PitchAxis: s.Get(PitchAxis),
		LiftUp:    s.Get(LiftUp),
		LiftDown:  s.Get(LiftDown),
		YawCCW:    s.Get(YawCCW),
		YawCW:     s.Get(YawCW),
	}
}

// Snapshot is a copy of the input state taken once per tick.
type Snapshot struct {
	Lateral, Forward    float64
	RollAxis, PitchAxis float64
	LiftUp, LiftDown    float64
	YawCCW, YawCW       float64
}
