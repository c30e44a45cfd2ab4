// Package input turns game controller hardware into tagged input events.
package input

import (
	"context"
	"fmt"
	"time"
)

// Kind tells what happened to a control.
type Kind uint8

const (
	AxisMoved Kind = iota
	ButtonPressed
	ButtonReleased
)

func (k Kind) String() string {
	switch k {
	case AxisMoved:
		return "axis"
	case ButtonPressed:
		return "press"
	case ButtonReleased:
		return "release"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Control identifies a physical stick axis, trigger or button.
type Control string

// Controls of a DualShock 4 style pad.
const (
	LeftX        Control = "left_x"
	LeftY        Control = "left_y"
	RightX       Control = "right_x"
	RightY       Control = "right_y"
	LeftTrigger  Control = "l2_axis"
	RightTrigger Control = "r2_axis"

	Cross    Control = "cross"
	Circle   Control = "circle"
	Triangle Control = "triangle"
	Square   Control = "square"
	L1       Control = "l1"
	R1       Control = "r1"
	L2       Control = "l2"
	R2       Control = "r2"
	Share    Control = "share"
	Options  Control = "options"
	PS       Control = "ps"
	L3       Control = "l3"
	R3       Control = "r3"
)

// Event is a single change of one control.
type Event struct {
	Kind    Kind
	Control Control
	Raw     int     // device units, axes only
	Value   float64 // calibrated: [-1, 1] for sticks, [0, 1] for triggers
	Time    time.Time
}

func (e Event) String() string {
	if e.Kind == AxisMoved {
		return fmt.Sprintf("%s %s raw=%d value=%.3f", e.Kind, e.Control, e.Raw, e.Value)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Control)
}

// Handler receives events. It must return quickly; the source does not
// deliver the next event until it does.
type Handler func(Event)

// Source delivers events until ctx is done or the device fails.
type Source interface {
	Listen(ctx context.Context, h Handler) error
}
