package input

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcafed00d/joystick"
	"github.com/pkg/errors"
)

const maxDevices = 10

// Joystick polls a Linux joystick device (/dev/input/jsN) and reports
// every changed axis or button as an Event.
type Joystick struct {
	js     joystick.Joystick
	layout Layout
	poll   time.Duration

	axes    map[int]int
	buttons uint32
}

// DeviceInfo describes a detected joystick.
type DeviceInfo struct {
	Index   int
	Path    string
	Name    string
	Axes    int
	Buttons int
}

// OpenJoystick opens /dev/input/js<index>.
func OpenJoystick(index int, layout Layout, pollHz int) (*Joystick, error) {
	js, err := joystick.Open(index)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", DevicePath(index))
	}
	return NewJoystick(js, layout, pollHz), nil
}

// NewJoystick wraps an already opened device.
func NewJoystick(js joystick.Joystick, layout Layout, pollHz int) *Joystick {
	if pollHz <= 0 {
		pollHz = 250
	}
	j := &Joystick{
		js:     js,
		layout: layout,
		poll:   time.Second / time.Duration(pollHz),
		axes:   make(map[int]int, len(layout.Axes)),
	}
	for idx, c := range layout.Axes {
		j.axes[idx] = layout.Calibration(c).Rest()
	}
	return j
}

// DevicePath returns the device node for a joystick index.
func DevicePath(index int) string {
	return fmt.Sprintf("/dev/input/js%d", index)
}

// List probes js0..js9 and returns the devices that open.
func List() []DeviceInfo {
	var found []DeviceInfo
	for i := 0; i < maxDevices; i++ {
		js, err := joystick.Open(i)
		if err != nil {
			continue
		}
		found = append(found, DeviceInfo{
			Index:   i,
			Path:    DevicePath(i),
			Name:    js.Name(),
			Axes:    js.AxisCount(),
			Buttons: js.ButtonCount(),
		})
		js.Close()
	}
	return found
}

// Name returns the device name reported by the driver.
func (j *Joystick) Name() string {
	return j.js.Name()
}

// Close closes the device.
func (j *Joystick) Close() {
	j.js.Close()
}

// Listen polls the device until ctx is done or a read fails.
func (j *Joystick) Listen(ctx context.Context, h Handler) error {
	ticker := time.NewTicker(j.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st, err := j.js.Read()
			if err != nil {
				return errors.Wrap(err, "read joystick")
			}
			for _, ev := range j.diff(st, time.Now()) {
				h(ev)
			}
		}
	}
}

// diff returns events for everything that changed since the previous read,
// buttons first so that a release is seen before any axis noise.
func (j *Joystick) diff(st joystick.State, now time.Time) []Event {
	var events []Event

	changed := st.Buttons ^ j.buttons
	for idx := 0; idx < 32 && changed != 0; idx++ {
		bit := uint32(1) << idx
		if changed&bit == 0 {
			continue
		}
		changed &^= bit
		c, ok := j.layout.Buttons[idx]
		if !ok {
			continue
		}
		kind := ButtonReleased
		if st.Buttons&bit != 0 {
			kind = ButtonPressed
		}
		events = append(events, Event{Kind: kind, Control: c, Time: now})
	}
	j.buttons = st.Buttons

	for idx, raw := range st.AxisData {
		c, ok := j.layout.Axes[idx]
		if !ok || j.axes[idx] == raw {
			continue
		}
		j.axes[idx] = raw
		events = append(events, Event{
			Kind:    AxisMoved,
			Control: c,
			Raw:     raw,
			Value:   j.layout.Calibration(c).Normalize(raw),
			Time:    now,
		})
	}

	return events
}
