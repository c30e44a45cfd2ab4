package teleop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gwillem/urteleop/pkg/input"
	"github.com/gwillem/urteleop/pkg/robot"
)

// call is one command received by mockRobot.
type call struct {
	name     string
	velocity robot.Velocity
	accel    float64
	validFor time.Duration
	pose     robot.JointPose
}

// mockRobot records all commands for testing
type mockRobot struct {
	mu    sync.Mutex
	calls []call

	streamErr error
	stopErr   error

	// moveStarted is closed when MoveJoint is entered; MoveJoint then
	// blocks until release is closed or ctx is cancelled.
	moveStarted chan struct{}
	release     chan struct{}
}

func newMockRobot() *mockRobot {
	return &mockRobot{
		moveStarted: make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (m *mockRobot) record(c call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *mockRobot) StreamVelocity(ctx context.Context, v robot.Velocity, accel float64, validFor time.Duration) error {
	m.record(call{name: "stream", velocity: v, accel: accel, validFor: validFor})
	return m.streamErr
}

func (m *mockRobot) Stop(ctx context.Context) error {
	m.record(call{name: "stop"})
	return m.stopErr
}

func (m *mockRobot) MoveJoint(ctx context.Context, pose robot.JointPose, speed, accel float64) error {
	m.record(call{name: "movej", pose: pose})
	close(m.moveStarted)
	select {
	case <-m.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockRobot) Abort(ctx context.Context) error {
	m.record(call{name: "abort"})
	return nil
}

func (m *mockRobot) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c.name
	}
	return names
}

func (m *mockRobot) last() call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return call{}
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockRobot) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newTestController(t *testing.T, m *mockRobot) *Controller {
	t.Helper()
	c, err := NewController(m, Config{
		Motion: robot.MotionConfig{VelocityScale: 0.1, Deadzone: 0.1, Epsilon: 0.001},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func TestNewController_Defaults(t *testing.T) {
	c := newTestController(t, newMockRobot())
	if c.Hz() != 125 {
		t.Errorf("Hz() = %d, want 125", c.Hz())
	}
	if c.period != 8*time.Millisecond {
		t.Errorf("period = %v, want 8ms", c.period)
	}
	if c.Session() == "" {
		t.Error("empty session id")
	}
}

func TestNewController_ZeroDeadzone(t *testing.T) {
	m := newMockRobot()
	c, err := NewController(m, Config{
		Motion: robot.MotionConfig{VelocityScale: 0.1, Deadzone: 0, Epsilon: 0},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if got := c.Motion(); got.Deadzone != 0 || got.Epsilon != 0 {
		t.Fatalf("deadzone = %v epsilon = %v, want 0", got.Deadzone, got.Epsilon)
	}

	c.Handle(input.Event{Kind: input.AxisMoved, Control: input.LeftY, Value: 0.05})
	if got := c.Input().Get(Forward); !floatEquals(got, 0.05) {
		t.Fatalf("forward = %v, want 0.05 with no dead zone", got)
	}
	if err := c.step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := m.last(); got.name != "stream" || !floatEquals(got.velocity[robot.VX], -0.005) {
		t.Errorf("command = %s %v, want stream vx=-0.005", got.name, got.velocity)
	}
}

func TestNewController_RejectsBadMotion(t *testing.T) {
	_, err := NewController(newMockRobot(), Config{Motion: robot.MotionConfig{Deadzone: 1}})
	if err == nil {
		t.Fatal("deadzone 1 accepted")
	}
}

func TestStep_AlternatesStreamingAndIdle(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)
	ctx := context.Background()

	pattern := []bool{false, true, false, true, true, false}
	var want []string
	for _, moving := range pattern {
		if moving {
			c.Input().Set(Lateral, 0.5)
			want = append(want, "stream")
		} else {
			c.Input().Reset(Lateral)
			want = append(want, "stop")
		}
		if err := c.step(ctx); err != nil {
			t.Fatalf("step: %v", err)
		}

		wantMode := Idle
		if moving {
			wantMode = Streaming
		}
		if c.mode != wantMode {
			t.Errorf("mode = %s, want %s", c.mode, wantMode)
		}
	}

	if got := m.names(); !equalNames(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}

	st := c.Stats()
	if st.Ticks != 6 || st.Streaming != 3 || st.Idle != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStep_BelowEpsilonIsIdle(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)

	// 0.005 * 0.1 scale = 0.0005 m/s, below the 0.001 epsilon
	c.Input().Set(Forward, 0.005)
	if err := c.step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := m.last().name; got != "stop" {
		t.Errorf("command = %s, want stop", got)
	}
}

func TestStep_StreamArguments(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)

	c.Input().Set(YawCW, 1)
	if err := c.step(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := m.last()
	if got.name != "stream" {
		t.Fatalf("command = %s, want stream", got.name)
	}
	if !floatEquals(got.velocity[robot.VYaw], -0.1) {
		t.Errorf("vyaw = %v, want -0.1", got.velocity[robot.VYaw])
	}
	if got.accel != 0.2 {
		t.Errorf("acceleration = %v, want 0.2", got.accel)
	}
	if got.validFor != 16*time.Millisecond {
		t.Errorf("validFor = %v, want two periods (16ms)", got.validFor)
	}
}

func TestStep_PublishesState(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)

	c.Input().Set(Forward, 1)
	c.step(context.Background())
	c.Input().Reset(Forward)
	c.step(context.Background())

	// Only the latest state is kept
	st := <-c.States()
	if st.Mode != Idle || st.Tick != 2 {
		t.Errorf("state = %+v, want idle at tick 2", st)
	}
}

func TestStep_ErrorIsFatal(t *testing.T) {
	m := newMockRobot()
	m.streamErr = errors.New("connection reset")
	c := newTestController(t, m)

	c.Input().Set(Forward, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.Run(ctx)
	if !errors.Is(err, ErrStreaming) {
		t.Fatalf("Run() = %v, want ErrStreaming", err)
	}
	if !errors.Is(err, m.streamErr) {
		t.Errorf("Run() = %v, does not wrap the robot error", err)
	}
	var se *StreamError
	if !errors.As(err, &se) || se.Mode != Streaming {
		t.Errorf("Run() = %v, want StreamError in streaming mode", err)
	}
	if !c.Stopped() {
		t.Error("shutdown flag not set")
	}
	if got, want := m.names(), []string{"stream", "stop"}; !equalNames(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}

	// Nothing is sent after the failure
	c.step(context.Background())
	c.Handle(input.Event{Kind: input.ButtonPressed, Control: input.Triangle})
	if n := len(m.names()); n != 2 {
		t.Errorf("%d commands after failure, want 2", n)
	}
}

func TestRun_CancelStops(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	if got := m.last().name; got != "stop" {
		t.Errorf("last command = %s, want stop", got)
	}
	if n := c.Stats().Ticks; n == 0 {
		t.Error("no ticks ran")
	}
}

func TestEmergencyStop_WhileStreaming(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)
	ctx := context.Background()

	c.Input().Set(Forward, 1)
	if err := c.step(ctx); err != nil {
		t.Fatal(err)
	}
	m.reset()

	c.Handle(input.Event{Kind: input.ButtonPressed, Control: input.Square})

	if got, want := m.names(), []string{"stop", "abort"}; !equalNames(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	if !errors.Is(c.Err(), ErrEmergencyStop) {
		t.Errorf("Err() = %v, want ErrEmergencyStop", c.Err())
	}

	// Input is still deflected, but nothing streams any more
	for i := 0; i < 3; i++ {
		c.step(ctx)
	}
	if got := m.names(); len(got) != 2 {
		t.Errorf("commands after estop = %v", got)
	}

	select {
	case <-c.Done():
	default:
		t.Error("Done not closed")
	}
	if err := c.Run(ctx); !errors.Is(err, ErrEmergencyStop) {
		t.Errorf("Run after estop = %v", err)
	}
}

func TestExit_EndsSession(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)

	c.Handle(input.Event{Kind: input.ButtonPressed, Control: input.Options})

	if got, want := m.names(), []string{"stop", "abort"}; !equalNames(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
	if !errors.Is(c.Err(), ErrExit) {
		t.Errorf("Err() = %v, want ErrExit", c.Err())
	}

	// Events are no longer dispatched
	c.Handle(input.Event{Kind: input.AxisMoved, Control: input.LeftX, Value: 1})
	if got := c.Input().Get(Lateral); got != 0 {
		t.Errorf("lateral = %v after exit, want 0", got)
	}
}

func TestHome_BlocksStreaming(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)
	ctx := context.Background()

	c.Input().Set(Forward, 1)
	c.step(ctx)

	c.Handle(input.Event{Kind: input.ButtonPressed, Control: input.Triangle})
	<-m.moveStarted

	// Ticks during the move are skipped, not interleaved
	for i := 0; i < 3; i++ {
		if err := c.step(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := m.names(), []string{"stream", "stop", "movej"}; !equalNames(got, want) {
		t.Errorf("commands during home = %v, want %v", got, want)
	}
	if got := m.last().pose; got != robot.DefaultHomePose {
		t.Errorf("home pose = %v, want %v", got, robot.DefaultHomePose)
	}
	if n := c.Stats().Skipped; n != 3 {
		t.Errorf("skipped = %d, want 3", n)
	}

	// A second press while homing is rejected
	if err := c.Home(); !errors.Is(err, ErrHoming) {
		t.Errorf("second Home() = %v, want ErrHoming", err)
	}

	close(m.release)
	c.Close()

	if err := c.step(ctx); err != nil {
		t.Fatal(err)
	}
	if got := m.last().name; got != "stream" {
		t.Errorf("after home = %s, want stream", got)
	}
}

func TestEmergencyStop_PreemptsHome(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)

	homeErr := make(chan error, 1)
	go func() { homeErr <- c.Home() }()
	<-m.moveStarted

	if err := c.EmergencyStop(); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}

	select {
	case err := <-homeErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Home() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("home move was not interrupted")
	}

	if got, want := m.names(), []string{"stop", "movej", "stop", "abort"}; !equalNames(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestHandle_AxisMapping(t *testing.T) {
	c := newTestController(t, newMockRobot())

	tests := []struct {
		ev    input.Event
		field Field
		want  float64
	}{
		{input.Event{Kind: input.AxisMoved, Control: input.LeftX, Value: 1}, Lateral, 1},
		{input.Event{Kind: input.AxisMoved, Control: input.LeftY, Value: -1}, Forward, -1},
		{input.Event{Kind: input.AxisMoved, Control: input.RightX, Value: 0.55}, RollAxis, 0.5},
		{input.Event{Kind: input.AxisMoved, Control: input.RightY, Value: 0.05}, PitchAxis, 0},
		{input.Event{Kind: input.AxisMoved, Control: input.LeftTrigger, Value: 1}, LiftDown, 1},
		{input.Event{Kind: input.AxisMoved, Control: input.RightTrigger, Value: 1}, YawCW, 1},
		{input.Event{Kind: input.ButtonPressed, Control: input.L1}, LiftUp, 1},
		{input.Event{Kind: input.ButtonPressed, Control: input.R1}, YawCCW, 1},
		{input.Event{Kind: input.ButtonReleased, Control: input.L1}, LiftUp, 0},
		{input.Event{Kind: input.ButtonReleased, Control: input.R1}, YawCCW, 0},
		{input.Event{Kind: input.ButtonReleased, Control: input.L2}, LiftDown, 0},
		{input.Event{Kind: input.ButtonReleased, Control: input.R2}, YawCW, 0},
	}

	for _, tt := range tests {
		c.Handle(tt.ev)
		if got := c.Input().Get(tt.field); !floatEquals(got, tt.want) {
			t.Errorf("%s: %s = %v, want %v", tt.ev, tt.field, got, tt.want)
		}
	}
}

func TestHandle_Gripper(t *testing.T) {
	m := newMockRobot()
	var got []bool
	c, err := NewController(m, Config{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gripper: func(closing bool) { got = append(got, closing) },
	})
	if err != nil {
		t.Fatal(err)
	}

	c.Handle(input.Event{Kind: input.ButtonPressed, Control: input.Cross})
	c.Handle(input.Event{Kind: input.ButtonPressed, Control: input.Circle})

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("gripper calls = %v, want [true false]", got)
	}
	if n := len(m.names()); n != 0 {
		t.Errorf("gripper sent %d robot commands", n)
	}
}

// Left stick fully forward streams -scale on X; releasing it stops on the next tick.
func TestEndToEnd_StickForwardThenRelease(t *testing.T) {
	m := newMockRobot()
	c := newTestController(t, m)
	ctx := context.Background()
	cal := input.StickCalibration()

	c.Handle(input.Event{Kind: input.AxisMoved, Control: input.LeftY, Raw: 32767, Value: cal.Normalize(32767)})
	if got := c.Input().Get(Forward); got != 1 {
		t.Fatalf("forward = %v, want 1", got)
	}
	c.step(ctx)

	got := m.last()
	want := robot.Velocity{-0.1, 0, 0, 0, 0, 0}
	if got.name != "stream" || got.velocity != want {
		t.Fatalf("command = %s %v, want stream %v", got.name, got.velocity, want)
	}

	c.Handle(input.Event{Kind: input.AxisMoved, Control: input.LeftY, Raw: 0, Value: cal.Normalize(0)})
	c.step(ctx)
	if got := m.last().name; got != "stop" {
		t.Errorf("after release = %s, want stop", got)
	}
}
