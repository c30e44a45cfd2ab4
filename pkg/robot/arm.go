package robot

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Client defaults.
const (
	DefaultPort              = 30003
	DefaultConnectTimeout    = 2 * time.Second
	DefaultMoveTimeout       = 30 * time.Second
	DefaultStopDeceleration  = 10.0
	DefaultAbortDeceleration = 4.0

	// settleTolerance is the joint error (rad) and speed (rad/s) below which
	// a joint move counts as reached.
	settleTolerance = 0.01
)

var (
	// ErrNotConnected is returned by commands issued after Close.
	ErrNotConnected = errors.New("robot not connected")
	// ErrMoveTimeout is returned when a joint move does not settle in time.
	ErrMoveTimeout = errors.New("joint move timed out")
)

// Arm is a Universal Robots controller reached over the realtime interface.
// The same socket accepts URScript and streams state packets.
type Arm struct {
	cfg  ArmConfig
	conn net.Conn

	writeMu sync.Mutex

	mu      sync.RWMutex
	state   RealtimeState
	haveSt  bool
	readErr error
	updated chan struct{} // closed and replaced on every packet

	done chan struct{}
}

// NewArm connects to the controller and waits for the first state packet.
func NewArm(ctx context.Context, cfg ArmConfig) (*Arm, error) {
	cfg = cfg.WithDefaults()
	if cfg.Address == "" {
		return nil, errors.New("robot address not configured")
	}

	dialer := net.Dialer{Timeout: time.Duration(cfg.ConnectTimeout)}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.HostPort())
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", cfg.HostPort())
	}

	a := &Arm{
		cfg:     cfg,
		conn:    conn,
		updated: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.readLoop()

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnectTimeout))
	defer cancel()
	if _, err := a.waitState(waitCtx); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "wait for first state packet")
	}
	return a, nil
}

// Close closes the controller connection.
func (a *Arm) Close() error {
	err := a.conn.Close()
	<-a.done
	return err
}

// Config returns the configuration the arm was opened with.
func (a *Arm) Config() ArmConfig {
	return a.cfg
}

// State returns the most recent controller state.
func (a *Arm) State() (RealtimeState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.haveSt
}

// StreamVelocity sends a speedl command valid for validFor.
func (a *Arm) StreamVelocity(ctx context.Context, v Velocity, acceleration float64, validFor time.Duration) error {
	return a.send(ctx, fmt.Sprintf("speedl(%s, %s, %s)",
		formatList(v[:]), formatFloat(acceleration), formatFloat(validFor.Seconds())))
}

// Stop decelerates any Cartesian motion to rest.
func (a *Arm) Stop(ctx context.Context) error {
	return a.send(ctx, fmt.Sprintf("stopl(%s)", formatFloat(a.cfg.StopDeceleration)))
}

// MoveJoint sends a movej command and blocks until the arm settles at pose,
// the move timeout expires or ctx is done.
func (a *Arm) MoveJoint(ctx context.Context, pose JointPose, speed, acceleration float64) error {
	if err := a.send(ctx, fmt.Sprintf("movej(%s, a=%s, v=%s)",
		formatList(pose[:]), formatFloat(acceleration), formatFloat(speed))); err != nil {
		return err
	}

	moveCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.MoveTimeout))
	defer cancel()

	for {
		st, err := a.waitState(moveCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return ErrMoveTimeout
			}
			return err
		}
		if st.Settled(pose, settleTolerance) {
			return nil
		}
	}
}

// Abort stops the joints and halts the running program.
func (a *Arm) Abort(ctx context.Context) error {
	prog := strings.Join([]string{
		"def teleop_abort():",
		fmt.Sprintf("  stopj(%s)", formatFloat(DefaultAbortDeceleration)),
		"  halt",
		"end",
	}, "\n")
	return a.send(ctx, prog)
}

func (a *Arm) send(ctx context.Context, script string) error {
	a.mu.RLock()
	readErr := a.readErr
	a.mu.RUnlock()
	if readErr != nil {
		return errors.Wrap(ErrNotConnected, readErr.Error())
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	dl, _ := ctx.Deadline()
	if err := a.conn.SetWriteDeadline(dl); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if _, err := a.conn.Write([]byte(script + "\n")); err != nil {
		return errors.Wrap(err, "write script")
	}
	return nil
}

// waitState blocks until the next state packet arrives.
func (a *Arm) waitState(ctx context.Context) (RealtimeState, error) {
	a.mu.RLock()
	ch := a.updated
	readErr := a.readErr
	a.mu.RUnlock()
	if readErr != nil {
		return RealtimeState{}, errors.Wrap(ErrNotConnected, readErr.Error())
	}

	select {
	case <-ctx.Done():
		return RealtimeState{}, ctx.Err()
	case <-ch:
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.readErr != nil {
		return RealtimeState{}, errors.Wrap(ErrNotConnected, a.readErr.Error())
	}
	return a.state, nil
}

func (a *Arm) readLoop() {
	defer close(a.done)
	for {
		pkt, err := ReadPacket(a.conn)
		if err == nil {
			var st RealtimeState
			st, err = DecodeState(pkt)
			if err == nil {
				a.mu.Lock()
				a.state = st
				a.haveSt = true
				close(a.updated)
				a.updated = make(chan struct{})
				a.mu.Unlock()
				continue
			}
		}

		a.mu.Lock()
		a.readErr = err
		close(a.updated)
		a.updated = make(chan struct{})
		a.mu.Unlock()
		return
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func formatList(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
