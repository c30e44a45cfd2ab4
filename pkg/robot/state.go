package robot

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Byte offsets into a realtime interface packet, counted from the start of
// the length prefix.
const (
	offTime       = 4
	offQActual    = 252
	offQdActual   = 300
	offToolActual = 444
	offTCPSpeed   = 492
	offRobotMode  = 756
	offSafetyMode = 812

	minPacketSize = offTCPSpeed + 48
	maxPacketSize = 4096
)

// RobotMode is the controller's robot mode.
type RobotMode int

// Robot modes reported by the controller.
const (
	ModeUnknown         RobotMode = -1
	ModeDisconnected    RobotMode = 0
	ModeConfirmSafety   RobotMode = 1
	ModeBooting         RobotMode = 2
	ModePowerOff        RobotMode = 3
	ModePowerOn         RobotMode = 4
	ModeIdle            RobotMode = 5
	ModeBackdrive       RobotMode = 6
	ModeRunning         RobotMode = 7
	ModeUpdatingFirmware RobotMode = 8
)

func (m RobotMode) String() string {
	switch m {
	case ModeDisconnected:
		return "disconnected"
	case ModeConfirmSafety:
		return "confirm_safety"
	case ModeBooting:
		return "booting"
	case ModePowerOff:
		return "power_off"
	case ModePowerOn:
		return "power_on"
	case ModeIdle:
		return "idle"
	case ModeBackdrive:
		return "backdrive"
	case ModeRunning:
		return "running"
	case ModeUpdatingFirmware:
		return "updating_firmware"
	default:
		return "unknown"
	}
}

// RealtimeState is the decoded subset of a realtime interface packet.
type RealtimeState struct {
	Time       float64 // seconds since controller start
	Q          JointPose
	Qd         JointPose
	TCPPose    [6]float64
	TCPSpeed   Velocity
	RobotMode  RobotMode
	SafetyMode int
}

// Settled reports whether the arm is at target within tol radians and
// every joint speed is below tol.
func (s RealtimeState) Settled(target JointPose, tol float64) bool {
	if s.Q.MaxDelta(target) > tol {
		return false
	}
	return s.Qd.MaxDelta(JointPose{}) < tol
}

// ReadPacket reads one length-prefixed packet from r.
func ReadPacket(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := int(binary.BigEndian.Uint32(hdr[:]))
	if size < 4 || size > maxPacketSize {
		return nil, errors.Errorf("invalid packet size %d", size)
	}
	pkt := make([]byte, size)
	copy(pkt, hdr[:])
	if _, err := io.ReadFull(r, pkt[4:]); err != nil {
		return nil, errors.Wrap(err, "read packet body")
	}
	return pkt, nil
}

// DecodeState decodes a realtime packet. Packets from older controllers
// that lack the mode fields decode with ModeUnknown.
func DecodeState(pkt []byte) (RealtimeState, error) {
	if len(pkt) < minPacketSize {
		return RealtimeState{}, errors.Errorf("packet too short: %d bytes", len(pkt))
	}
	s := RealtimeState{
		Time:       f64(pkt, offTime),
		RobotMode:  ModeUnknown,
		SafetyMode: -1,
	}
	for i := 0; i < 6; i++ {
		s.Q[i] = f64(pkt, offQActual+8*i)
		s.Qd[i] = f64(pkt, offQdActual+8*i)
		s.TCPPose[i] = f64(pkt, offToolActual+8*i)
		s.TCPSpeed[i] = f64(pkt, offTCPSpeed+8*i)
	}
	if len(pkt) >= offRobotMode+8 {
		s.RobotMode = RobotMode(f64(pkt, offRobotMode))
	}
	if len(pkt) >= offSafetyMode+8 {
		s.SafetyMode = int(f64(pkt, offSafetyMode))
	}
	return s, nil
}

func f64(b []byte, off int) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b[off : off+8]))
}

// EncodeState builds a realtime packet of the given size carrying s.
// Controllers never receive these; simulators and tests do.
func EncodeState(s RealtimeState, size int) []byte {
	if size < minPacketSize {
		size = minPacketSize
	}
	pkt := make([]byte, size)
	binary.BigEndian.PutUint32(pkt, uint32(size))
	put := func(off int, v float64) {
		if off+8 <= size {
			binary.BigEndian.PutUint64(pkt[off:], math.Float64bits(v))
		}
	}
	put(offTime, s.Time)
	for i := 0; i < 6; i++ {
		put(offQActual+8*i, s.Q[i])
		put(offQdActual+8*i, s.Qd[i])
		put(offToolActual+8*i, s.TCPPose[i])
		put(offTCPSpeed+8*i, s.TCPSpeed[i])
	}
	put(offRobotMode, float64(s.RobotMode))
	put(offSafetyMode, float64(s.SafetyMode))
	return pkt
}
