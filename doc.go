// Package urteleop teleoperates a Universal Robots arm from a DualShock 4
// controller.
//
// Stick and trigger input is turned into a Cartesian velocity command that is
// streamed to the robot at 125 Hz. Buttons move the arm home, stop it, or end
// the session. There is no deadman switch: the arm moves as soon as a stick
// leaves its dead zone.
//
// # Installation
//
//	go install github.com/gwillem/urteleop/cmd/urteleop@latest
//
// # Usage
//
// Choose the controller and robot address:
//
//	urteleop setup
//
// Verify both are reachable:
//
//	urteleop check
//
// Then start teleoperation:
//
//	urteleop teleoperate
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/urteleop: CLI with setup, check and teleoperate commands
//   - pkg/teleop: Control loop, input state and button handling
//   - pkg/robot: Motion interface, UR controller client and configuration
//   - pkg/input: Controller events and the Linux joystick source
//   - internal/log: Structured logging
package urteleop
