// Package gpio provides the rover's GPIO hardware: edge-timed inputs,
// HC-SR04 rangefinders and an L298N-style motor driver.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"time"
)

// Pin definitions (BCM numbering)
const (
	DefaultChip = "gpiochip0"

	PinLeftTrigger  = 23
	PinLeftEcho     = 24
	PinRightTrigger = 5
	PinRightEcho    = 6
	PinFrontPW      = 17

	PinLeftForward   = 7
	PinLeftBackward  = 8
	PinLeftEnable    = 12
	PinRightForward  = 9
	PinRightBackward = 10
	PinRightEnable   = 13
)

// ErrClosed is returned by devices used after Close or Cleanup.
var ErrClosed = errors.New("gpio: device closed")

// OutputLine is a single requested output line.
type OutputLine interface {
	SetValue(value int) error
	Close() error
}

// EdgeHandler receives edges from a watched input line. Timestamps come from
// the kernel's monotonic clock. Calls arrive on the line's event goroutine.
type EdgeHandler interface {
	RisingEdgeAt(ts time.Duration)
	FallingEdgeAt(ts time.Duration)
}

// MotorPins are the three lines driving one side of an H-bridge.
type MotorPins struct {
	Forward  int
	Backward int
	Enable   int
}
