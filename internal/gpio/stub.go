//go:build !linux

package gpio

import (
	"errors"
	"io"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// Open returns an error on non-Linux platforms.
func Open(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// WatchEdges is not implemented on non-Linux platforms.
func (c *Chip) WatchEdges(offset int, h EdgeHandler) (io.Closer, error) {
	return nil, errUnsupported
}

// NewHCSR04 is not implemented on non-Linux platforms.
func (c *Chip) NewHCSR04(trigger, echo int, timeout time.Duration) (*HCSR04, error) {
	return nil, errUnsupported
}

// NewMotorDriver is not implemented on non-Linux platforms.
func (c *Chip) NewMotorDriver(left, right MotorPins, frequency int) (*MotorDriver, error) {
	return nil, errUnsupported
}
