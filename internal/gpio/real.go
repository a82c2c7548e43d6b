//go:build linux

package gpio

import (
	"fmt"
	"io"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "obstacle-rover"

// Chip opens lines on a Linux GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
}

// Open opens the named chip, e.g. "gpiochip0".
func Open(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Close closes the chip. Lines already requested stay valid until closed.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// edgeDispatcher forwards line events to h with their kernel timestamps.
func edgeDispatcher(h EdgeHandler) gpiocdev.EventHandler {
	return func(evt gpiocdev.LineEvent) {
		switch evt.Type {
		case gpiocdev.LineEventRisingEdge:
			h.RisingEdgeAt(evt.Timestamp)
		case gpiocdev.LineEventFallingEdge:
			h.FallingEdgeAt(evt.Timestamp)
		}
	}
}

// WatchEdges requests offset as an input reporting both edges to h.
// Closing the returned line stops event delivery.
func (c *Chip) WatchEdges(offset int, h EdgeHandler) (io.Closer, error) {
	line, err := c.chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(edgeDispatcher(h)),
	)
	if err != nil {
		return nil, fmt.Errorf("request edge pin %d: %w", offset, err)
	}
	return line, nil
}

// outputLine restores an output to input with pull-down (the Pi boot
// default) before releasing it.
type outputLine struct {
	*gpiocdev.Line
}

func (l outputLine) Close() error {
	var reconfErr error
	if err := l.Line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		reconfErr = fmt.Errorf("reconfigure pin %d: %w", l.Line.Offset(), err)
	}
	if err := l.Line.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", l.Line.Offset(), err)
	}
	return reconfErr
}

func (c *Chip) requestOutput(offset int) (OutputLine, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	return outputLine{line}, nil
}

// NewHCSR04 requests the trigger and echo lines of an HC-SR04.
func (c *Chip) NewHCSR04(trigger, echo int, timeout time.Duration) (*HCSR04, error) {
	trig, err := c.requestOutput(trigger)
	if err != nil {
		return nil, err
	}
	s := NewHCSR04(trig, timeout)
	echoLine, err := c.WatchEdges(echo, s)
	if err != nil {
		trig.Close()
		return nil, err
	}
	s.SetEcho(echoLine)
	return s, nil
}

// NewMotorDriver requests all six motor lines. On failure every line already
// requested is released.
func (c *Chip) NewMotorDriver(left, right MotorPins, frequency int) (*MotorDriver, error) {
	offsets := []int{
		left.Forward, left.Backward, left.Enable,
		right.Forward, right.Backward, right.Enable,
	}
	lines := make([]OutputLine, 0, len(offsets))
	for _, o := range offsets {
		l, err := c.requestOutput(o)
		if err != nil {
			for _, got := range lines {
				got.Close()
			}
			return nil, err
		}
		lines = append(lines, l)
	}
	return NewMotorDriver(MotorLines{
		LeftForward:   lines[0],
		LeftBackward:  lines[1],
		LeftEnable:    lines[2],
		RightForward:  lines[3],
		RightBackward: lines[4],
		RightEnable:   lines[5],
	}, frequency), nil
}
