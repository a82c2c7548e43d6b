// Package drive defines drive commands and the interface that executes them.
// Hardware implementations live in internal/gpio.
package drive

import (
	"fmt"
	"strconv"
)

// Kind identifies a drive command.
type Kind string

const (
	Forward   Kind = "FORWARD"
	Backward  Kind = "BACKWARD"
	TurnLeft  Kind = "LEFT"
	TurnRight Kind = "RIGHT"
	Stop      Kind = "STOP"
)

// Command is a single drive instruction. Speed is ignored for Stop.
type Command struct {
	Kind  Kind
	Speed float64
}

// Constructors for each command kind.
func ForwardAt(speed float64) Command   { return Command{Kind: Forward, Speed: speed} }
func BackwardAt(speed float64) Command  { return Command{Kind: Backward, Speed: speed} }
func TurnLeftAt(speed float64) Command  { return Command{Kind: TurnLeft, Speed: speed} }
func TurnRightAt(speed float64) Command { return Command{Kind: TurnRight, Speed: speed} }
func Halt() Command                     { return Command{Kind: Stop} }

// Moves reports whether the command powers the motors.
func (c Command) Moves() bool {
	return c.Kind != Stop
}

// Validate checks the kind and, for moving commands, that speed is in (0,1].
func (c Command) Validate() error {
	switch c.Kind {
	case Stop:
		return nil
	case Forward, Backward, TurnLeft, TurnRight:
		if !(c.Speed > 0 && c.Speed <= 1) {
			return fmt.Errorf("drive: %s speed %v outside (0,1]", c.Kind, c.Speed)
		}
		return nil
	default:
		return fmt.Errorf("drive: unknown command kind %q", c.Kind)
	}
}

func (c Command) String() string {
	if c.Kind == Stop {
		return string(Stop)
	}
	return string(c.Kind) + "(" + strconv.FormatFloat(c.Speed, 'f', -1, 64) + ")"
}

// Issuer executes drive commands on a differential drive.
type Issuer interface {
	Forward(speed float64) error
	Backward(speed float64) error
	Left(speed float64) error
	Right(speed float64) error
	Stop() error

	// Cleanup zeroes motor power and releases resources.
	// It must be safe to call more than once.
	Cleanup() error
}

// Execute validates c and dispatches it to d.
func Execute(d Issuer, c Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.Kind {
	case Forward:
		return d.Forward(c.Speed)
	case Backward:
		return d.Backward(c.Speed)
	case TurnLeft:
		return d.Left(c.Speed)
	case TurnRight:
		return d.Right(c.Speed)
	default:
		return d.Stop()
	}
}
