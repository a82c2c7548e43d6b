package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// motor is one side of the H-bridge.
type motor struct {
	name string
	fwd  OutputLine
	bwd  OutputLine
	pwm  *softPWM
}

// set drives the motor at speed in [-1,1]; negative is backward.
func (m *motor) set(speed float64) error {
	fwd, bwd := 0, 0
	switch {
	case speed > 0:
		fwd = 1
	case speed < 0:
		bwd = 1
		speed = -speed
	}
	// Release the active direction before engaging the other.
	if err := m.fwd.SetValue(0); err != nil {
		return fmt.Errorf("%s forward pin: %w", m.name, err)
	}
	if err := m.bwd.SetValue(bwd); err != nil {
		return fmt.Errorf("%s backward pin: %w", m.name, err)
	}
	if err := m.fwd.SetValue(fwd); err != nil {
		return fmt.Errorf("%s forward pin: %w", m.name, err)
	}
	if err := m.pwm.set(speed); err != nil {
		return fmt.Errorf("%s enable pin: %w", m.name, err)
	}
	return nil
}

func (m *motor) close() error {
	var errs []error
	if err := m.pwm.close(); err != nil {
		errs = append(errs, fmt.Errorf("%s enable pin: %w", m.name, err))
	}
	for _, l := range []struct {
		pin  string
		line OutputLine
	}{{"forward", m.fwd}, {"backward", m.bwd}} {
		if err := l.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("%s %s pin: %w", m.name, l.pin, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s %s pin: %w", m.name, l.pin, err))
		}
	}
	if err := m.pwm.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s enable pin: %w", m.name, err))
	}
	return errors.Join(errs...)
}

// MotorDriver drives a two-wheel differential base. Turns spin in place:
// Left runs the left wheel backward and the right wheel forward.
type MotorDriver struct {
	mu     sync.Mutex
	left   *motor
	right  *motor
	closed bool
}

// MotorLines are the requested lines for both sides.
type MotorLines struct {
	LeftForward, LeftBackward, LeftEnable    OutputLine
	RightForward, RightBackward, RightEnable OutputLine
}

// NewMotorDriver wraps already-requested lines. PWM runs at frequency Hz
// (DefaultPWMFrequency if <= 0).
func NewMotorDriver(lines MotorLines, frequency int) *MotorDriver {
	return &MotorDriver{
		left: &motor{
			name: "left",
			fwd:  lines.LeftForward,
			bwd:  lines.LeftBackward,
			pwm:  newSoftPWM(lines.LeftEnable, frequency),
		},
		right: &motor{
			name: "right",
			fwd:  lines.RightForward,
			bwd:  lines.RightBackward,
			pwm:  newSoftPWM(lines.RightEnable, frequency),
		},
	}
}

func (d *MotorDriver) drive(left, right float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.left.set(left); err != nil {
		return err
	}
	return d.right.set(right)
}

// Forward drives both wheels forward.
func (d *MotorDriver) Forward(speed float64) error { return d.drive(speed, speed) }

// Backward drives both wheels backward.
func (d *MotorDriver) Backward(speed float64) error { return d.drive(-speed, -speed) }

// Left spins counter-clockwise in place.
func (d *MotorDriver) Left(speed float64) error { return d.drive(-speed, speed) }

// Right spins clockwise in place.
func (d *MotorDriver) Right(speed float64) error { return d.drive(speed, -speed) }

// Stop removes power from both wheels.
func (d *MotorDriver) Stop() error { return d.drive(0, 0) }

// Cleanup stops PWM, drives every pin low and releases the lines.
// Calls after the first are no-ops.
func (d *MotorDriver) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if err := d.left.close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.right.close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("motor cleanup: %w", errors.Join(errs...))
	}
	return nil
}
