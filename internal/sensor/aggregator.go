// Package sensor turns raw rangefinder readings into a clamped distance triple.
// It has no hardware dependencies; GPIO backends live in internal/gpio.
package sensor

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Clamp bounds in centimeters.
const (
	MinDistance = 2.0
	MaxDistance = 400.0
)

// Unknown is the sentinel for a distance that could not be measured.
var Unknown = math.Inf(1)

// Rangefinder is a blocking distance source.
type Rangefinder interface {
	// ReadDistanceCM returns the measured distance in centimeters.
	// Errors are transient; the caller retries on the next cycle.
	ReadDistanceCM() (float64, error)
}

// Triple holds one cycle's distances.
type Triple struct {
	Left  float64
	Front float64
	Right float64
}

// Values returns the distances in left, front, right order.
func (t Triple) Values() []float64 {
	return []float64{t.Left, t.Front, t.Right}
}

// Min returns the smallest of the three distances.
func (t Triple) Min() float64 {
	return floats.Min(t.Values())
}

// Failsafe is returned for every position when any read fails.
func Failsafe() Triple {
	return Triple{Left: Unknown, Front: Unknown, Right: Unknown}
}

// ReadError reports which sensor failed during ReadAll.
type ReadError struct {
	Sensor string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s sensor: %v", e.Sensor, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Clamp forces x into [MinDistance, MaxDistance]. NaN is treated as out of
// range high.
func Clamp(x float64) float64 {
	if math.IsNaN(x) {
		return MaxDistance
	}
	return math.Max(MinDistance, math.Min(x, MaxDistance))
}

// Aggregator reads the left, front and right sensors as a unit.
type Aggregator struct {
	left  Rangefinder
	front Rangefinder
	right Rangefinder
}

// NewAggregator creates an Aggregator over the three sensors.
func NewAggregator(left, front, right Rangefinder) *Aggregator {
	return &Aggregator{left: left, front: front, right: right}
}

// ReadAll queries every sensor and returns a clamped triple. If any read
// fails the returned triple is Failsafe() together with a *ReadError; real
// and fallback values are never mixed.
func (a *Aggregator) ReadAll() (Triple, error) {
	left, err := a.left.ReadDistanceCM()
	if err != nil {
		return Failsafe(), &ReadError{Sensor: "left", Err: err}
	}
	front, err := a.front.ReadDistanceCM()
	if err != nil {
		return Failsafe(), &ReadError{Sensor: "front", Err: err}
	}
	right, err := a.right.ReadDistanceCM()
	if err != nil {
		return Failsafe(), &ReadError{Sensor: "right", Err: err}
	}

	return Triple{
		Left:  Clamp(left),
		Front: Clamp(front),
		Right: Clamp(right),
	}, nil
}

// Close releases every sensor that holds resources.
func (a *Aggregator) Close() error {
	var errs []error
	for _, s := range []struct {
		name string
		r    Rangefinder
	}{{"left", a.left}, {"front", a.front}, {"right", a.right}} {
		c, ok := s.r.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sensor: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
