package sensor

import "errors"

// FakeRangefinder is a test double that returns scripted readings.
type FakeRangefinder struct {
	// Readings contains scripted distances in centimeters.
	// Each call to ReadDistanceCM consumes the next reading.
	Readings []float64

	// index tracks current position in Readings
	index int

	// ReadError, if set, will be returned by ReadDistanceCM.
	ReadError error

	// Calls counts ReadDistanceCM invocations.
	Calls int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeRangefinder creates a FakeRangefinder with the given readings.
func NewFakeRangefinder(readings ...float64) *FakeRangefinder {
	return &FakeRangefinder{Readings: readings}
}

// ReadDistanceCM returns the next scripted reading.
// If readings are exhausted, returns the last reading repeatedly.
func (f *FakeRangefinder) ReadDistanceCM() (float64, error) {
	f.Calls++
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	if len(f.Readings) == 0 {
		return 0, errors.New("no readings configured")
	}

	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Close marks the rangefinder as closed.
func (f *FakeRangefinder) Close() error {
	f.Closed = true
	return nil
}
