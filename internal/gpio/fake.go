package gpio

import "sync"

// FakeLine is a test double for an output line. It is safe for concurrent
// use because PWM writes come from their own goroutine.
type FakeLine struct {
	mu sync.Mutex

	// Values records every value written, in order.
	Values []int

	// SetError, if set, will be returned by SetValue.
	SetError error

	// OnSet, if set, is called after each successful write with the value.
	OnSet func(value int)

	closed bool
}

// NewFakeLine creates a FakeLine.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// SetValue records the value.
func (f *FakeLine) SetValue(value int) error {
	f.mu.Lock()
	if f.SetError != nil {
		err := f.SetError
		f.mu.Unlock()
		return err
	}
	f.Values = append(f.Values, value)
	hook := f.OnSet
	f.mu.Unlock()

	if hook != nil {
		hook(value)
	}
	return nil
}

// Value returns the last written value, or -1 if nothing was written.
func (f *FakeLine) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return -1
	}
	return f.Values[len(f.Values)-1]
}

// Writes returns a copy of the recorded values.
func (f *FakeLine) Writes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.Values...)
}

// SetErr changes the error returned by SetValue.
func (f *FakeLine) SetErr(err error) {
	f.mu.Lock()
	f.SetError = err
	f.mu.Unlock()
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded values.
func (f *FakeLine) Reset() {
	f.mu.Lock()
	f.Values = nil
	f.closed = false
	f.mu.Unlock()
}
