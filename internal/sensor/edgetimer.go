package sensor

import (
	"io"
	"math"
	"sync/atomic"
	"time"
)

// ScaleFactor is the MB1040 pulse-width conversion: 58 us per cm.
const ScaleFactor = 58.0

// PulseToCentimeters converts an echo pulse width into centimeters.
// Negative widths are passed through unfiltered; clamping happens in the
// aggregator.
func PulseToCentimeters(width time.Duration) float64 {
	us := float64(width) / float64(time.Microsecond)
	return us / ScaleFactor
}

// processStart anchors the default monotonic clock.
var processStart = time.Now()

// MonotonicClock returns the time elapsed since process start using the
// runtime's monotonic reading.
func MonotonicClock() time.Duration {
	return time.Since(processStart)
}

// EdgeTimer turns rising/falling edge pairs on a single input line into a
// distance. Edge methods may be called from a different goroutine than
// Distance; all shared state lives in atomic slots so neither side blocks.
type EdgeTimer struct {
	clock func() time.Duration

	rise  atomic.Int64 // time.Duration
	fall  atomic.Int64 // time.Duration
	width atomic.Int64 // time.Duration
	dist  atomic.Uint64

	source io.Closer
}

// NewEdgeTimer creates an EdgeTimer reading timestamps from clock.
// A nil clock uses MonotonicClock.
func NewEdgeTimer(clock func() time.Duration) *EdgeTimer {
	if clock == nil {
		clock = MonotonicClock
	}
	return &EdgeTimer{clock: clock}
}

// OnRisingEdge records the current time as the start of a pulse.
func (t *EdgeTimer) OnRisingEdge() {
	t.RisingEdgeAt(t.clock())
}

// OnFallingEdge records the current time as the end of a pulse and updates
// the latest distance.
func (t *EdgeTimer) OnFallingEdge() {
	t.FallingEdgeAt(t.clock())
}

// RisingEdgeAt records ts as the start of a pulse.
func (t *EdgeTimer) RisingEdgeAt(ts time.Duration) {
	t.rise.Store(int64(ts))
}

// FallingEdgeAt records ts as the end of a pulse and stores the derived
// distance. A falling edge with no fresh rising edge yields a stale or
// degenerate width; it is stored as-is.
func (t *EdgeTimer) FallingEdgeAt(ts time.Duration) {
	t.fall.Store(int64(ts))
	width := ts - time.Duration(t.rise.Load())
	t.width.Store(int64(width))
	t.dist.Store(math.Float64bits(PulseToCentimeters(width)))
}

// Distance returns the most recently computed distance in centimeters, or 0
// if no edge pair has completed yet.
func (t *EdgeTimer) Distance() float64 {
	return math.Float64frombits(t.dist.Load())
}

// PulseWidth returns the most recently measured pulse width.
func (t *EdgeTimer) PulseWidth() time.Duration {
	return time.Duration(t.width.Load())
}

// ReadDistanceCM implements Rangefinder. It never fails.
func (t *EdgeTimer) ReadDistanceCM() (float64, error) {
	return t.Distance(), nil
}

// Attach records the edge source feeding this timer so Close can release it.
// It must be called before the timer is shared with the control loop.
func (t *EdgeTimer) Attach(src io.Closer) {
	t.source = src
}

// Close releases the attached edge source, if any.
func (t *EdgeTimer) Close() error {
	if t.source == nil {
		return nil
	}
	return t.source.Close()
}
