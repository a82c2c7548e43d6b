package gpio

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/obstacle-rover/internal/sensor"
)

// HC-SR04 timing.
const (
	TriggerPulse = 10 * time.Microsecond
	// EchoTimeout covers the round trip to MaxRange (400 cm at 58 us/cm is
	// 23.2 ms) plus margin.
	EchoTimeout = 25 * time.Millisecond
	MaxRangeCM  = 400.0
)

// ErrEchoTimeout is returned when no echo pulse completes in time.
var ErrEchoTimeout = errors.New("hcsr04: no echo")

// HCSR04 measures distance with a trigger line and an edge-watched echo line.
type HCSR04 struct {
	trigger OutputLine
	echo    io.Closer
	timeout time.Duration

	mu     sync.Mutex // one measurement at a time
	rise   atomic.Int64
	widths chan time.Duration

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// NewHCSR04 wraps a requested trigger line. Echo edges must be delivered to
// the returned value's EdgeHandler methods; call SetEcho with the watched
// echo line so Close can release it.
func NewHCSR04(trigger OutputLine, timeout time.Duration) *HCSR04 {
	if timeout <= 0 {
		timeout = EchoTimeout
	}
	return &HCSR04{
		trigger: trigger,
		timeout: timeout,
		widths:  make(chan time.Duration, 1),
	}
}

// SetEcho records the echo line for Close.
func (s *HCSR04) SetEcho(echo io.Closer) {
	s.echo = echo
}

// RisingEdgeAt implements EdgeHandler.
func (s *HCSR04) RisingEdgeAt(ts time.Duration) {
	s.rise.Store(int64(ts))
}

// FallingEdgeAt implements EdgeHandler. Widths nobody is waiting for are
// dropped.
func (s *HCSR04) FallingEdgeAt(ts time.Duration) {
	w := ts - time.Duration(s.rise.Load())
	select {
	case s.widths <- w:
	default:
	}
}

// ReadDistanceCM triggers a ping and waits for its echo. Readings are capped
// to [0, MaxRangeCM].
func (s *HCSR04) ReadDistanceCM() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return 0, ErrClosed
	}

	// Drop any stale echo.
	select {
	case <-s.widths:
	default:
	}

	if err := s.trigger.SetValue(1); err != nil {
		return 0, err
	}
	busyWait(TriggerPulse)
	if err := s.trigger.SetValue(0); err != nil {
		return 0, err
	}

	t := time.NewTimer(s.timeout)
	defer t.Stop()
	select {
	case w := <-s.widths:
		d := sensor.PulseToCentimeters(w)
		if d < 0 {
			d = 0
		}
		if d > MaxRangeCM {
			d = MaxRangeCM
		}
		return d, nil
	case <-t.C:
		return 0, ErrEchoTimeout
	}
}

// Close releases the trigger and echo lines.
func (s *HCSR04) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed.Store(true)
		var errs []error
		if err := s.trigger.SetValue(0); err != nil {
			errs = append(errs, err)
		}
		if err := s.trigger.Close(); err != nil {
			errs = append(errs, err)
		}
		if s.echo != nil {
			if err := s.echo.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// busyWait spins for short intervals that time.Sleep cannot resolve.
func busyWait(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
