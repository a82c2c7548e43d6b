package gpio

import (
	"errors"
	"math"
	"testing"
	"time"
)

type closeRecorder struct{ closed int }

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

// echoOnTriggerLow simulates the module answering a ping with a pulse of the
// given width once the trigger line falls.
func echoOnTriggerLow(s *HCSR04, line *FakeLine, width time.Duration) {
	line.OnSet = func(v int) {
		if v == 0 {
			s.RisingEdgeAt(time.Second)
			s.FallingEdgeAt(time.Second + width)
		}
	}
}

func TestHCSR04Measures(t *testing.T) {
	line := NewFakeLine()
	s := NewHCSR04(line, 5*time.Millisecond)
	echoOnTriggerLow(s, line, 1160*time.Microsecond)

	d, err := s.ReadDistanceCM()
	if err != nil {
		t.Fatalf("ReadDistanceCM: %v", err)
	}
	if math.Abs(d-20) > 1e-9 {
		t.Errorf("distance: got %v, want 20", d)
	}

	w := line.Writes()
	if len(w) != 2 || w[0] != 1 || w[1] != 0 {
		t.Errorf("trigger writes: got %v, want [1 0]", w)
	}
}

func TestHCSR04DropsStaleEcho(t *testing.T) {
	line := NewFakeLine()
	s := NewHCSR04(line, 5*time.Millisecond)

	// A leftover pulse from an earlier ping.
	s.RisingEdgeAt(0)
	s.FallingEdgeAt(58 * time.Microsecond)

	echoOnTriggerLow(s, line, 2900*time.Microsecond)
	d, err := s.ReadDistanceCM()
	if err != nil {
		t.Fatalf("ReadDistanceCM: %v", err)
	}
	if math.Abs(d-50) > 1e-9 {
		t.Errorf("distance: got %v, want 50", d)
	}
}

func TestHCSR04Timeout(t *testing.T) {
	s := NewHCSR04(NewFakeLine(), 2*time.Millisecond)

	_, err := s.ReadDistanceCM()
	if !errors.Is(err, ErrEchoTimeout) {
		t.Errorf("got %v, want ErrEchoTimeout", err)
	}
}

func TestHCSR04CapsRange(t *testing.T) {
	line := NewFakeLine()
	s := NewHCSR04(line, 5*time.Millisecond)
	echoOnTriggerLow(s, line, 30*time.Millisecond)

	d, err := s.ReadDistanceCM()
	if err != nil {
		t.Fatalf("ReadDistanceCM: %v", err)
	}
	if d != MaxRangeCM {
		t.Errorf("distance: got %v, want %v", d, MaxRangeCM)
	}
}

func TestHCSR04TriggerError(t *testing.T) {
	line := NewFakeLine()
	boom := errors.New("trigger stuck")
	line.SetErr(boom)
	s := NewHCSR04(line, time.Millisecond)

	if _, err := s.ReadDistanceCM(); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestHCSR04Close(t *testing.T) {
	line := NewFakeLine()
	echo := &closeRecorder{}
	s := NewHCSR04(line, time.Millisecond)
	s.SetEcho(echo)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !line.Closed() {
		t.Error("trigger line should be closed")
	}
	if echo.closed != 1 {
		t.Errorf("echo closed %d times, want 1", echo.closed)
	}
	if _, err := s.ReadDistanceCM(); !errors.Is(err, ErrClosed) {
		t.Errorf("read after close: got %v, want ErrClosed", err)
	}
}

func TestHCSR04DefaultTimeout(t *testing.T) {
	s := NewHCSR04(NewFakeLine(), 0)
	if s.timeout != EchoTimeout {
		t.Errorf("timeout: got %v, want %v", s.timeout, EchoTimeout)
	}
}
