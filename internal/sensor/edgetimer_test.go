package sensor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPulseToCentimeters(t *testing.T) {
	cases := []struct {
		width time.Duration
		want  float64
	}{
		{0, 0},
		{58 * time.Microsecond, 1},
		{580 * time.Microsecond, 10},
		{23200 * time.Microsecond, 400},
		{29 * time.Microsecond, 0.5},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, PulseToCentimeters(c.width), 1e-9, "width %v", c.width)
	}
}

func TestPulseToCentimetersMonotonic(t *testing.T) {
	prev := PulseToCentimeters(0)
	for us := 1; us <= 30000; us += 7 {
		d := PulseToCentimeters(time.Duration(us) * time.Microsecond)
		require.Greater(t, d, prev, "distance must increase with width (%dus)", us)
		prev = d
	}
}

func TestEdgeTimerInitialDistanceIsZero(t *testing.T) {
	et := NewEdgeTimer(nil)
	assert.Equal(t, 0.0, et.Distance())
	assert.Equal(t, time.Duration(0), et.PulseWidth())
}

func TestEdgeTimerPairProducesDistance(t *testing.T) {
	now := time.Duration(0)
	et := NewEdgeTimer(func() time.Duration { return now })

	now = 10 * time.Millisecond
	et.OnRisingEdge()
	now += 1160 * time.Microsecond
	et.OnFallingEdge()

	assert.InDelta(t, 20.0, et.Distance(), 1e-9)
	assert.Equal(t, 1160*time.Microsecond, et.PulseWidth())

	d, err := et.ReadDistanceCM()
	require.NoError(t, err)
	assert.InDelta(t, 20.0, d, 1e-9)
}

func TestEdgeTimerKeepsLastValueUntilNextPair(t *testing.T) {
	et := NewEdgeTimer(nil)
	et.RisingEdgeAt(time.Second)
	et.FallingEdgeAt(time.Second + 580*time.Microsecond)

	// A rising edge alone does not change the reported distance.
	et.RisingEdgeAt(2 * time.Second)
	assert.InDelta(t, 10.0, et.Distance(), 1e-9)

	et.FallingEdgeAt(2*time.Second + 1740*time.Microsecond)
	assert.InDelta(t, 30.0, et.Distance(), 1e-9)
}

func TestEdgeTimerFallingWithoutRising(t *testing.T) {
	et := NewEdgeTimer(nil)

	// Falling edge before any rising edge: width measured from zero.
	assert.NotPanics(t, func() { et.FallingEdgeAt(58 * time.Millisecond) })
	assert.InDelta(t, 1000.0, et.Distance(), 1e-9)
	assert.Equal(t, MaxDistance, Clamp(et.Distance()))
}

func TestEdgeTimerOutOfOrderEdges(t *testing.T) {
	et := NewEdgeTimer(nil)
	et.RisingEdgeAt(5 * time.Second)
	et.FallingEdgeAt(4 * time.Second)

	assert.Less(t, et.Distance(), 0.0)
	assert.Equal(t, MinDistance, Clamp(et.Distance()))
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestEdgeTimerClose(t *testing.T) {
	et := NewEdgeTimer(nil)
	require.NoError(t, et.Close(), "close with no source")

	src := &closeCounter{}
	et.Attach(src)
	require.NoError(t, et.Close())
	assert.Equal(t, 1, src.n)
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("line busy") }

func TestEdgeTimerCloseError(t *testing.T) {
	et := NewEdgeTimer(nil)
	et.Attach(failingCloser{})
	assert.EqualError(t, et.Close(), "line busy")
}

func TestEdgeTimerConcurrentAccess(t *testing.T) {
	et := NewEdgeTimer(nil)
	var wg sync.WaitGroup

	// Edge callbacks
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			base := time.Duration(i) * time.Millisecond
			et.RisingEdgeAt(base)
			et.FallingEdgeAt(base + 580*time.Microsecond)
		}
	}()

	// Control loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			d := et.Distance()
			if d != 0 && (d < -1e6 || d > 1e6) {
				t.Errorf("torn read: %v", d)
				return
			}
		}
	}()

	wg.Wait()
	assert.InDelta(t, 10.0, et.Distance(), 1e-9)
}
