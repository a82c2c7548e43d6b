//go:build linux

package gpio

import (
	"testing"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

type edgeRecorder struct {
	rises []time.Duration
	falls []time.Duration
}

func (r *edgeRecorder) RisingEdgeAt(ts time.Duration)  { r.rises = append(r.rises, ts) }
func (r *edgeRecorder) FallingEdgeAt(ts time.Duration) { r.falls = append(r.falls, ts) }

func TestEdgeDispatcher(t *testing.T) {
	rec := &edgeRecorder{}
	h := edgeDispatcher(rec)

	h(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge, Timestamp: 10 * time.Millisecond})
	h(gpiocdev.LineEvent{Type: gpiocdev.LineEventFallingEdge, Timestamp: 11 * time.Millisecond})
	h(gpiocdev.LineEvent{Type: gpiocdev.LineEventRisingEdge, Timestamp: 20 * time.Millisecond})

	if len(rec.rises) != 2 || rec.rises[0] != 10*time.Millisecond || rec.rises[1] != 20*time.Millisecond {
		t.Errorf("rises: got %v", rec.rises)
	}
	if len(rec.falls) != 1 || rec.falls[0] != 11*time.Millisecond {
		t.Errorf("falls: got %v", rec.falls)
	}
}
