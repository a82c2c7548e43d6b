// Package status provides a thread-safe status tracker for the rover daemon.
// It observes the control loop and is read by HTTP handlers and MQTT
// lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/obstacle-rover/internal/control"
	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/sensor"
)

// Config contains daemon configuration for display.
type Config struct {
	SafeDistance float64
	CycleDelayMs int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
}

// Counts tallies cycles since startup.
type Counts struct {
	Cycles         uint64
	SensorFailures uint64
	CycleFailures  uint64
	Modes          map[logic.Mode]uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	SessionID     string
	StartTime     time.Time
	Now           time.Time
	LastCycle     time.Time
	Measured      bool
	Distances     sensor.Triple
	Mode          logic.Mode
	Commands      []string
	LastError     string
	Counts        Counts
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether at least one cycle has completed.
func (s Snapshot) Ready() bool {
	return s.Counts.Cycles > 0
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, session and config.
func NewTracker(startTime time.Time, sessionID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			SessionID: sessionID,
			StartTime: startTime,
			Distances: sensor.Failsafe(),
			Counts:    Counts{Modes: make(map[logic.Mode]uint64)},
			Config:    cfg,
		},
		now: time.Now,
	}
}

// ObserveCycle implements control.Observer.
func (t *Tracker) ObserveCycle(r control.Report) {
	cmds := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		cmds[i] = c.String()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastCycle = r.Time
	t.snap.Measured = r.Measured
	if r.Measured {
		t.snap.Distances = r.Distances
	}
	t.snap.Mode = r.Mode
	t.snap.Commands = cmds
	t.snap.Counts.Cycles++

	// A cycle error outranks a sensor error in LastError.
	if r.SensorErr != nil {
		t.snap.Counts.SensorFailures++
		t.snap.LastError = r.SensorErr.Error()
	}
	if r.Err != nil {
		t.snap.Counts.CycleFailures++
		t.snap.LastError = r.Err.Error()
	}
	if r.Mode != "" {
		t.snap.Counts.Modes[r.Mode]++
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Commands = append([]string(nil), t.snap.Commands...)
	s.Counts.Modes = make(map[logic.Mode]uint64, len(t.snap.Counts.Modes))
	for m, n := range t.snap.Counts.Modes {
		s.Counts.Modes[m] = n
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
