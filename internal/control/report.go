package control

import (
	"time"

	"github.com/sweeney/obstacle-rover/internal/drive"
	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/sensor"
)

// Report describes one completed (or failed) cycle.
type Report struct {
	Cycle uint64
	Time  time.Time

	// Measured is false when the cycle skipped the sensor read (stall recovery).
	Measured  bool
	Distances sensor.Triple
	SensorErr error

	Mode      logic.Mode
	Commands  []drive.Command
	SkipDelay bool

	// Err is set when the cycle failed and was recovered.
	Err error
}

// Observer receives a report after every cycle. It runs on the control
// goroutine and must not block.
type Observer interface {
	ObserveCycle(Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Report)

// ObserveCycle calls f(r).
func (f ObserverFunc) ObserveCycle(r Report) { f(r) }
