// Package logic contains the pure obstacle-avoidance decision rules.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Elapsed time and randomness are always injected.
package logic

import (
	"time"

	"github.com/sweeney/obstacle-rover/internal/drive"
	"github.com/sweeney/obstacle-rover/internal/sensor"
)

// Mode names the branch that produced a maneuver.
type Mode string

const (
	ModeStalled      Mode = "STALLED"
	ModeSurrounded   Mode = "SURROUNDED"
	ModeFrontBlocked Mode = "FRONT_BLOCKED"
	ModeLeftBlocked  Mode = "LEFT_BLOCKED"
	ModeRightBlocked Mode = "RIGHT_BLOCKED"
	ModeClear        Mode = "CLEAR"
)

// Modes lists every mode in rule order.
var Modes = []Mode{
	ModeStalled,
	ModeSurrounded,
	ModeFrontBlocked,
	ModeLeftBlocked,
	ModeRightBlocked,
	ModeClear,
}

// Step issues Command and then blocks for Hold.
type Step struct {
	Command drive.Command
	Hold    time.Duration
}

// Maneuver is the outcome of one decision.
type Maneuver struct {
	Mode  Mode
	Steps []Step

	// SkipCycleDelay is set for maneuvers that start the next cycle
	// immediately after their last step.
	SkipCycleDelay bool
}

// Duration returns the total hold time of the maneuver.
func (m Maneuver) Duration() time.Duration {
	var d time.Duration
	for _, s := range m.Steps {
		d += s.Hold
	}
	return d
}

// Commands returns the commands of every step in order.
func (m Maneuver) Commands() []drive.Command {
	out := make([]drive.Command, len(m.Steps))
	for i, s := range m.Steps {
		out[i] = s.Command
	}
	return out
}

// Input is one cycle's view of the world.
type Input struct {
	Distances sensor.Triple
}

// Config holds the avoidance thresholds. Zero fields take defaults in
// NewDecider.
type Config struct {
	// SafeDistance is the obstacle threshold in centimeters.
	SafeDistance float64
	// MaxStationary is how long the robot may go without moving before
	// stall recovery.
	MaxStationary time.Duration
}

// Defaults
const (
	DefaultSafeDistance  = 30.0
	DefaultMaxStationary = 10 * time.Second
)

// Speeds and hold times for each maneuver.
const (
	RecoverySpeed = 0.4
	RecoveryHold  = time.Second

	SurroundedSpeed = 0.6
	SurroundedTurn  = time.Second
	SurroundedPause = 500 * time.Millisecond

	FrontTurnSpeed = 0.6
	FrontTurnHold  = 500 * time.Millisecond

	SideTurnSpeed = 0.5
	SideTurnHold  = 300 * time.Millisecond

	SettlePause = 100 * time.Millisecond

	FastSpeed   = 0.6
	MediumSpeed = 0.5
	SlowSpeed   = 0.4
)
