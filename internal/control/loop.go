// Package control runs the periodic obstacle-avoidance cycle: read the
// sensors, pick a maneuver, drive it to completion, repeat.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/obstacle-rover/internal/drive"
	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/sensor"
)

// Sensors produces one distance triple per cycle.
type Sensors interface {
	// ReadAll returns the clamped triple, or the fail-safe triple and an
	// error if any sensor failed.
	ReadAll() (sensor.Triple, error)

	// Close releases sensor resources.
	Close() error
}

// Config holds loop timing.
type Config struct {
	// CycleDelay is slept after each ordinary cycle.
	CycleDelay time.Duration
	// FailurePause is slept after a failed cycle.
	FailurePause time.Duration
}

// Defaults
const (
	DefaultCycleDelay   = 50 * time.Millisecond
	DefaultFailurePause = time.Second
)

// Option customizes a Loop.
type Option func(*Loop)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithSleep replaces time.Sleep. Every hold in a maneuver goes through it.
func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Loop) { l.sleep = sleep }
}

// WithObserver registers an observer for cycle reports.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// Loop is the single-threaded decision loop.
type Loop struct {
	cfg       Config
	sensors   Sensors
	drive     drive.Issuer
	decider   *logic.Decider
	now       func() time.Time
	sleep     func(time.Duration)
	observers []Observer

	lastMovement time.Time
	lastMode     logic.Mode
	cycle        uint64
}

// New creates a Loop. Zero Config fields take defaults.
func New(cfg Config, sensors Sensors, issuer drive.Issuer, decider *logic.Decider, opts ...Option) *Loop {
	if cfg.CycleDelay <= 0 {
		cfg.CycleDelay = DefaultCycleDelay
	}
	if cfg.FailurePause <= 0 {
		cfg.FailurePause = DefaultFailurePause
	}
	l := &Loop{
		cfg:     cfg,
		sensors: sensors,
		drive:   issuer,
		decider: decider,
		now:     time.Now,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes cycles until ctx is done. Cancellation is only observed
// between cycles; a maneuver in progress always runs to completion. On every
// return path the drive is cleaned up and the sensors are closed; the
// returned error reports only cleanup failures.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		err = l.shutdown()
	}()

	l.lastMovement = l.now()

	for {
		select {
		case <-ctx.Done():
			log.Printf("stop requested (%v), exiting autonomous mode", context.Cause(ctx))
			return nil
		default:
		}

		l.cycle++
		rep := l.runCycle()
		l.notify(rep)

		if rep.Err != nil {
			log.Printf("cycle %d error: %v. Stopping motors.", rep.Cycle, rep.Err)
			if err := l.drive.Stop(); err != nil {
				log.Printf("cycle %d: stop after error failed: %v", rep.Cycle, err)
			}
			l.sleep(l.cfg.FailurePause)
			continue
		}

		if !rep.SkipDelay {
			l.sleep(l.cfg.CycleDelay)
		}
	}
}

// runCycle performs one decision and its maneuver. Panics are converted into
// cycle errors so a single bad cycle never aborts the loop.
func (l *Loop) runCycle() (rep Report) {
	rep.Cycle = l.cycle
	rep.Time = l.now()

	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	var m logic.Maneuver
	if l.decider.Stalled(rep.Time.Sub(l.lastMovement)) {
		log.Printf("cycle %d: stationary too long, attempting recovery", rep.Cycle)
		m = l.decider.Recover()
	} else {
		t, err := l.sensors.ReadAll()
		rep.Measured = true
		rep.Distances = t
		if err != nil {
			rep.SensorErr = err
			log.Printf("cycle %d: sensor reading error: %v", rep.Cycle, err)
		}
		log.Printf("cycle %d: Left: %.2f cm, Front: %.2f cm, Right: %.2f cm", rep.Cycle, t.Left, t.Front, t.Right)

		m = l.decider.Decide(logic.Input{Distances: t})
		if m.Mode == logic.ModeSurrounded {
			log.Printf("cycle %d: completely surrounded, attempting random turn", rep.Cycle)
		}
	}

	rep.Mode = m.Mode
	rep.SkipDelay = m.SkipCycleDelay
	if m.Mode != l.lastMode {
		if l.lastMode != "" {
			log.Printf("cycle %d: mode %s -> %s", rep.Cycle, l.lastMode, m.Mode)
		}
		l.lastMode = m.Mode
	}

	if err := l.execute(m, &rep); err != nil {
		rep.Err = err
		return rep
	}

	l.lastMovement = l.now()
	return rep
}

func (l *Loop) execute(m logic.Maneuver, rep *Report) error {
	for _, s := range m.Steps {
		if err := drive.Execute(l.drive, s.Command); err != nil {
			return fmt.Errorf("issue %v: %w", s.Command, err)
		}
		rep.Commands = append(rep.Commands, s.Command)
		if s.Hold > 0 {
			l.sleep(s.Hold)
		}
	}
	return nil
}

func (l *Loop) notify(rep Report) {
	for _, o := range l.observers {
		o.ObserveCycle(rep)
	}
}

func (l *Loop) shutdown() error {
	var errs []error
	if err := l.drive.Cleanup(); err != nil {
		errs = append(errs, fmt.Errorf("drive cleanup: %w", err))
	}
	if err := l.sensors.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sensors: %w", err))
	}
	return errors.Join(errs...)
}

// LastMovement returns when a maneuver last completed.
func (l *Loop) LastMovement() time.Time {
	return l.lastMovement
}
