package internal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/obstacle-rover/internal/control"
	"github.com/sweeney/obstacle-rover/internal/gpio"
	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/mqtt"
	"github.com/sweeney/obstacle-rover/internal/sensor"
	"github.com/sweeney/obstacle-rover/internal/status"
)

// echoTrigger is a trigger line that answers every ping with an echo of the
// configured distance, the way an HC-SR04 in front of a wall would.
type echoTrigger struct {
	*gpio.FakeLine
	mu   sync.Mutex
	cm   float64
	now  time.Duration
	sink gpio.EdgeHandler
}

func newEchoTrigger(cm float64) *echoTrigger {
	e := &echoTrigger{FakeLine: gpio.NewFakeLine(), cm: cm}
	e.OnSet = func(v int) {
		if v != 0 {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.sink == nil {
			return
		}
		e.now += time.Millisecond
		width := time.Duration(e.cm * float64(58*time.Microsecond))
		e.sink.RisingEdgeAt(e.now)
		e.sink.FallingEdgeAt(e.now + width)
	}
	return e
}

func (e *echoTrigger) attach(h gpio.EdgeHandler) {
	e.mu.Lock()
	e.sink = h
	e.mu.Unlock()
}

type rover struct {
	leftTrig, rightTrig *echoTrigger
	front               *sensor.EdgeTimer
	motorLines          map[string]*gpio.FakeLine
	motors              *gpio.MotorDriver
	pub                 *mqtt.FakePublisher
	tracker             *status.Tracker

	// pins records the direction pins at every hold.
	pins []map[string]int
}

func newRover(t *testing.T, left, front, right float64) *rover {
	t.Helper()
	r := &rover{
		leftTrig:  newEchoTrigger(left),
		rightTrig: newEchoTrigger(right),
		front:     sensor.NewEdgeTimer(func() time.Duration { return 0 }),
		motorLines: map[string]*gpio.FakeLine{
			"lf": gpio.NewFakeLine(), "lb": gpio.NewFakeLine(), "le": gpio.NewFakeLine(),
			"rf": gpio.NewFakeLine(), "rb": gpio.NewFakeLine(), "re": gpio.NewFakeLine(),
		},
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(time.Now(), "integration", status.Config{SafeDistance: 30}),
	}
	r.setFront(front)

	r.motors = gpio.NewMotorDriver(gpio.MotorLines{
		LeftForward: r.motorLines["lf"], LeftBackward: r.motorLines["lb"], LeftEnable: r.motorLines["le"],
		RightForward: r.motorLines["rf"], RightBackward: r.motorLines["rb"], RightEnable: r.motorLines["re"],
	}, 1000)
	return r
}

func (r *rover) setFront(cm float64) {
	r.front.RisingEdgeAt(time.Second)
	r.front.FallingEdgeAt(time.Second + time.Duration(cm*float64(58*time.Microsecond)))
}

// run drives the rover for n cycles on a simulated clock.
func (r *rover) run(t *testing.T, n uint64, coin logic.Coin) {
	t.Helper()

	leftSensor := gpio.NewHCSR04(r.leftTrig, 50*time.Millisecond)
	r.leftTrig.attach(leftSensor)
	rightSensor := gpio.NewHCSR04(r.rightTrig, 50*time.Millisecond)
	r.rightTrig.attach(rightSensor)
	agg := sensor.NewAggregator(leftSensor, r.front, rightSensor)

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	sleep := func(d time.Duration) {
		snap := make(map[string]int, 4)
		for _, k := range []string{"lf", "lb", "rf", "rb"} {
			snap[k] = r.motorLines[k].Value()
		}
		r.pins = append(r.pins, snap)
		clockMu.Lock()
		clock = clock.Add(d)
		clockMu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := control.ObserverFunc(func(rep control.Report) {
		if rep.Cycle >= n {
			cancel()
		}
	})

	loop := control.New(control.Config{},
		agg, r.motors, logic.NewDecider(logic.Config{SafeDistance: 30}, coin),
		control.WithClock(now),
		control.WithSleep(sleep),
		control.WithObserver(r.tracker),
		control.WithObserver(mqtt.Observer(r.pub)),
		control.WithObserver(stop),
	)
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestIntegrationClearPath(t *testing.T) {
	r := newRover(t, 150, 200, 150)
	r.run(t, 3, func() bool { return true })

	if len(r.pub.Reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(r.pub.Reports))
	}
	for i, rep := range r.pub.Reports {
		if rep.Mode != logic.ModeClear {
			t.Errorf("report %d: mode %s, want CLEAR", i, rep.Mode)
		}
	}

	// Front reading went through the 58 us/cm conversion.
	d := r.pub.Reports[0].Distances
	if d.Front < 199.9 || d.Front > 200.1 {
		t.Errorf("front: got %v, want ~200", d.Front)
	}
	if d.Left < 149.9 || d.Left > 150.1 {
		t.Errorf("left: got %v, want ~150", d.Left)
	}

	// Cycle delay hold happens with both wheels forward.
	first := r.pins[0]
	if first["lf"] != 1 || first["rf"] != 1 || first["lb"] != 0 || first["rb"] != 0 {
		t.Errorf("expected forward on both wheels, got %v", first)
	}
}

func TestIntegrationFrontBlockedTurnsTowardOpenSide(t *testing.T) {
	r := newRover(t, 100, 20, 50)
	r.run(t, 1, func() bool { return true })

	if got := r.pub.Reports[0].Mode; got != logic.ModeFrontBlocked {
		t.Fatalf("mode: got %s, want FRONT_BLOCKED", got)
	}
	// First hold is the left turn: left wheel back, right wheel forward.
	turn := r.pins[0]
	if turn["lf"] != 0 || turn["lb"] != 1 || turn["rf"] != 1 || turn["rb"] != 0 {
		t.Errorf("expected spin left, got %v", turn)
	}
}

func TestIntegrationSensorFailureIsFailsafe(t *testing.T) {
	// Left trigger is never wired to an echo, so every ping times out.
	mute := newEchoTrigger(100)
	front := sensor.NewEdgeTimer(nil)
	front.RisingEdgeAt(0)
	front.FallingEdgeAt(100 * 58 * time.Microsecond)
	right := newEchoTrigger(100)
	rightSensor := gpio.NewHCSR04(right, 5*time.Millisecond)
	right.attach(rightSensor)

	agg := sensor.NewAggregator(gpio.NewHCSR04(mute, 5*time.Millisecond), front, rightSensor)
	defer agg.Close()

	got, err := agg.ReadAll()
	if !errors.Is(err, gpio.ErrEchoTimeout) {
		t.Fatalf("expected echo timeout, got %v", err)
	}
	if got != sensor.Failsafe() {
		t.Errorf("expected fail-safe triple, got %+v", got)
	}

	// The fail-safe triple reads as a clear path.
	m := logic.NewDecider(logic.Config{}, nil).Decide(logic.Input{Distances: got})
	if m.Mode != logic.ModeClear {
		t.Errorf("mode: got %s, want CLEAR", m.Mode)
	}
}

func TestIntegrationCleanupLeavesPinsLow(t *testing.T) {
	r := newRover(t, 150, 150, 150)
	r.run(t, 2, func() bool { return true })

	for name, l := range r.motorLines {
		if !l.Closed() {
			t.Errorf("%s: line not released", name)
		}
		if v := l.Value(); v != 0 {
			t.Errorf("%s: left at %d after cleanup", name, v)
		}
	}
	if !r.leftTrig.Closed() || !r.rightTrig.Closed() {
		t.Error("trigger lines not released")
	}
}

func TestIntegrationTelemetryAndStatus(t *testing.T) {
	r := newRover(t, 25, 200, 200)
	r.run(t, 2, func() bool { return true })

	if len(r.pub.Payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(r.pub.Payloads))
	}
	var p mqtt.Payload
	if err := json.Unmarshal(r.pub.Payloads[0], &p); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if p.Cycle.Mode != string(logic.ModeLeftBlocked) {
		t.Errorf("payload mode: got %s, want LEFT_BLOCKED", p.Cycle.Mode)
	}
	if len(p.Cycle.Commands) == 0 || p.Cycle.Commands[0] != "RIGHT(0.5)" {
		t.Errorf("payload commands: got %v", p.Cycle.Commands)
	}

	snap := r.tracker.Snapshot()
	if snap.Counts.Cycles != 2 {
		t.Errorf("tracker cycles: got %d, want 2", snap.Counts.Cycles)
	}
	if snap.Counts.Modes[logic.ModeLeftBlocked] != 2 {
		t.Errorf("tracker LEFT_BLOCKED: got %d, want 2", snap.Counts.Modes[logic.ModeLeftBlocked])
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(snap), &sj); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if sj.Status.Distances.Left == nil || *sj.Status.Distances.Left > 25.1 || *sj.Status.Distances.Left < 24.9 {
		t.Errorf("status left distance: got %v", sj.Status.Distances.Left)
	}
}
