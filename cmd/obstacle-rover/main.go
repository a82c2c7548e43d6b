// Command obstacle-rover drives a two-wheeled robot around obstacles using
// three rangefinders, publishing cycle telemetry to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sweeney/obstacle-rover/internal/config"
	"github.com/sweeney/obstacle-rover/internal/control"
	"github.com/sweeney/obstacle-rover/internal/drive"
	"github.com/sweeney/obstacle-rover/internal/gpio"
	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/mqtt"
	"github.com/sweeney/obstacle-rover/internal/sensor"
	"github.com/sweeney/obstacle-rover/internal/status"
	"github.com/sweeney/obstacle-rover/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults are used when empty)")
	printDistances := flag.Bool("print-distances", false, "Read all three sensors once, print the distances and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	logFile := setupLogging(cfg.Log)
	if logFile != nil {
		defer logFile.Close()
	}

	if err := run(cfg, *printDistances); err != nil {
		log.Printf("fatal: %v", err)
		if logFile != nil {
			logFile.Close()
		}
		os.Exit(1)
	}
}

// setupLogging sends the standard logger to stdout and, when a file is
// configured, tees it to a rotating log.
func setupLogging(lc config.LogConfig) io.Closer {
	log.SetOutput(os.Stdout)
	if lc.File == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator
}

// hardware is everything acquired from the GPIO chip.
type hardware struct {
	chip    *gpio.Chip
	sensors *sensor.Aggregator
	motors  *gpio.MotorDriver
}

// openHardware requests every line. On failure, lines already requested are
// released before returning.
func openHardware(cfg *config.Config) (_ *hardware, err error) {
	chip, err := gpio.Open(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i].Close()
			}
			chip.Close()
		}
	}()

	left, err := chip.NewHCSR04(cfg.Pins.LeftTrigger, cfg.Pins.LeftEcho, gpio.EchoTimeout)
	if err != nil {
		return nil, fmt.Errorf("init left sensor: %w", err)
	}
	closers = append(closers, left)

	right, err := chip.NewHCSR04(cfg.Pins.RightTrigger, cfg.Pins.RightEcho, gpio.EchoTimeout)
	if err != nil {
		return nil, fmt.Errorf("init right sensor: %w", err)
	}
	closers = append(closers, right)

	front := sensor.NewEdgeTimer(sensor.MonotonicClock)
	line, err := chip.WatchEdges(cfg.Pins.FrontPW, front)
	if err != nil {
		return nil, fmt.Errorf("init front sensor: %w", err)
	}
	front.Attach(line)
	closers = append(closers, front)

	motors, err := chip.NewMotorDriver(cfg.Pins.LeftMotor.GPIO(), cfg.Pins.RightMotor.GPIO(), cfg.PWMFrequency)
	if err != nil {
		return nil, fmt.Errorf("init motors: %w", err)
	}

	return &hardware{
		chip:    chip,
		sensors: sensor.NewAggregator(left, front, right),
		motors:  motors,
	}, nil
}

func run(cfg *config.Config, printDistances bool) error {
	hw, err := openHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.chip.Close()

	// Print distances mode
	if printDistances {
		defer hw.motors.Cleanup()
		defer hw.sensors.Close()
		return printOnce(os.Stdout, hw.sensors)
	}

	session := uuid.NewString()
	tracker := status.NewTracker(time.Now(), session, status.Config{
		SafeDistance: cfg.SafeDistance,
		CycleDelayMs: control.DefaultCycleDelay.Milliseconds(),
		HeartbeatMs:  cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
	})

	var publisher mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		pub := mqtt.NewRealPublisher(cfg.MQTT.Broker, session, tracker.SetMQTTConnected)
		defer pub.Close()
		publisher = pub
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: session=%s safe_distance=%vcm broker=%q heartbeat=%v",
		session, cfg.SafeDistance, cfg.MQTT.Broker, cfg.MQTT.Heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	d := daemon{
		sensors:   hw.sensors,
		drive:     hw.motors,
		decider:   logic.NewDecider(logic.Config{SafeDistance: cfg.SafeDistance}, logic.RandomCoin()),
		publisher: publisher,
		tracker:   tracker,
		heartbeat: cfg.MQTT.Heartbeat,
		now:       time.Now,
	}
	return d.run(context.Background(), sigCh)
}

// printOnce reads the triple a single time.
func printOnce(w io.Writer, s control.Sensors) error {
	t, err := s.ReadAll()
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	fmt.Fprintf(w, "Left: %.2f cm, Front: %.2f cm, Right: %.2f cm\n", t.Left, t.Front, t.Right)
	return nil
}

// daemon ties the control loop to lifecycle events. Every field except
// publisher is required.
type daemon struct {
	sensors   control.Sensors
	drive     drive.Issuer
	decider   *logic.Decider
	publisher mqtt.Publisher
	tracker   *status.Tracker
	heartbeat time.Duration
	now       func() time.Time
	loopOpts  []control.Option
}

// signalCause records which signal ended the run.
type signalCause struct {
	sig os.Signal
}

func (c signalCause) Error() string { return "received " + c.sig.String() }

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// run publishes STARTUP, drives until a signal arrives (or ctx ends), then
// cleans up and publishes SHUTDOWN.
func (d *daemon) run(ctx context.Context, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func() {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			cancel(signalCause{sig: s})
		case <-ctx.Done():
		}
	}()

	d.publishSystem("STARTUP", "")

	var wg sync.WaitGroup
	if d.publisher != nil && d.heartbeat > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.heartbeatLoop(ctx)
		}()
	}

	opts := append([]control.Option{control.WithObserver(d.tracker)}, d.loopOpts...)
	if d.publisher != nil {
		opts = append(opts, control.WithObserver(mqtt.Observer(d.publisher)))
	}
	loop := control.New(control.Config{}, d.sensors, d.drive, d.decider, opts...)

	err := loop.Run(ctx)
	if err != nil {
		log.Printf("cleanup: %v", err)
	}
	// Run only returns once ctx is done, so the heartbeat is already stopping.
	wg.Wait()

	reason := "UNKNOWN"
	var sc signalCause
	if errors.As(context.Cause(ctx), &sc) {
		reason = signalName(sc.sig)
	}
	d.publishSystem("SHUTDOWN", reason)
	log.Printf("stopped after %d cycles", d.tracker.Snapshot().Counts.Cycles)

	// A signal-driven stop is a clean exit even if cleanup reported errors;
	// they have been logged above.
	return nil
}

func (d *daemon) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(d.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.publishSystem("HEARTBEAT", "")
		}
	}
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
func (d *daemon) publishSystem(event, reason string) {
	if d.publisher == nil {
		return
	}
	if cs, ok := d.publisher.(mqtt.ConnectionStatus); ok {
		d.tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}
