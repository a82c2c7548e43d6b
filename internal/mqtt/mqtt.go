// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"log"
	"time"

	"github.com/sweeney/obstacle-rover/internal/control"
	"github.com/sweeney/obstacle-rover/internal/status"
)

// Topic is the MQTT topic for per-cycle telemetry.
const Topic = "robot/obstacle-rover/telemetry"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "robot/obstacle-rover/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishCycle sends one control cycle's telemetry to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishCycle(r control.Report) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the telemetry message payload structure.
type Payload struct {
	Cycle CyclePayload `json:"cycle"`
}

// CyclePayload contains one cycle's details.
type CyclePayload struct {
	Session   string               `json:"session"`
	Number    uint64               `json:"number"`
	Timestamp string               `json:"timestamp"`
	Measured  bool                 `json:"measured"`
	Distances status.DistancesJSON `json:"distances_cm"`
	Mode      string               `json:"mode"`
	Commands  []string             `json:"commands"`
	SensorErr string               `json:"sensor_error,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// FormatPayload creates the JSON payload for a cycle report.
func FormatPayload(session string, r control.Report) ([]byte, error) {
	cmds := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		cmds[i] = c.String()
	}

	p := CyclePayload{
		Session:   session,
		Number:    r.Cycle,
		Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
		Measured:  r.Measured,
		Distances: status.NewDistancesJSON(r.Distances),
		Mode:      string(r.Mode),
		Commands:  cmds,
	}
	if !r.Measured {
		p.Distances = status.DistancesJSON{}
	}
	if r.SensorErr != nil {
		p.SensorErr = r.SensorErr.Error()
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
	}
	return json.Marshal(Payload{Cycle: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Session   string `json:"session,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

type observer struct {
	p Publisher
}

// Observer adapts a Publisher to control.Observer. Publish failures are
// logged and never reach the control loop.
func Observer(p Publisher) control.Observer {
	return observer{p: p}
}

func (o observer) ObserveCycle(r control.Report) {
	if err := o.p.PublishCycle(r); err != nil {
		log.Printf("mqtt: publish cycle %d: %v", r.Cycle, err)
	}
}
