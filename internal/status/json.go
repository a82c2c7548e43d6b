package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/sensor"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Session       string        `json:"session"`
	Ready         bool          `json:"ready"`
	Mode          string        `json:"mode"`
	Distances     DistancesJSON `json:"distances_cm"`
	Commands      []string      `json:"commands"`
	LastError     string        `json:"last_error,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	LastCycle     string        `json:"last_cycle,omitempty"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"counts"`
	Config        ConfigJSON    `json:"config"`
}

// DistancesJSON holds one triple. Unknown (infinite) distances encode as null.
type DistancesJSON struct {
	Left  *float64 `json:"left"`
	Front *float64 `json:"front"`
	Right *float64 `json:"right"`
}

// NewDistancesJSON converts a triple for encoding.
func NewDistancesJSON(t sensor.Triple) DistancesJSON {
	return DistancesJSON{Left: cm(t.Left), Front: cm(t.Front), Right: cm(t.Right)}
}

func cm(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of cycle counts.
type CountsJSON struct {
	Cycles         uint64            `json:"cycles"`
	SensorFailures uint64            `json:"sensor_failures"`
	CycleFailures  uint64            `json:"cycle_failures"`
	Modes          map[string]uint64 `json:"modes"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SafeDistance float64 `json:"safe_distance_cm"`
	CycleDelayMs int64   `json:"cycle_delay_ms"`
	HeartbeatMs  int64   `json:"heartbeat_ms"`
	Broker       string  `json:"broker"`
	HTTPAddr     string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	modes := make(map[string]uint64, len(logic.Modes))
	for _, m := range logic.Modes {
		modes[string(m)] = snap.Counts.Modes[m]
	}

	commands := snap.Commands
	if commands == nil {
		commands = []string{}
	}

	inner := StatusInner{
		Session:       snap.SessionID,
		Ready:         snap.Ready(),
		Mode:          mode,
		Distances:     NewDistancesJSON(snap.Distances),
		Commands:      commands,
		LastError:     snap.LastError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:         snap.Counts.Cycles,
			SensorFailures: snap.Counts.SensorFailures,
			CycleFailures:  snap.Counts.CycleFailures,
			Modes:          modes,
		},
		Config: ConfigJSON{
			SafeDistance: snap.Config.SafeDistance,
			CycleDelayMs: snap.Config.CycleDelayMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if !snap.LastCycle.IsZero() {
		inner.LastCycle = snap.LastCycle.UTC().Format(time.RFC3339Nano)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
