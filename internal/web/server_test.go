package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/obstacle-rover/internal/control"
	"github.com/sweeney/obstacle-rover/internal/drive"
	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/sensor"
	"github.com/sweeney/obstacle-rover/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		SafeDistance: 30,
		CycleDelayMs: 50,
		HeartbeatMs:  900000,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":80",
	}
	tr := status.NewTracker(start, "test-session", cfg)
	srv := New(":0", tr)
	srv.liveInterval = 10 * time.Millisecond
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, srv, tr
}

func report(n uint64, mode logic.Mode, d sensor.Triple, cmds ...drive.Command) control.Report {
	return control.Report{
		Cycle:     n,
		Time:      time.Now(),
		Measured:  true,
		Distances: d,
		Mode:      mode,
		Commands:  cmds,
	}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.ObserveCycle(report(1, logic.ModeFrontBlocked, sensor.Triple{Left: 80, Front: 20, Right: 60}, drive.TurnLeftAt(0.6), drive.Halt()))
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Mode != "FRONT_BLOCKED" {
		t.Errorf("Mode: got %q, want FRONT_BLOCKED", sj.Status.Mode)
	}
	if sj.Status.Distances.Front == nil || *sj.Status.Distances.Front != 20 {
		t.Errorf("Front: got %v, want 20", sj.Status.Distances.Front)
	}
	if len(sj.Status.Commands) != 2 || sj.Status.Commands[0] != "LEFT(0.6)" {
		t.Errorf("Commands: got %v", sj.Status.Commands)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("MQTT.Connected: got false, want true")
	}
	if sj.Status.Session != "test-session" {
		t.Errorf("Session: got %q", sj.Status.Session)
	}
	if sj.Status.Config.HeartbeatMs != 900000 {
		t.Errorf("Config.HeartbeatMs: got %d", sj.Status.Config.HeartbeatMs)
	}
}

func TestJSONUnknownBeforeFirstCycle(t *testing.T) {
	ts, _, _ := newTestServer(t)

	_, body := get(t, ts.URL+"/index.json")
	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Mode != "UNKNOWN" {
		t.Errorf("Mode: got %q, want UNKNOWN", sj.Status.Mode)
	}
	if sj.Status.Ready {
		t.Error("Ready: got true, want false")
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.ObserveCycle(report(1, logic.ModeClear, sensor.Triple{Left: 120.5, Front: 300, Right: 99}, drive.ForwardAt(0.6)))

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	for _, want := range []string{"Obstacle Rover", "CLEAR", "120.50 cm", "FORWARD(0.6)", "test-session", "30 cm"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHTMLUnknownDistances(t *testing.T) {
	ts, _, _ := newTestServer(t)

	_, body := get(t, ts.URL+"/index.html")
	if !strings.Contains(body, `<td id="dist-front">unknown</td>`) {
		t.Error("expected unknown front distance before first cycle")
	}
	if !strings.Contains(body, "UNKNOWN") {
		t.Error("expected UNKNOWN mode before first cycle")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := get(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestModeClass(t *testing.T) {
	cases := map[string]string{
		"CLEAR":         "clear",
		"STALLED":       "alarm",
		"SURROUNDED":    "alarm",
		"FRONT_BLOCKED": "blocked",
		"LEFT_BLOCKED":  "blocked",
		"":              "unknown",
	}
	for mode, want := range cases {
		if got := modeClass(mode); got != want {
			t.Errorf("modeClass(%q): got %q, want %q", mode, got, want)
		}
	}
}

func dialLive(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) status.StatusInner {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read live message: %v", err)
	}
	var sj status.StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("decode live message: %v", err)
	}
	return sj.Status
}

func TestLiveSendsInitialSnapshot(t *testing.T) {
	ts, _, _ := newTestServer(t)
	conn := dialLive(t, ts)

	s := readStatus(t, conn)
	if s.Event != "LIVE" {
		t.Errorf("Event: got %q, want LIVE", s.Event)
	}
	if s.Mode != "UNKNOWN" {
		t.Errorf("Mode: got %q, want UNKNOWN", s.Mode)
	}
}

func TestLiveStreamsNewCycles(t *testing.T) {
	ts, _, tr := newTestServer(t)
	conn := dialLive(t, ts)
	readStatus(t, conn)

	tr.ObserveCycle(report(1, logic.ModeSurrounded, sensor.Triple{Left: 10, Front: 10, Right: 10}))

	s := readStatus(t, conn)
	if s.Mode != "SURROUNDED" {
		t.Errorf("Mode: got %q, want SURROUNDED", s.Mode)
	}
	if s.Counts.Cycles != 1 {
		t.Errorf("Cycles: got %d, want 1", s.Counts.Cycles)
	}
}

func TestLiveClosedOnShutdown(t *testing.T) {
	ts, srv, _ := newTestServer(t)
	conn := dialLive(t, ts)
	readStatus(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}

func TestLiveRejectsPlainHTTP(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, _ := get(t, ts.URL+"/live")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
