package web

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/sweeney/obstacle-rover/internal/logic"
	"github.com/sweeney/obstacle-rover/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"modeOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"modeClass": modeClass,
	"distance": func(v float64) string {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "unknown"
		}
		return fmt.Sprintf("%.2f cm", v)
	},
}).Parse(indexHTML))

func modeClass(mode string) string {
	switch logic.Mode(mode) {
	case logic.ModeClear:
		return "clear"
	case logic.ModeStalled, logic.ModeSurrounded:
		return "alarm"
	case "":
		return "unknown"
	default:
		return "blocked"
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Obstacle Rover</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.clear { color: green; font-weight: bold; }
.blocked { color: orange; font-weight: bold; }
.alarm { color: red; font-weight: bold; }
.unknown { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Obstacle Rover<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Drive</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{modeClass (printf "%s" .Mode)}}">{{modeOrUnknown (printf "%s" .Mode)}}</td></tr>
<tr><th>Commands</th><td id="commands">{{range $i, $c := .Commands}}{{if $i}}, {{end}}{{$c}}{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="alarm">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Distances</h2>
<table>
<tr><th>Left</th><td id="dist-left">{{distance .Distances.Left}}</td></tr>
<tr><th>Front</th><td id="dist-front">{{distance .Distances.Front}}</td></tr>
<tr><th>Right</th><td id="dist-right">{{distance .Distances.Right}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td id="cycles">{{.Counts.Cycles}}</td></tr>
<tr><th>Sensor failures</th><td>{{.Counts.SensorFailures}}</td></tr>
<tr><th>Cycle failures</th><td>{{.Counts.CycleFailures}}</td></tr>
{{range .ModeCounts}}<tr><th>{{.Mode}}</th><td>{{.Count}}</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Session</th><td>{{.SessionID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Safe distance</th><td>{{.Config.SafeDistance}} cm</td></tr>
<tr><th>Cycle delay</th><td>{{.Config.CycleDelayMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var modeEl = document.getElementById("mode");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function cm(v) {
    return v === null ? "unknown" : v.toFixed(2) + " cm";
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/live");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        modeEl.textContent = s.mode;
        modeEl.className = s.mode === "CLEAR" ? "clear" : s.mode === "UNKNOWN" ? "unknown" : (s.mode === "STALLED" || s.mode === "SURROUNDED") ? "alarm" : "blocked";
        document.getElementById("commands").textContent = s.commands.join(", ");
        document.getElementById("dist-left").textContent = cm(s.distances_cm.left);
        document.getElementById("dist-front").textContent = cm(s.distances_cm.front);
        document.getElementById("dist-right").textContent = cm(s.distances_cm.right);
        document.getElementById("cycles").textContent = s.counts.cycles;
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type modeCount struct {
	Mode  logic.Mode
	Count uint64
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	counts := make([]modeCount, len(logic.Modes))
	for i, m := range logic.Modes {
		counts[i] = modeCount{Mode: m, Count: snap.Counts.Modes[m]}
	}
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		ModeCounts []modeCount
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		ModeCounts: counts,
	}
	indexTmpl.Execute(w, data)
}
