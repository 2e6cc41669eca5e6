package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ranger-sensor/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"cm": func(v float64) string {
		return fmt.Sprintf("%.1f cm", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Ranger Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown, .noecho { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Ranger Sensor</h1>

<h2>Distance</h2>
<table>
<tr><th>Distance</th><td id="distance">{{if .HasReading}}{{if .Reading.NoEcho}}<span class="noecho">no echo</span>{{else}}{{cm .Reading.DistanceCm}}{{end}}{{else}}<span class="unknown">waiting</span>{{end}}</td></tr>
<tr><th>Echo</th><td id="pulse">{{if .HasReading}}{{.Reading.PulseUs}}µs{{end}}</td></tr>
<tr><th>Phase</th><td id="phase">{{.Phase}}</td></tr>
</table>

<h2>Button</h2>
<table>
<tr><th>Output</th><td id="output" class="{{if eq (stateOrUnknown (printf "%s" .Output)) "ON"}}on{{else if eq (stateOrUnknown (printf "%s" .Output)) "OFF"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Output)}}</td></tr>
<tr><th>Pressed</th><td>{{if .Pressed}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Toggles</th><td>{{.Counts.Toggles}}</td></tr>
<tr><th>Measurements</th><td>{{.Counts.Measurements}}</td></tr>
<tr><th>No echo</th><td>{{.Counts.NoEcho}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pins</th><td>button {{.Config.ButtonPin}}, output {{.Config.OutputPin}}, trigger {{.Config.TriggerPin}}, echo {{.Config.EchoPin}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Sampling</th><td>{{.Config.SamplingMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function(e) {
    try {
      var s = JSON.parse(e.data).status;
      document.getElementById("phase").textContent = s.phase;
      var out = document.getElementById("output");
      out.textContent = s.output;
      out.className = s.output === "ON" ? "on" : s.output === "OFF" ? "off" : "unknown";
      if (s.reading) {
        document.getElementById("distance").textContent =
          s.reading.no_echo ? "no echo" : s.reading.distance_cm.toFixed(1) + " cm";
        document.getElementById("pulse").textContent = s.reading.pulse_us + "µs";
      }
    } catch (err) {}
  };
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
