package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/solder-station/internal/engine"
	"github.com/sweeney/solder-station/internal/status"
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
	"temp": func(c int) string {
		if c == engine.ErrorTemp {
			return "error"
		}
		return fmt.Sprintf("%d °C", c)
	},
	"percent": func(f float64) string {
		return fmt.Sprintf("%.0f%%", f*100)
	},
	"history": func(h uint32) string {
		return fmt.Sprintf("%032b", h)
	},
	"stateClass": stateClass,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Solder Station</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.error { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Solder Station{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Controller</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass .State.Name}}">{{.State.Name}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Set temperature</th><td>{{temp .SetTemp}}</td></tr>
<tr><th>Tip temperature</th><td>{{temp .TipTemp}}</td></tr>
<tr><th>Tip</th><td>{{.Tip}}</td></tr>
<tr><th>Power</th><td>{{percent .Power}} ({{.PowerBar}}/{{.MaxOnPeriods}})</td></tr>
<tr><th>Power history</th><td>{{history .PowerHistory}}</td></tr>
<tr><th>Ambient</th><td>{{temp .Ambient}}</td></tr>
{{if .LastRelease}}<tr><th>Last button</th><td>{{.LastRelease}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Transitions</h2>
<table>
<tr><th>Tip change</th><td>{{.Counts.TipChange}}</td></tr>
<tr><th>OFF</th><td>{{.Counts.Off}}</td></tr>
<tr><th>ON</th><td>{{.Counts.On}}</td></tr>
<tr><th>Standby</th><td>{{.Counts.Standby}}</td></tr>
<tr><th>Error</th><td>{{.Counts.Error}}</td></tr>
</table>

<h2>Engine</h2>
<table>
<tr><th>Half-cycles</th><td>{{.Engine.HalfCycles}}</td></tr>
<tr><th>Heater half-cycles</th><td>{{.Engine.HeaterCycles}}</td></tr>
<tr><th>Bursts</th><td>{{.Engine.Bursts}}</td></tr>
<tr><th>Tip checks</th><td>{{.Engine.TipChecks}}</td></tr>
<tr><th>Dropped events</th><td>{{.Engine.Dropped}}</td></tr>
<tr><th>Line errors</th><td>{{.Engine.LineErrors}}</td></tr>
{{range .Faults}}<tr><th>Fault {{.Kind}}</th><td>{{.Count}}</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{if .Config.Version}}<tr><th>Version</th><td>{{.Config.Version}}</td></tr>{{end}}
<tr><th>Loop</th><td>{{.Config.LoopMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "workshop/solder-station/events";
  var dot = document.getElementById("live-dot");
  var stateEl = document.getElementById("state");

  function setState(state) {
    stateEl.textContent = state;
    stateEl.className = state === "ON" || state === "STANDBY" ? "on" : state === "ERROR" ? "error" : "off";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.station) {
        setState(msg.station.to);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

type faultRow struct {
	Kind  string
	Count uint64
}

func stateClass(name string) string {
	switch name {
	case "ON", "STANDBY":
		return "on"
	case "ERROR":
		return "error"
	case "OFF", "TIP_CHANGE", "INIT":
		return "off"
	default:
		return "unknown"
	}
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Faults []faultRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, f := range engine.Faults() {
		data.Faults = append(data.Faults, faultRow{Kind: f.String(), Count: snap.Engine.Faults[f]})
	}
	indexTmpl.Execute(w, data)
}
