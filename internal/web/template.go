package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/greenhouse-controller/internal/logic"
	"github.com/sweeney/greenhouse-controller/internal/status"
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
	"linkOrUnknown": func(s logic.LinkState) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"num": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"percent": func(pwm int) string {
		return fmt.Sprintf("%.0f%%", float64(pwm)*100/logic.MaxPWM)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Greenhouse Controller</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.online, .connected { color: green; font-weight: bold; }
.offline, .disconnected { color: red; }
.unknown { color: orange; }
</style>
</head>
<body>
<h1>Greenhouse Controller</h1>

<h2>Connectivity</h2>
<table>
<tr><th>Sensor link</th><td class="{{if eq (linkOrUnknown .Link) "ONLINE"}}online{{else if eq (linkOrUnknown .Link) "OFFLINE"}}offline{{else}}unknown{{end}}">{{linkOrUnknown .Link}}</td></tr>
<tr><th>Serial port</th><td>{{if .SerialPort}}{{.SerialPort}}{{else}}auto{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Sensors</h2>
{{if .LastRecord}}<table>
<tr><th></th><th>Controlled</th><th>Setpoint</th>{{if .LastRecord.Control}}<th>Control</th>{{end}}</tr>
<tr><th>Temperature (°C)</th><td>{{num .LastRecord.Controlled.Temperature}}</td><td>{{num .Config.Setpoints.Temperature}}</td>{{with .LastRecord.Control}}<td>{{num .Temperature}}</td>{{end}}</tr>
<tr><th>Humidity (%RH)</th><td>{{num .LastRecord.Controlled.Humidity}}</td><td>{{num .Config.Setpoints.Humidity}}</td>{{with .LastRecord.Control}}<td>{{num .Humidity}}</td>{{end}}</tr>
<tr><th>CO2 (ppm)</th><td>{{num .LastRecord.Controlled.CO2}}</td><td>{{num .Config.Setpoints.CO2}}</td>{{with .LastRecord.Control}}<td>{{num .CO2}}</td>{{end}}</tr>
<tr><th>Light (lux)</th><td>{{num .LastRecord.Controlled.Light}}</td><td>{{num .Config.Setpoints.Light}}</td>{{with .LastRecord.Control}}<td>{{num .Light}}</td>{{end}}</tr>
<tr><th>Soil moisture (%)</th><td>{{num .LastRecord.Controlled.Moisture}}</td><td>{{num .Config.Setpoints.Moisture}}</td>{{with .LastRecord.Control}}<td>{{num .Moisture}}</td>{{end}}</tr>
</table>
<p>Last cycle {{.LastCycle.Format "2006-01-02 15:04:05"}}</p>{{else}}<p>No readings yet.</p>{{end}}

<h2>Actuators</h2>
{{if .LastOutputs}}<table>
<tr><th>Humidifier</th><td>{{.LastOutputs.HumidifierPWM}}</td><td>{{percent .LastOutputs.HumidifierPWM}}</td></tr>
<tr><th>Fan</th><td>{{.LastOutputs.FanPWM}}</td><td>{{percent .LastOutputs.FanPWM}}</td></tr>
<tr><th>LED</th><td>{{.LastOutputs.LEDPWM}}</td><td>{{percent .LastOutputs.LEDPWM}}</td></tr>
<tr><th>Pump</th><td>{{.LastOutputs.PumpPWM}}</td><td>{{percent .LastOutputs.PumpPWM}}</td></tr>
</table>{{else}}<p>No outputs yet.</p>{{end}}

<h2>Counters</h2>
<table>
<tr><th>Cycles</th><td>{{.Counters.Cycles}}</td></tr>
<tr><th>Fallbacks</th><td>{{.Counters.Fallbacks}}</td></tr>
<tr><th>Parse errors</th><td>{{.Counters.ParseErrors}}</td></tr>
<tr><th>Invalid inputs</th><td>{{.Counters.InvalidInputs}}</td></tr>
<tr><th>Publish errors</th><td>{{.Counters.PublishErrors}}</td></tr>
<tr><th>Storage errors</th><td>{{.Counters.StorageErrors}}</td></tr>
<tr><th>Actuator errors</th><td>{{.Counters.ActuatorErrors}}</td></tr>
<tr><th>Compute p50 / p99</th><td>{{.Latency.P50}} / {{.Latency.P99}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Status interval</th><td>{{.Config.StatusIntervalMs}}ms</td></tr>
<tr><th>Actuators</th><td>{{if .Config.ActuatorsEnabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
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
