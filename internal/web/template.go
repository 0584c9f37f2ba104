package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/texecom-monitor/internal/logic"
	"github.com/sweeney/texecom-monitor/internal/status"
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
	"alarmClass": func(s logic.AlarmState) string {
		switch s {
		case logic.Disarmed:
			return "disarmed"
		case logic.Triggered:
			return "triggered"
		case logic.Entry, logic.Exit:
			return "pending"
		default:
			return "armed"
		}
	},
	"zoneState": func(z logic.ZoneState) string {
		switch {
		case z.Has(logic.ZoneTamper):
			return "tamper"
		case z.Has(logic.ZoneActive):
			return "active"
		default:
			return "secure"
		}
	},
	"has": func(z logic.ZoneState, bit logic.ZoneState) bool { return z.Has(bit) },
	"flag": func(f logic.AlarmFlags, bit logic.AlarmFlags) bool { return f.Has(bit) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Texecom Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.disarmed { color: #888; }
.armed { color: green; font-weight: bold; }
.pending { color: orange; font-weight: bold; }
.triggered { color: red; font-weight: bold; }
.secure { color: #888; }
.active { color: orange; }
.tamper { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Texecom Monitor</h1>

<h2>Alarm</h2>
<table>
<tr><th>State</th><td id="alarm-state" class="{{alarmClass .Panel.State}}">{{.Panel.State}}{{if .Panel.Pending}} (changing){{end}}</td></tr>
<tr><th>Ready</th><td>{{if flag .Panel.Flags .FlagReady}}yes{{else}}no{{end}}</td></tr>
<tr><th>Fault</th><td>{{if flag .Panel.Flags .FlagFault}}yes{{else}}no{{end}}</td></tr>
<tr><th>Arm failed</th><td>{{if flag .Panel.Flags .FlagArmFailed}}yes{{else}}no{{end}}</td></tr>
<tr><th>Panel text</th><td>{{.Panel.Hint}}</td></tr>
{{if not .LastAlarmChange.IsZero}}<tr><th>Last change</th><td>{{.LastAlarmChange.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Zones</h2>
<table>
{{range .Panel.Zones}}<tr><th>Zone {{printf "%03d" .ZoneID}}</th><td class="{{zoneState .State}}">{{zoneState .State}}{{if has .State $.ZoneFault}}, fault{{end}}{{if has .State $.ZoneAlarmed}}, alarmed{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Serial</th><td class="{{if .SerialErr}}disconnected{{else}}connected{{end}}">{{.Config.SerialPort}} @ {{.Config.BaudRate}}{{if .SerialErr}} ({{.SerialErr}}){{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counters</h2>
<table>
<tr><th>Frames</th><td>{{.Panel.Counts.Frames}}</td></tr>
<tr><th>Unrecognized</th><td>{{.Panel.Counts.Unrecognized}}</td></tr>
<tr><th>Overflows</th><td>{{.Panel.Counts.Overflows}}</td></tr>
<tr><th>Timeouts</th><td>{{.Panel.Counts.Timeouts}}</td></tr>
<tr><th>Zone events</th><td>{{.Panel.Counts.ZoneEvents}}</td></tr>
<tr><th>Alarm events</th><td>{{.Panel.Counts.AlarmEvents}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Sample</th><td>{{.Config.SampleMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.GPIOBackend}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type pageData struct {
	status.Snapshot
	Uptime time.Duration

	FlagReady     logic.AlarmFlags
	FlagFault     logic.AlarmFlags
	FlagArmFailed logic.AlarmFlags
	ZoneFault     logic.ZoneState
	ZoneAlarmed   logic.ZoneState
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	return indexTmpl.Execute(w, pageData{
		Snapshot:      snap,
		Uptime:        snap.Uptime(),
		FlagReady:     logic.FlagReady,
		FlagFault:     logic.FlagFault,
		FlagArmFailed: logic.FlagArmFailed,
		ZoneFault:     logic.ZoneFault,
		ZoneAlarmed:   logic.ZoneAlarmed,
	})
}
