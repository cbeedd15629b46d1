package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/propbox/internal/status"
)

// page is what the dashboard template renders.
type page struct {
	status.Snapshot
	Uptime string
}

var pageTmpl = template.Must(template.New("page").Parse(pageHTML))

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return pageTmpl.Execute(w, page{Snapshot: snap, Uptime: formatUptime(snap.Uptime())})
}

// formatUptime renders d as "1d 2h 3m 4s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	units := []struct {
		suffix string
		size   int64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}}

	out := ""
	for _, u := range units {
		if n := secs / u.size; n > 0 || out != "" {
			out += fmt.Sprintf("%d%s ", n, u.suffix)
			secs %= u.size
		}
	}
	return out + fmt.Sprintf("%ds", secs)
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>propbox</title>
<style>
:root { --ink: #e8e6e3; --dim: #8a8680; --bg: #1b1a19; --line: #33312e; }
body { background: var(--bg); color: var(--ink); font: 14px/1.5 ui-monospace, monospace; max-width: 720px; margin: 1.5em auto; padding: 0 1em; }
header { display: flex; align-items: center; gap: .6em; }
header h1 { font-size: 1.3em; margin: 0; }
section { margin-top: 1.5em; }
section h2 { font-size: 1em; color: var(--dim); text-transform: uppercase; letter-spacing: .08em; }
table { width: 100%; border-collapse: collapse; }
th, td { text-align: left; padding: 3px 6px; border-bottom: 1px solid var(--line); }
td.desc { color: var(--dim); }
.up { color: #7fbf6a; }
.down { color: #d9604c; }
#link { width: 9px; height: 9px; border-radius: 50%; background: #c9a13b; }
#link.up { background: #7fbf6a; }
#link.down { background: #d9604c; }
nav a { color: var(--dim); margin-right: 1em; }
</style>
</head>
<body>
<header><h1>propbox</h1><span id="link" title="connecting"></span></header>

<section>
<h2>Attributes</h2>
<table>
<thead><tr><th>name</th><th>value</th><th>description</th></tr></thead>
<tbody id="attributes">
{{- range .Attributes}}
<tr><td>{{.Name}}</td><td>{{.Value}}</td><td class="desc">{{.Desc}}</td></tr>
{{- end}}
</tbody>
</table>
</section>

<section>
<h2>Device</h2>
<table>
<tr><td>game</td><td>{{.Config.Game}}</td></tr>
<tr><td>mqtt</td><td class="{{if .MQTTConnected}}up{{else}}down{{end}}">{{with .Config.Broker}}{{.}}{{else}}disabled{{end}}</td></tr>
<tr><td>uptime</td><td>{{.Uptime}}</td></tr>
<tr><td>started</td><td>{{.StartTime.UTC.Format "2006-01-02 15:04:05"}} UTC</td></tr>
<tr><td>loop</td><td>{{.Config.FrequencyHz}} Hz, debounce {{.Config.DebounceMs}} ms</td></tr>
<tr><td>heartbeat</td><td>{{if .Config.HeartbeatMs}}{{.Config.HeartbeatMs}} ms{{else}}off{{end}}</td></tr>
{{- with .Config.SessionID}}
<tr><td>session</td><td>{{.}}</td></tr>
{{- end}}
</table>
</section>

<nav><a href="/getAttributes">attributes</a><a href="/index.json">status</a><a href="/metrics">metrics</a></nav>

<script>
const link = document.getElementById("link");
const rows = document.getElementById("attributes");

function row(a) {
  const tr = document.createElement("tr");
  for (const [text, cls] of [[a.name], [a.value], [a.desc, "desc"]]) {
    const td = document.createElement("td");
    td.textContent = text;
    if (cls) td.className = cls;
    tr.appendChild(td);
  }
  return tr;
}

function connect() {
  const scheme = location.protocol === "https:" ? "wss" : "ws";
  const ws = new WebSocket(scheme + "://" + location.host + "/ws");
  ws.onopen = () => { link.className = "up"; link.title = "live"; };
  ws.onmessage = (ev) => {
    let attrs;
    try { attrs = JSON.parse(ev.data); } catch (e) { return; }
    rows.replaceChildren(...attrs.map(row));
  };
  ws.onclose = () => {
    link.className = "down";
    link.title = "offline";
    setTimeout(connect, 3000);
  };
}
connect();
</script>
</body>
</html>
`
