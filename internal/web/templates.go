package web

import (
	"html/template"

	"clusterdash/internal/view"
)

var funcs = template.FuncMap{
	"idle":         func() string { return view.IdlePlaceholder },
	"noGPUs":       func() string { return view.NoGPUMessage },
	"emptyDetails": func() string { return view.EmptyDetailsMessage },
}

const fragmentsHTML = `
{{- define "error" -}}
<div class="error-block">
  <div class="text-danger"><strong>Failed to load data</strong></div>
  <div class="muted">{{.Error}}</div>
  <button type="button" class="btn-retry" onclick="retryRefresh()">Retry</button>
</div>
{{- end -}}

{{- define "summary" -}}
{{- if .Err -}}
{{template "error" .Err}}
{{- else if .Loading -}}
<p class="muted">Loading...</p>
{{- else if .Cards.Empty -}}
<p class="muted">{{.Cards.EmptyMessage}}</p>
{{- else -}}
{{- range .Cards.Cards}}
<div class="server-card{{if .Selected}} selected{{end}}" data-host="{{.Hostname}}" onclick="selectServer(this.dataset.host)">
  <div class="card-head">
    <span class="hostname">{{.Hostname}}</span>
    <span class="badge text-{{.StatusVariant}}">{{.StatusLabel}} · {{.LastSeen}}</span>
  </div>
  <div class="card-row">CPU {{.CPUPercent}} <span class="muted">({{.NumCPUs}} cores)</span></div>
  <div class="card-row">
    {{- if .GPUError}}
    <span class="badge text-danger" title="{{.GPUError}}">{{.GPUBadge}}</span>
    {{- else}}
    <span class="badge avail-{{.Availability}}">{{.GPUBadge}}</span>
    {{- end}}
  </div>
  <div class="card-row muted">util {{.AvgUtil}} · mem {{.AvgMemory}}</div>
</div>
{{- end}}
{{- end -}}
{{- end -}}

{{- define "details" -}}
{{- if .Loading -}}
<p class="muted">Loading...</p>
{{- else if not .Panels -}}
<p class="muted">{{emptyDetails}}</p>
{{- else -}}
{{- range .Panels}}
<section class="server-panel{{if .Highlighted}} highlight{{end}}" id="{{.AnchorID}}">
  <h3>{{.Hostname}} <span class="badge text-{{.StatusVariant}}">{{.StatusLabel}}</span></h3>
  {{- if .GPUError}}
  <div class="text-danger">{{.GPUError}}</div>
  {{- end}}
  {{- if .NoGPUs}}
  <p class="muted">{{noGPUs}}</p>
  {{- else}}
  <div class="gpu-grid">
    {{- range .GPUs}}
    <div class="gpu-card">
      <div class="gpu-title">GPU {{.Index}} · {{.Name}}</div>
      <div class="bar-label">Memory <span>{{.Memory.Label}}</span></div>
      <div class="bar"><div class="bar-fill level-{{.Memory.Level}}" style="width: {{printf "%.1f" .Memory.Width}}%"></div></div>
      <div class="bar-label">Util <span>{{.Util.Label}}</span></div>
      <div class="bar"><div class="bar-fill level-{{.Util.Level}}" style="width: {{printf "%.1f" .Util.Width}}%"></div></div>
      <div class="gpu-users">
        {{- range .Users}}
        <div class="gpu-user"><span class="user">{{.Username}}</span> <span class="muted">{{.Detail}}</span></div>
        {{- else}}
        <div class="muted">{{idle}}</div>
        {{- end}}
      </div>
    </div>
    {{- end}}
  </div>
  {{- end}}
</section>
{{- end}}
{{- end -}}
{{- end -}}
`

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>GPU cluster dashboard</title>
<style>
  body { font-family: 'IBM Plex Mono', monospace; background: #1f1d1a; color: #ede9e3; margin: 0; padding: 16px 24px; }
  header { display: flex; gap: 16px; align-items: baseline; flex-wrap: wrap; }
  a { color: #78b5a5; }
  .muted { color: #b5afa6; }
  .text-success { color: #6a9e6b; }
  .text-secondary { color: #8a847b; }
  .text-danger { color: #c45c5c; }
  .badge { border: 1px solid currentColor; border-radius: 4px; padding: 0 6px; font-size: 0.85em; }
  .avail-all-free { color: #6a9e6b; }
  .avail-some-free { color: #c49a3a; }
  .avail-none-free { color: #c45c5c; }
  #summary-cards { display: flex; flex-wrap: wrap; gap: 12px; margin: 16px 0; }
  .server-card { border: 1px solid #3a3631; border-radius: 6px; padding: 10px 14px; min-width: 220px; cursor: pointer; }
  .server-card.selected { border-color: #5b9a8b; }
  .card-head { display: flex; justify-content: space-between; gap: 8px; }
  .server-panel { border: 1px solid #3a3631; border-radius: 6px; padding: 8px 16px; margin-bottom: 12px; }
  .server-panel.highlight { border-color: #5b9a8b; box-shadow: 0 0 0 1px #5b9a8b; }
  .gpu-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(260px, 1fr)); gap: 10px; }
  .gpu-card { background: #282520; border-radius: 6px; padding: 8px 12px; }
  .bar { background: #3a3631; height: 8px; border-radius: 4px; overflow: hidden; margin: 2px 0 6px; }
  .bar-fill { height: 100%; }
  .level-free { background: #6a9e6b; }
  .level-partial { background: #c49a3a; }
  .level-busy { background: #c45c5c; }
  .fade { transition: opacity 150ms ease; }
  .fading { opacity: 0; }
  #live-indicator.live { color: #6a9e6b; }
  #live-indicator.stale { color: #c49a3a; }
  #live-indicator.error { color: #c45c5c; }
</style>
</head>
<body>
<header>
  <h2>GPU cluster</h2>
  <span id="cluster-summary">{{.Cluster}}</span>
  <span id="live-indicator" class="{{.Indicator}}">● {{.Indicator}}</span>
  <span id="last-update" class="muted">{{.Updated}}</span>
  <span class="muted">next refresh in <span id="countdown">{{.Interval}}</span>s</span>
  <a href="/history">history</a>
</header>
<div id="summary-cards" class="fade">{{template "summary" .}}</div>
<div id="gpu-details" class="fade">{{template "details" .}}</div>
<script>
  const interval = {{.Interval}};
  let remaining = interval;
  let selected = "";
  let lastMessage = Date.now();

  function swap(id, html) {
    const el = document.getElementById(id);
    el.classList.add("fading");
    setTimeout(() => {
      el.innerHTML = html;
      el.classList.remove("fading");
      applySelection(false);
    }, 150);
  }

  function setIndicator(state) {
    const el = document.getElementById("live-indicator");
    el.className = state;
    el.textContent = "● " + state;
  }

  function applySelection(scroll) {
    document.querySelectorAll(".server-card").forEach(c => {
      c.classList.toggle("selected", c.dataset.host === selected);
    });
    document.querySelectorAll(".server-panel").forEach(p => {
      p.classList.toggle("highlight", p.id === "server-" + selected);
    });
    if (scroll && selected) {
      const panel = document.getElementById("server-" + selected);
      if (panel) panel.scrollIntoView({behavior: "smooth", block: "start"});
    }
  }

  function selectServer(host) {
    selected = selected === host ? "" : host;
    applySelection(true);
  }

  function retryRefresh() {
    fetch("/refresh", {method: "POST"});
  }

  document.addEventListener("keydown", e => {
    if (e.key === "Escape") { selected = ""; applySelection(false); }
  });

  setInterval(() => {
    remaining = remaining <= 1 ? interval : remaining - 1;
    document.getElementById("countdown").textContent = remaining;
    if (Date.now() - lastMessage > 2 * interval * 1000) setIndicator("stale");
  }, 1000);

  function connect() {
    const proto = location.protocol === "https:" ? "wss://" : "ws://";
    const sock = new WebSocket(proto + location.host + "/ws");
    sock.onmessage = ev => {
      const msg = JSON.parse(ev.data);
      lastMessage = Date.now();
      remaining = interval;
      swap("summary-cards", msg.summary);
      swap("gpu-details", msg.details);
      document.getElementById("cluster-summary").innerHTML = msg.cluster;
      if (msg.updated) document.getElementById("last-update").textContent = msg.updated;
      setIndicator(msg.indicator);
    };
    sock.onclose = () => setTimeout(connect, 2000);
  }
  connect();
</script>
</body>
</html>
`

var (
	fragmentsTmpl = template.Must(template.New("fragments").Funcs(funcs).Parse(fragmentsHTML))
	pageTmpl      = template.Must(template.Must(fragmentsTmpl.Clone()).New("page").Parse(pageHTML))
)
