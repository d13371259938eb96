// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wintriage/wintriage/pkg/config"
	"github.com/wintriage/wintriage/pkg/log"
	"github.com/wintriage/wintriage/pkg/report"
	"github.com/wintriage/wintriage/pkg/stat"
	"github.com/wintriage/wintriage/pkg/triage"
	"github.com/wintriage/wintriage/pkg/triagecfg"
)

type statusServer struct {
	cfg    *triagecfg.Config
	driver *triage.Driver
}

// serveHTTP runs the status page until ctx is cancelled.
func serveHTTP(ctx context.Context, cfg *triagecfg.Config, driver *triage.Driver) error {
	srv := &statusServer{cfg: cfg, driver: driver}
	mux := http.NewServeMux()
	handle := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, handlers.CompressHandler(handler))
	}
	handle("/", srv.httpSummary)
	handle("/config", srv.httpConfig)
	handle("/stats", srv.httpStats)
	handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}).ServeHTTP)
	// Browsers like to request this, without special handler this goes to / handler.
	handle("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {})

	server := &http.Server{Addr: cfg.HTTP, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()
	log.Logf(0, "serving http on http://%v", cfg.HTTP)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve http on %v: %w", cfg.HTTP, err)
	}
	return nil
}

func (srv *statusServer) httpSummary(w http.ResponseWriter, r *http.Request) {
	data := &UISummaryData{
		Name:    srv.cfg.TargetImage(),
		Pending: len(srv.driver.Pending()),
		Log:     log.CachedLogOutput(),
	}
	for _, s := range stat.Collect(stat.Simple) {
		data.Stats = append(data.Stats, UIStat{
			Name:  s.Name,
			Value: s.Value,
			Hint:  s.Desc,
			Link:  s.Link,
		})
	}
	data.Groups = srv.collectGroups()
	executeTemplate(w, summaryTemplate, data)
}

func (srv *statusServer) httpConfig(w http.ResponseWriter, r *http.Request) {
	data, err := config.SaveData(srv.cfg)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode config: %v", err),
			http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

func (srv *statusServer) httpStats(w http.ResponseWriter, r *http.Request) {
	data := &UIStatsData{Name: srv.cfg.TargetImage()}
	for _, s := range stat.Collect(stat.All) {
		data.Stats = append(data.Stats, UIStat{
			Name:  s.Name,
			Value: s.Value,
			Hint:  s.Desc,
			Link:  s.Link,
		})
	}
	executeTemplate(w, statsTemplate, data)
}

// collectGroups reads the current state of every known signature group
// off the output tree.
func (srv *statusServer) collectGroups() []UIGroup {
	var groups []UIGroup
	for sig, dir := range srv.driver.Store().Groups() {
		group := UIGroup{Signature: sig}
		if rel, err := filepath.Rel(srv.cfg.OutputDir, dir); err == nil {
			if class := filepath.Dir(rel); class != "." {
				group.Class = filepath.ToSlash(class)
			}
		}
		if entries, err := os.ReadDir(dir); err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && report.IsReportFile(entry.Name()) {
					group.Crashes++
				}
			}
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Signature < groups[j].Signature
	})
	return groups
}

func executeTemplate(w http.ResponseWriter, templ *template.Template, data interface{}) {
	buf := new(bytes.Buffer)
	if err := templ.Execute(buf, data); err != nil {
		log.Logf(0, "failed to execute template: %v", err)
		http.Error(w, fmt.Sprintf("failed to execute template: %v", err),
			http.StatusInternalServerError)
		return
	}
	w.Write(buf.Bytes())
}

type UISummaryData struct {
	Name    string
	Stats   []UIStat
	Groups  []UIGroup
	Pending int
	Log     string
}

type UIStatsData struct {
	Name  string
	Stats []UIStat
}

type UIStat struct {
	Name  string
	Value string
	Hint  string
	Link  string
}

type UIGroup struct {
	Signature string
	Class     string
	Crashes   int
}

var pageHead = template.HTML(`
<style type="text/css">
	body { font-family: monospace; }
	table.list_table { border-collapse: collapse; margin: 1em 0; }
	table.list_table td, table.list_table th {
		border: 1px solid #ddd; padding: 2px 8px; text-align: left;
	}
	table.list_table caption { font-weight: bold; text-align: left; }
	td.stat_name { color: #555; }
	textarea { width: 100%; }
</style>
`)

func createPage(text string) *template.Template {
	templ := template.Must(template.New("").Parse(text))
	return template.Must(templ.New("head").Parse(string(pageHead)))
}

var summaryTemplate = createPage(`
<!doctype html>
<html>
<head>
	<title>{{.Name}} triage</title>
	{{template "head"}}
</head>
<body>
<b>{{.Name}} triage</b>
<a href='/config'>[config]</a>
<a href='/stats'>[stats]</a>
<a href='/metrics'>[metrics]</a>
<br>

<table class="list_table">
	<caption>Stats ({{.Pending}} pending)</caption>
	{{range $s := $.Stats}}
	<tr>
		<td class="stat_name" title="{{$s.Hint}}">{{$s.Name}}</td>
		<td class="stat_value">
			{{if $s.Link}}
				<a href="{{$s.Link}}">{{$s.Value}}</a>
			{{else}}
				{{$s.Value}}
			{{end}}
		</td>
	</tr>
	{{end}}
</table>

<table class="list_table">
	<caption>Crash groups:</caption>
	<tr>
		<th>Signature</th>
		<th>Classification</th>
		<th>Crashes</th>
	</tr>
	{{range $g := $.Groups}}
	<tr>
		<td class="title">{{$g.Signature}}</td>
		<td>{{$g.Class}}</td>
		<td class="stat">{{$g.Crashes}}</td>
	</tr>
	{{end}}
</table>

<b>Log:</b>
<br>
<textarea id="log_textarea" readonly rows="20" wrap=off>
{{.Log}}
</textarea>
<script>
	var textarea = document.getElementById("log_textarea");
	textarea.scrollTop = textarea.scrollHeight;
</script>
</body></html>
`)

var statsTemplate = createPage(`
<!doctype html>
<html>
<head>
	<title>{{.Name}} triage stats</title>
	{{template "head"}}
</head>
<body>
<b>{{.Name}} triage stats</b>
<br>

<table class="list_table">
	{{range $s := $.Stats}}
	<tr>
		<td class="stat_name" title="{{$s.Hint}}">{{$s.Name}}</td>
		<td class="stat_value">{{$s.Value}}</td>
	</tr>
	{{end}}
</table>
</body></html>
`)
