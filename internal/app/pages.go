package app

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/chatterbox-tts/desktop/internal/types"
	"github.com/chatterbox-tts/desktop/window"
)

//go:embed templates/*.html
var templateFS embed.FS

// PathLaunch starts the mode named by the "mode" query parameter.
const PathLaunch = "/action/launch"

type eventNames struct {
	SessionState string
	ServerOutput string
	OutputSaved  string
}

var events = eventNames{
	SessionState: EventSessionState,
	ServerOutput: EventServerOutput,
	OutputSaved:  EventOutputSaved,
}

type dashboardData struct {
	Binding  string
	Events   eventNames
	Modes    []types.ModeInfo
	Settings types.Settings
	Recent   []types.OutputClip
	Status   types.SessionStatus
}

type modePageData struct {
	Title    string
	Reason   string
	HomeURL  string
	RetryURL string
	Events   eventNames
}

// Pages serves the launcher's own pages and the action routes the
// overlay navigates to.
type Pages struct {
	bridge *Bridge
	tmpl   map[string]*template.Template
	mux    *http.ServeMux
	log    *slog.Logger
}

// NewPages parses the embedded templates.
func NewPages(b *Bridge) (*Pages, error) {
	p := &Pages{
		bridge: b,
		tmpl:   make(map[string]*template.Template),
		mux:    http.NewServeMux(),
		log:    slog.With("component", "pages"),
	}

	for _, name := range []string{"dashboard", "loading", "error", "quit"} {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		p.tmpl[name] = t
	}

	p.mux.HandleFunc("GET "+window.PathDashboard+"{$}", p.dashboard)
	p.mux.HandleFunc("GET "+window.PathLoading, p.loading)
	p.mux.HandleFunc("GET "+window.PathError, p.errorPage)
	p.mux.HandleFunc("GET "+PathLaunch, p.launch)
	p.mux.HandleFunc("GET "+window.PathHome, p.home)
	p.mux.HandleFunc("GET "+window.PathQuit, p.quit)
	return p, nil
}

func (p *Pages) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

func (p *Pages) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := p.tmpl[name].ExecuteTemplate(&buf, "base", data); err != nil {
		p.log.Error("render page", "page", name, "error", err)
		http.Error(w, "render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (p *Pages) dashboard(w http.ResponseWriter, r *http.Request) {
	p.render(w, "dashboard", dashboardData{
		Binding:  BindingName(""),
		Events:   events,
		Modes:    p.bridge.Modes(),
		Settings: p.bridge.GetSettings(),
		Recent:   p.bridge.RecentOutputs(),
		Status:   p.bridge.Status(),
	})
}

func (p *Pages) loading(w http.ResponseWriter, r *http.Request) {
	p.render(w, "loading", modePageData{
		Title:   modeTitle(r.URL.Query().Get("mode")),
		HomeURL: window.PathHome,
		Events:  events,
	})
}

func (p *Pages) errorPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := modePageData{
		Title:   modeTitle(q.Get("mode")),
		Reason:  q.Get("reason"),
		HomeURL: window.PathHome,
		Events:  events,
	}
	if m, ok := types.ParseMode(q.Get("mode")); ok {
		data.RetryURL = launchURL(m)
	}
	p.render(w, "error", data)
}

func (p *Pages) launch(w http.ResponseWriter, r *http.Request) {
	mode, ok := types.ParseMode(r.URL.Query().Get("mode"))
	if !ok {
		p.log.Warn("unknown mode, using default", "mode", r.URL.Query().Get("mode"), "default", types.DefaultMode)
		mode = types.DefaultMode
	}
	p.bridge.LaunchNow(mode)
	http.Redirect(w, r, window.PathLoading+"?"+url.Values{"mode": {string(mode)}}.Encode(), http.StatusSeeOther)
}

func (p *Pages) home(w http.ResponseWriter, r *http.Request) {
	p.bridge.HomeNow()
	http.Redirect(w, r, window.PathDashboard, http.StatusSeeOther)
}

func (p *Pages) quit(w http.ResponseWriter, r *http.Request) {
	p.bridge.QuitNow()
	p.render(w, "quit", nil)
}

func launchURL(m types.Mode) string {
	return PathLaunch + "?" + url.Values{"mode": {string(m)}}.Encode()
}

func modeTitle(mode string) string {
	for _, m := range types.Modes() {
		if string(m.ID) == mode {
			return m.Title
		}
	}
	return "Chatterbox"
}
