package dashboard

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/kilianp07/energyledger/core/ledger"
	"github.com/kilianp07/energyledger/pkg/export"
)

//go:embed templates/*.html
var templateFS embed.FS

type templates struct {
	login *template.Template
	index *template.Template
}

func loadTemplates() *templates {
	return &templates{
		login: template.Must(template.ParseFS(templateFS, "templates/login.html")),
		index: template.Must(template.ParseFS(templateFS, "templates/index.html")),
	}
}

type windowLink struct {
	Name   ledger.Window
	Label  string
	Active bool
}

type indexData struct {
	Title   string
	User    string
	Window  ledger.Window
	Windows []windowLink
	KPIs    [][2]string
	Columns []string
	Rows    [][]string
	Error   string
}

func (s *server) loginForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, http.StatusOK, "")
}

func (s *server) renderLogin(w http.ResponseWriter, status int, msg string) {
	s.render(w, s.tmpl.login, status, struct{ Title, Error string }{s.cfg.Title, msg})
}

func (s *server) index(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	data := indexData{Title: s.cfg.Title, User: sess.Identity.Name}
	if data.User == "" {
		data.User = sess.Identity.Subject
	}
	snap, status, err := s.snapshot(r)
	if err != nil {
		data.Error = err.Error()
		data.Windows = windowLinks("")
		s.render(w, s.tmpl.index, status, data)
		return
	}
	data.Window = snap.Window
	data.Windows = windowLinks(snap.Window)
	data.KPIs = export.KPILines(snap.Report())
	data.Columns = export.Columns
	data.Rows = export.Rows(snap.View)
	s.render(w, s.tmpl.index, http.StatusOK, data)
}

func (s *server) charts(w http.ResponseWriter, r *http.Request) {
	snap, status, err := s.snapshot(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	var buf bytes.Buffer
	if err := chartPage(snap).Render(&buf); err != nil {
		s.log.Errorf("render charts: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func windowLinks(active ledger.Window) []windowLink {
	out := make([]windowLink, len(ledger.Windows))
	for i, win := range ledger.Windows {
		out[i] = windowLink{Name: win, Label: win.Label(), Active: win == active}
	}
	return out
}

func (s *server) render(w http.ResponseWriter, t *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		s.log.Errorf("render %s: %v", t.Name(), err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
