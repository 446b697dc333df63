// Package dashboard serves the login page, the charts page and the JSON and
// download endpoints of a user's energy ledger.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kilianp07/energyledger/app"
	"github.com/kilianp07/energyledger/auth"
	"github.com/kilianp07/energyledger/config"
	"github.com/kilianp07/energyledger/core/ledger"
	coremon "github.com/kilianp07/energyledger/core/monitoring"
	"github.com/kilianp07/energyledger/infra/audit"
	"github.com/kilianp07/energyledger/infra/logger"
)

// Service is what the dashboard needs from the application layer.
type Service interface {
	Refresh(ctx context.Context, req app.RefreshRequest) (app.Snapshot, error)
	Login(ctx context.Context, c auth.Credentials) (string, auth.Session, error)
	Session(token string) (auth.Session, error)
	AuditTrail(ctx context.Context, id auth.Identity, q audit.Query) ([]audit.Record, error)
}

type ctxKey struct{}

type server struct {
	svc  Service
	cfg  config.DashboardConfig
	log  logger.Logger
	tmpl *templates
}

// New returns the dashboard handler.
func New(svc Service, cfg config.DashboardConfig) http.Handler {
	cfg.SetDefaults()
	s := &server{svc: svc, cfg: cfg, log: logger.New("dashboard"), tmpl: loadTemplates()}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/login", s.loginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost)

	pages := r.NewRoute().Subrouter()
	pages.Use(s.requireSession(false))
	pages.HandleFunc("/", s.index).Methods(http.MethodGet)
	pages.HandleFunc("/charts", s.charts).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireSession(true))
	api.HandleFunc("/ledger", s.ledgerJSON).Methods(http.MethodGet)
	api.HandleFunc("/ledger/kpis", s.kpisJSON).Methods(http.MethodGet)
	api.HandleFunc("/ledger/export.{format:csv|xlsx|pdf}", s.export).Methods(http.MethodGet)
	api.HandleFunc("/audit", s.auditJSON).Methods(http.MethodGet)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(panicLogger{log: s.log}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(handlers.CompressHandler(r))
}

// panicLogger forwards recovered handler panics to the logger and to
// monitoring.
type panicLogger struct{ log logger.Logger }

func (p panicLogger) Println(v ...any) {
	p.log.Errorf("handler panic: %v", fmt.Sprint(v...))
	if len(v) > 0 {
		coremon.CapturePanic(v[0])
	}
}

func (s *server) requireSession(api bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := s.session(r)
			if err != nil {
				if api {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
		})
	}
}

func (s *server) session(r *http.Request) (auth.Session, error) {
	c, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		return auth.Session{}, err
	}
	return s.svc.Session(c.Value)
}

func sessionFrom(ctx context.Context) auth.Session {
	sess, _ := ctx.Value(ctxKey{}).(auth.Session)
	return sess
}

// snapshot computes the ledger of the session's meter for the requested
// window. The status is the HTTP code matching the error.
func (s *server) snapshot(r *http.Request) (app.Snapshot, int, error) {
	var win ledger.Window
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := ledger.ParseWindow(raw)
		if err != nil {
			return app.Snapshot{}, http.StatusBadRequest, err
		}
		win = parsed
	}
	sess := sessionFrom(r.Context())
	snap, err := s.svc.Refresh(r.Context(), app.RefreshRequest{Identity: sess.Identity, Window: win})
	if err != nil {
		s.log.Warnf("refresh for %s: %v", sess.Identity.Subject, err)
		if errors.Is(err, auth.ErrNoMeter) {
			return app.Snapshot{}, http.StatusForbidden, err
		}
		return app.Snapshot{}, http.StatusBadGateway, err
	}
	return snap, http.StatusOK, nil
}

// refresh is snapshot for JSON endpoints; it writes the error body itself.
func (s *server) refresh(w http.ResponseWriter, r *http.Request) (app.Snapshot, bool) {
	snap, status, err := s.snapshot(r)
	if err != nil {
		writeError(w, status, err.Error())
		return app.Snapshot{}, false
	}
	return snap, true
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	creds := auth.Credentials{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	tok, sess, err := s.svc.Login(r.Context(), creds)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoMeter):
		s.renderLogin(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	case errors.Is(err, app.ErrSessionsDisabled):
		s.renderLogin(w, http.StatusServiceUnavailable, "Sign-in is not configured.")
		return
	default:
		s.log.Errorf("login: %v", err)
		s.renderLogin(w, http.StatusBadGateway, "Sign-in failed, try again later.")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    tok,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
