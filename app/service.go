// Package app wires configuration, data source, authentication and recorders
// into the service behind the dashboard and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/energyledger/auth"
	"github.com/kilianp07/energyledger/config"
	"github.com/kilianp07/energyledger/core/ledger"
	coremetrics "github.com/kilianp07/energyledger/core/metrics"
	coremon "github.com/kilianp07/energyledger/core/monitoring"
	"github.com/kilianp07/energyledger/core/model"
	"github.com/kilianp07/energyledger/core/source"
	"github.com/kilianp07/energyledger/infra/audit"
	"github.com/kilianp07/energyledger/infra/logger"
	"github.com/kilianp07/energyledger/infra/metrics"
	inframon "github.com/kilianp07/energyledger/infra/monitoring"
	"github.com/kilianp07/energyledger/infra/mqtt"
	"github.com/kilianp07/energyledger/pkg/export"

	// registers the store-backed sources
	_ "github.com/kilianp07/energyledger/infra/source"
)

// ErrSessionsDisabled is returned by session operations when no session
// secret is configured.
var ErrSessionsDisabled = errors.New("app: sessions disabled, set auth.session_secret")

// ErrAuditDisabled is returned by AuditTrail when audit.enabled is false.
var ErrAuditDisabled = errors.New("app: audit trail disabled")

// RefreshRequest asks for the ledger of the user's meter.
type RefreshRequest struct {
	Identity auth.Identity
	Window   ledger.Window
	// Now anchors the KPI lookback; zero means the service clock.
	Now time.Time
}

// Snapshot is one computed view of a meter's ledger.
type Snapshot struct {
	Meter   string
	Window  ledger.Window
	Full    model.Ledger
	View    model.Ledger
	Current model.Quantity
	Delta   ledger.Delta
	Summary ledger.Summary
	Buckets []ledger.Bucket
	At      time.Time
}

// Report converts the snapshot into an export report of its windowed view.
func (s Snapshot) Report() export.Report {
	return export.Report{
		Meter:       s.Meter,
		Window:      s.Window,
		GeneratedAt: s.At,
		Current:     s.Current,
		Delta:       s.Delta,
		Summary:     s.Summary,
		Ledger:      s.View,
	}
}

// Service orchestrates ledger refreshes, logins and sessions.
type Service struct {
	cfg      *config.Config
	src      source.Source
	provider auth.Provider
	sessions *auth.Sessions
	recorder coremetrics.Recorder
	logins   coremetrics.LoginRecorder
	log      logger.Logger
	trail    *audit.Log
	now      func() time.Time
	closers  []io.Closer
}

// Option customises a Service.
type Option func(*Service)

// WithSource replaces the configured source.
func WithSource(src source.Source) Option {
	return func(s *Service) { s.src = src }
}

// WithRecorder replaces the configured metrics sinks. The audit trail is still
// added when enabled.
func WithRecorder(r coremetrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithProvider replaces the configured login provider.
func WithProvider(p auth.Provider) Option {
	return func(s *Service) { s.provider = p }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	logger.SetLevel(cfg.Log.Level)
	s := &Service{cfg: cfg, log: logger.New("service"), now: time.Now}
	for _, o := range opts {
		o(s)
	}

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	if s.src == nil {
		src, err := source.New(cfg.Source)
		if err != nil {
			return nil, err
		}
		s.src = src
		s.track(src)
	}
	if err := s.buildRecorder(); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.logins = coremetrics.AsLoginRecorder(s.recorder)
	if s.provider == nil {
		p, err := newProvider(cfg.Auth)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.provider = p
	}
	if cfg.Auth.SessionSecret != "" {
		sess, err := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL())
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.sessions = sess
	}
	return s, nil
}

// buildRecorder creates the configured sinks unless a recorder was injected,
// then adds the audit trail when enabled.
func (s *Service) buildRecorder() error {
	if s.recorder == nil {
		rec, err := coremetrics.NewRecorder(s.cfg.Metrics.Sinks)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		s.track(rec)
		s.recorder = rec
	}
	if !s.cfg.Audit.Enabled {
		return nil
	}
	trail, err := audit.New(s.cfg.Audit.Rotation())
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	s.track(trail)
	s.trail = trail
	s.recorder = coremetrics.NewMultiRecorder(s.recorder, trail)
	return nil
}

func newProvider(cfg config.AuthConfig) (auth.Provider, error) {
	switch cfg.Provider {
	case "oauth2":
		return auth.NewOAuth2Provider(cfg.OAuth2, nil), nil
	default:
		return auth.NewStaticProvider(cfg.Users)
	}
}

func (s *Service) track(v any) {
	if c, ok := v.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
}

// Config returns the loaded configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Refresh resolves the user's meter and computes its snapshot.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (Snapshot, error) {
	meter, err := s.cfg.Auth.Meters.Resolve(req.Identity)
	if err != nil {
		return Snapshot{}, err
	}
	return s.compute(ctx, meter, req.Identity.Subject, req.Window, req.Now)
}

// AuditTrail returns the audit records the user may see: refreshes of their
// meter and their own logins, narrowed by q's time range and kind.
func (s *Service) AuditTrail(ctx context.Context, id auth.Identity, q audit.Query) ([]audit.Record, error) {
	if s.trail == nil {
		return nil, ErrAuditDisabled
	}
	meter, err := s.cfg.Auth.Meters.Resolve(id)
	if err != nil {
		return nil, err
	}
	q.Meter, q.Subject = meter, id.Subject
	return s.trail.Query(ctx, q)
}

// LedgerFor computes the snapshot of a meter without a user.
func (s *Service) LedgerFor(ctx context.Context, meter string, w ledger.Window, now time.Time) (Snapshot, error) {
	return s.compute(ctx, meter, "", w, now)
}

func (s *Service) compute(ctx context.Context, meter, subject string, w ledger.Window, now time.Time) (Snapshot, error) {
	start := s.now()
	if now.IsZero() {
		now = start
	}
	if w == "" {
		w = s.cfg.Ledger.Window()
	}
	ev := coremetrics.RefreshEvent{RefreshID: uuid.NewString(), Meter: meter, Subject: subject, Window: string(w), Time: start}
	tags := map[string]string{"module": "ledger", "meter": meter}

	q := source.Query{Meter: meter}
	if h := s.cfg.Ledger.History(); h > 0 {
		q.Start = now.Add(-h)
	}
	samples, err := s.src.Query(ctx, q)
	if err != nil {
		err = fmt.Errorf("query %s: %w", meter, err)
		s.finish(ev, coremetrics.StatusSourceError, err, start)
		coremon.CaptureException(err, tags)
		return Snapshot{}, err
	}
	full, err := ledger.Compute(meter, ledger.NormalizeUnits(samples))
	if err != nil {
		err = fmt.Errorf("ledger %s: %w", meter, err)
		ev.Samples = len(samples)
		s.finish(ev, coremetrics.StatusInvalidInput, err, start)
		coremon.CaptureException(err, tags)
		return Snapshot{}, err
	}

	view := ledger.FilterWindow(full, w)
	snap := Snapshot{
		Meter:   meter,
		Window:  w,
		Full:    full,
		View:    view,
		Current: ledger.CurrentBalance(full),
		Delta:   ledger.BalanceDelta(full, now, s.cfg.Ledger.Lookback()),
		Summary: ledger.Summarize(view, s.cfg.Ledger.Cadence()),
		Buckets: ledger.Resample(view, s.cfg.Ledger.Bucket()),
		At:      now,
	}
	ev.Samples = full.Len()
	ev.Balance, ev.BalanceValid = snap.Current.Value, snap.Current.Valid
	s.finish(ev, coremetrics.StatusOK, nil, start)
	return snap, nil
}

func (s *Service) finish(ev coremetrics.RefreshEvent, status string, err error, start time.Time) {
	ev.Status = status
	ev.Duration = s.now().Sub(start)
	if err != nil {
		ev.Error = err.Error()
		s.log.Errorf("refresh %s failed: %v", ev.Meter, err)
	} else {
		s.log.Debugw("refresh", map[string]any{"meter": ev.Meter, "samples": ev.Samples, "window": ev.Window})
	}
	if rerr := s.recorder.RecordRefresh(ev); rerr != nil {
		s.log.Warnf("record refresh: %v", rerr)
	}
}

// Login authenticates the user, resolves their meter and issues a session
// token.
func (s *Service) Login(ctx context.Context, c auth.Credentials) (string, auth.Session, error) {
	if s.sessions == nil {
		return "", auth.Session{}, ErrSessionsDisabled
	}
	ev := coremetrics.LoginEvent{Subject: c.Username, Time: s.now()}
	id, err := s.provider.Authenticate(ctx, c)
	if err != nil {
		return s.loginFailed(ev, err)
	}
	meter, err := s.cfg.Auth.Meters.Resolve(id)
	if err != nil {
		return s.loginFailed(ev, err)
	}
	tok, sess, err := s.sessions.Issue(id, meter)
	if err != nil {
		return s.loginFailed(ev, err)
	}
	ev.Success = true
	s.recordLogin(ev)
	s.log.Infof("login %s -> %s", id.Subject, meter)
	return tok, sess, nil
}

func (s *Service) loginFailed(ev coremetrics.LoginEvent, err error) (string, auth.Session, error) {
	ev.Reason = err.Error()
	s.recordLogin(ev)
	if !errors.Is(err, auth.ErrInvalidCredentials) && !errors.Is(err, auth.ErrNoMeter) {
		coremon.CaptureException(err, map[string]string{"module": "auth"})
	}
	return "", auth.Session{}, err
}

func (s *Service) recordLogin(ev coremetrics.LoginEvent) {
	if err := s.logins.RecordLogin(ev); err != nil {
		s.log.Warnf("record login: %v", err)
	}
}

// Session verifies a session token.
func (s *Service) Session(token string) (auth.Session, error) {
	if s.sessions == nil {
		return auth.Session{}, ErrSessionsDisabled
	}
	return s.sessions.Parse(token)
}

// Appender returns the source as an ingest target when it supports writes.
func (s *Service) Appender() (mqtt.Appender, bool) {
	a, ok := s.src.(mqtt.Appender)
	return a, ok
}

// Run serves h on the dashboard address until ctx is cancelled, along with
// the metrics endpoint and the background refresher when configured.
func (s *Service) Run(ctx context.Context, h http.Handler) error {
	if s.sessions == nil {
		return ErrSessionsDisabled
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if every := s.cfg.Ledger.RefreshInterval(); every > 0 {
		go s.StartRefresher(ctx, every)
	}
	srv := &http.Server{Addr: s.cfg.Dashboard.Addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("dashboard listening on %s", s.cfg.Dashboard.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
