package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kilianp07/energyledger/auth"
	"github.com/kilianp07/energyledger/config"
	"github.com/kilianp07/energyledger/core/factory"
	"github.com/kilianp07/energyledger/core/ledger"
	coremetrics "github.com/kilianp07/energyledger/core/metrics"
	"github.com/kilianp07/energyledger/core/model"
	"github.com/kilianp07/energyledger/core/source"
	"github.com/kilianp07/energyledger/infra/audit"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	refreshes []coremetrics.RefreshEvent
	logins    []coremetrics.LoginEvent
}

func (r *recorder) RecordRefresh(ev coremetrics.RefreshEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes = append(r.refreshes, ev)
	return nil
}

func (r *recorder) RecordLogin(ev coremetrics.LoginEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, ev)
	return nil
}

type failingSource struct{}

func (failingSource) Query(context.Context, source.Query) ([]model.Sample, error) {
	return nil, errors.New("connection refused")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Source.Type = "memory"
	cfg.Auth.Users = []auth.User{{Username: "alice", PasswordHash: string(h)}, {Username: "nomad", PasswordHash: string(h)}}
	cfg.Auth.Meters = auth.MeterMap{ByUser: map[string]string{"alice": "m1"}}
	cfg.Auth.SessionSecret = "0123456789abcdef"
	cfg.Ledger.SampleCadenceSeconds = 3600
	cfg.Ledger.KPILookbackSeconds = 2 * 3600
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func hourly(consumption ...any) []model.Sample {
	out := make([]model.Sample, len(consumption))
	for i, c := range consumption {
		out[i] = model.NewSample(t0.Add(time.Duration(i)*time.Hour), map[string]any{model.FieldConsumption: c, model.FieldProduction: 0})
	}
	return out
}

func newService(t *testing.T, src source.Source) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc, err := New(testConfig(t), WithSource(src), WithRecorder(rec), WithClock(func() time.Time { return t0.Add(48 * time.Hour) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, rec
}

func TestRefresh(t *testing.T) {
	mem := source.NewMemorySource()
	samples := hourly(5, 3, 3, 1)
	// raw watts are normalised before the ledger is computed
	samples[2] = model.NewSample(t0.Add(2*time.Hour), map[string]any{"consumption_W": 3000, model.FieldProduction: 0})
	require.NoError(t, mem.Append(context.Background(), "m1", samples))
	svc, rec := newService(t, mem)

	snap, err := svc.Refresh(context.Background(), RefreshRequest{
		Identity: auth.Identity{Subject: "alice"},
		Window:   ledger.WindowHour,
		Now:      t0.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", snap.Meter)
	assert.Equal(t, []float64{0, 2, 2, 4}, balances(snap.Full))
	// the hour window keeps the entries after last-1h with their full-history balances
	require.Equal(t, 1, snap.View.Len())
	assert.Equal(t, 4.0, snap.View.Entries[0].BalanceKW)
	assert.Equal(t, model.Some(4), snap.Current)
	require.True(t, snap.Delta.OK())
	assert.Equal(t, 2.0, snap.Delta.Value)
	assert.Equal(t, 1, snap.Summary.Samples)
	assert.Len(t, snap.Buckets, 1)
	assert.Equal(t, snap.View, snap.Report().Ledger)

	require.Len(t, rec.refreshes, 1)
	ev := rec.refreshes[0]
	assert.Equal(t, coremetrics.StatusOK, ev.Status)
	assert.Equal(t, 4, ev.Samples)
	assert.True(t, ev.BalanceValid)
	assert.Equal(t, "alice", ev.Subject)
	assert.NotEmpty(t, ev.RefreshID)
}

func TestRefreshDefaultsAndEmpty(t *testing.T) {
	svc, rec := newService(t, source.NewMemorySource())
	snap, err := svc.Refresh(context.Background(), RefreshRequest{Identity: auth.Identity{Subject: "alice"}})
	require.NoError(t, err)
	assert.Equal(t, ledger.WindowDay, snap.Window)
	assert.True(t, snap.Full.Empty())
	assert.False(t, snap.Current.Valid)
	assert.Equal(t, ledger.StatusNoData, snap.Delta.Status)
	assert.Equal(t, t0.Add(48*time.Hour), snap.At)
	assert.False(t, rec.refreshes[0].BalanceValid)
}

func TestRefreshErrors(t *testing.T) {
	mem := source.NewMemorySource()
	require.NoError(t, mem.Append(context.Background(), "m1", []model.Sample{hourly(1, 2)[1], hourly(1)[0]}))
	svc, rec := newService(t, mem)

	_, err := svc.Refresh(context.Background(), RefreshRequest{Identity: auth.Identity{Subject: "alice"}})
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	assert.Equal(t, coremetrics.StatusInvalidInput, rec.refreshes[0].Status)

	_, err = svc.Refresh(context.Background(), RefreshRequest{Identity: auth.Identity{Subject: "nomad"}})
	assert.ErrorIs(t, err, auth.ErrNoMeter)

	bad, rec := newService(t, failingSource{})
	_, err = bad.LedgerFor(context.Background(), "m1", ledger.WindowDay, time.Time{})
	require.Error(t, err)
	assert.Equal(t, coremetrics.StatusSourceError, rec.refreshes[0].Status)
	assert.Contains(t, rec.refreshes[0].Error, "connection refused")
}

func TestLoginAndSession(t *testing.T) {
	svc, rec := newService(t, source.NewMemorySource())
	ctx := context.Background()

	tok, sess, err := svc.Login(ctx, auth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "m1", sess.Meter)

	got, err := svc.Session(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Identity.Subject)

	_, _, err = svc.Login(ctx, auth.Credentials{Username: "alice", Password: "nope"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "nomad", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrNoMeter)

	require.Len(t, rec.logins, 3)
	assert.True(t, rec.logins[0].Success)
	assert.False(t, rec.logins[1].Success)
	assert.NotEmpty(t, rec.logins[1].Reason)
}

func TestSessionsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.SessionSecret = ""
	svc, err := New(cfg, WithSource(source.NewMemorySource()), WithRecorder(coremetrics.NopRecorder{}))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	_, _, err = svc.Login(context.Background(), auth.Credentials{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrSessionsDisabled)
	assert.ErrorIs(t, svc.Run(context.Background(), nil), ErrSessionsDisabled)
}

func TestAppender(t *testing.T) {
	svc, _ := newService(t, source.NewMemorySource())
	_, ok := svc.Appender()
	assert.True(t, ok)

	ro, _ := newService(t, failingSource{})
	_, ok = ro.Appender()
	assert.False(t, ok)
}

func TestNewFromConfiguredSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Type = "sqlite"
	cfg.Source.Conf = map[string]any{"path": ":memory:"}
	cfg.Audit.Enabled = true
	cfg.Audit.Path = t.TempDir() + "/audit.jsonl"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	_, ok := svc.Appender()
	assert.True(t, ok)
	_, err = svc.LedgerFor(context.Background(), "m1", ledger.WindowDay, time.Time{})
	require.NoError(t, err)

	cfg.Source.Type = "cosmos"
	_, err = New(cfg)
	assert.ErrorIs(t, err, source.ErrUnknownSource)
}

func TestAuditTrail(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(dir, "audit.jsonl")
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "events.jsonl")}}}
	mem := source.NewMemorySource()
	require.NoError(t, mem.Append(context.Background(), "m1", hourly(2, 3)))
	svc, err := New(cfg, WithSource(mem), WithClock(func() time.Time { return t0.Add(2 * time.Hour) }))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	// the jsonl sink and the audit trail are both released by Close
	assert.Len(t, svc.closers, 2)

	ctx := context.Background()
	alice := auth.Identity{Subject: "alice"}
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, auth.Credentials{Username: "nomad", Password: "pw"})
	require.ErrorIs(t, err, auth.ErrNoMeter)
	_, err = svc.Refresh(ctx, RefreshRequest{Identity: alice})
	require.NoError(t, err)
	_, err = svc.LedgerFor(ctx, "m2", ledger.WindowDay, time.Time{})
	require.NoError(t, err)

	recs, err := svc.AuditTrail(ctx, alice, audit.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	kinds := []string{recs[0].Kind, recs[1].Kind}
	assert.ElementsMatch(t, []string{audit.KindLogin, audit.KindRefresh}, kinds)

	recs, err = svc.AuditTrail(ctx, alice, audit.Query{Kind: audit.KindRefresh})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "m1", recs[0].Meter)

	_, err = svc.AuditTrail(ctx, auth.Identity{Subject: "nomad"}, audit.Query{})
	assert.ErrorIs(t, err, auth.ErrNoMeter)

	plain, _ := newService(t, mem)
	_, err = plain.AuditTrail(ctx, alice, audit.Query{})
	assert.ErrorIs(t, err, ErrAuditDisabled)
}

func balances(l model.Ledger) []float64 {
	out := make([]float64, l.Len())
	for i, e := range l.Entries {
		out[i] = e.BalanceKW
	}
	return out
}
