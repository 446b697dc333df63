package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/energyledger/core/metrics"
)

func TestPromRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorderWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, rec.RecordRefresh(coremetrics.RefreshEvent{
		Meter: "m1", Status: coremetrics.StatusOK, Samples: 12, Balance: 3.5, BalanceValid: true, Duration: 20 * time.Millisecond,
	}))
	require.NoError(t, rec.RecordRefresh(coremetrics.RefreshEvent{Meter: "m1", Status: coremetrics.StatusInvalidInput}))
	require.NoError(t, rec.RecordLogin(coremetrics.LoginEvent{Subject: "alice", Success: true}))
	require.NoError(t, rec.RecordLogin(coremetrics.LoginEvent{Subject: "alice"}))
	require.NoError(t, rec.RecordLogin(coremetrics.LoginEvent{Subject: "bob"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.refreshes.WithLabelValues("m1", coremetrics.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.refreshes.WithLabelValues("m1", coremetrics.StatusInvalidInput)))
	assert.Equal(t, 3.5, testutil.ToFloat64(rec.balance.WithLabelValues("m1")))
	assert.Equal(t, 12.0, testutil.ToFloat64(rec.samples.WithLabelValues("m1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.logins.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.logins.WithLabelValues("failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.duration))
}

func TestPromRecorderEmptyLedgerDropsBalance(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorderWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, rec.RecordRefresh(coremetrics.RefreshEvent{Meter: "m1", Status: coremetrics.StatusOK, Balance: 1, BalanceValid: true}))
	require.NoError(t, rec.RecordRefresh(coremetrics.RefreshEvent{Meter: "m1", Status: coremetrics.StatusOK}))
	assert.Equal(t, 0, testutil.CollectAndCount(rec.balance))
}

func TestPromRecorderReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromRecorderWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromRecorderWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordLogin(coremetrics.LoginEvent{Success: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.logins.WithLabelValues("success")))
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorderWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, rec.RecordRefresh(coremetrics.RefreshEvent{Meter: "m1", Status: coremetrics.StatusOK}))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `ledger_refresh_total{meter="m1",status="ok"} 1`))
}
