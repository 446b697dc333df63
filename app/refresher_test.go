package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/energyledger/core/metrics"
	"github.com/kilianp07/energyledger/core/source"
)

func (r *recorder) refreshCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refreshes)
}

func TestRefreshAll(t *testing.T) {
	mem := source.NewMemorySource()
	require.NoError(t, mem.Append(context.Background(), "m1", hourly(1, 2, 3)))
	svc, rec := newService(t, mem)

	assert.Equal(t, 1, svc.RefreshAll(context.Background()))
	require.Equal(t, 1, rec.refreshCount())
	assert.Equal(t, "m1", rec.refreshes[0].Meter)
	assert.Equal(t, coremetrics.StatusOK, rec.refreshes[0].Status)

	failing, rec := newService(t, failingSource{})
	assert.Equal(t, 0, failing.RefreshAll(context.Background()))
	assert.Equal(t, coremetrics.StatusSourceError, rec.refreshes[0].Status)
}

func TestStartRefresher(t *testing.T) {
	svc, rec := newService(t, source.NewMemorySource())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartRefresher(ctx, 5*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool { return rec.refreshCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}
