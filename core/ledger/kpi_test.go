package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/energyledger/core/model"
)

func TestCurrentBalance_Empty(t *testing.T) {
	l, err := Compute("m1", nil)
	require.NoError(t, err)
	b := CurrentBalance(l)
	assert.False(t, b.Valid)
	assert.NotEqual(t, model.Some(0), b)
}

func TestCurrentBalance(t *testing.T) {
	l, err := Compute("m1", []model.Sample{
		sample(0, 5, 0),
		sample(time.Second, 3, 0),
		sample(2*time.Second, 3, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, model.Some(4), CurrentBalance(l))
}

func TestBalanceDelta(t *testing.T) {
	l := hourlyLedger(t, 10)
	now := l.Entries[9].Timestamp

	d := BalanceDelta(l, now, 3*time.Hour)
	require.True(t, d.OK())
	require.NotNil(t, d.Reference)
	assert.Equal(t, l.Entries[6].Timestamp, *d.Reference)
	assert.InDelta(t, l.Entries[9].BalanceKW-l.Entries[6].BalanceKW, d.Value, 1e-9)

	// reference between samples falls back to the earlier one
	d = BalanceDelta(l, now, 150*time.Minute)
	require.True(t, d.OK())
	assert.Equal(t, l.Entries[6].Timestamp, *d.Reference)
}

func TestBalanceDelta_InsufficientHistory(t *testing.T) {
	l := hourlyLedger(t, 3)
	d := BalanceDelta(l, l.Entries[2].Timestamp, 24*time.Hour)
	assert.Equal(t, StatusInsufficientHistory, d.Status)
	assert.Zero(t, d.Value)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "reference")
}

func TestBalanceDelta_NoData(t *testing.T) {
	d := BalanceDelta(model.Ledger{}, t0, time.Hour)
	assert.Equal(t, StatusNoData, d.Status)
}
