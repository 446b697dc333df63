package e2e

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/energyledger/core/model"
	"github.com/kilianp07/energyledger/infra/source"
)

// TelemetryWriter seeds an InfluxDB bucket with meter telemetry laid out the
// way source.InfluxSource reads it.
type TelemetryWriter struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// NewTelemetryWriter creates a writer for an already initialised server.
func NewTelemetryWriter(url, token, org, bucket string) *TelemetryWriter {
	c := influxdb2.NewClient(url, token)
	return &TelemetryWriter{client: c, write: c.WriteAPIBlocking(org, bucket)}
}

// Write stores one point per sample. Missing fields are not written, and a
// sample with no valid field is skipped since InfluxDB rejects empty points.
func (w *TelemetryWriter) Write(ctx context.Context, meter string, samples []model.Sample) error {
	points := make([]*write.Point, 0, len(samples))
	for _, s := range samples {
		fields := make(map[string]any, len(s.Fields))
		for name, q := range s.Fields {
			if q.Valid {
				fields[name] = q.Value
			}
		}
		if len(fields) == 0 {
			continue
		}
		points = append(points, influxdb2.NewPoint(source.DefaultMeasurement,
			map[string]string{"meter": meter}, fields, s.Timestamp))
	}
	return w.write.WritePoint(ctx, points...)
}

// Ready waits until the server reports healthy or the timeout expires.
func (w *TelemetryWriter) Ready(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ok, err := w.client.Ping(ctx); err == nil && ok {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

// Close releases the underlying client resources.
func (w *TelemetryWriter) Close() { w.client.Close() }
