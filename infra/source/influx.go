package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/kilianp07/energyledger/core/model"
	coresource "github.com/kilianp07/energyledger/core/source"
)

// DefaultMeasurement is the InfluxDB measurement holding meter telemetry.
const DefaultMeasurement = "telemetry"

// InfluxConfig configures InfluxSource.
type InfluxConfig struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	Org         string `json:"org"`
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
	MeterTag    string `json:"meter_tag"`
}

// InfluxSource reads samples with a pivoted Flux query: one row per
// timestamp, one column per field.
type InfluxSource struct {
	client influxdb2.Client
	query  api.QueryAPI
	cfg    InfluxConfig
}

// NewInfluxSource creates a source for the given InfluxDB endpoint.
func NewInfluxSource(cfg InfluxConfig) *InfluxSource {
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.MeterTag == "" {
		cfg.MeterTag = "meter"
	}
	client := influxdb2.NewClientWithOptions(strings.TrimSuffix(cfg.URL, "/"), cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	return &InfluxSource{client: client, query: client.QueryAPI(cfg.Org), cfg: cfg}
}

// Flux renders the query sent to InfluxDB.
func (s *InfluxSource) Flux(q coresource.Query) string {
	start := time.Unix(0, 0).UTC()
	if !q.Start.IsZero() {
		start = q.Start.UTC()
	}
	rng := "start: " + start.Format(time.RFC3339Nano)
	if !q.End.IsZero() {
		rng += ", stop: " + q.End.UTC().Format(time.RFC3339Nano)
	}
	fields := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		fields[i] = "r._field == " + strconv.Quote(f)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", strconv.Quote(s.cfg.Bucket))
	fmt.Fprintf(&b, "  |> range(%s)\n", rng)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s and r[%s] == %s)\n",
		strconv.Quote(s.cfg.Measurement), strconv.Quote(s.cfg.MeterTag), strconv.Quote(q.Meter))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", strings.Join(fields, " or "))
	b.WriteString("  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	b.WriteString("  |> group()\n")
	b.WriteString("  |> sort(columns: [\"_time\"])")
	return b.String()
}

// Query runs the Flux query and converts each pivoted row to a sample.
func (s *InfluxSource) Query(ctx context.Context, q coresource.Query) ([]model.Sample, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	res, err := s.query.Query(ctx, s.Flux(q))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()
	var out []model.Sample
	for res.Next() {
		rec := res.Record()
		vals := rec.Values()
		fields := make(map[string]model.Quantity, len(q.Fields))
		for _, f := range q.Fields {
			if v, ok := vals[f]; ok {
				fields[f] = model.Coerce(v)
			}
		}
		out = append(out, model.Sample{Timestamp: rec.Time().UTC(), Fields: fields})
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	return out, nil
}

// Ping reports whether the server health check passes.
func (s *InfluxSource) Ping(ctx context.Context) error {
	h, err := s.client.Health(ctx)
	if err != nil {
		return err
	}
	if h.Status != "pass" {
		return fmt.Errorf("influx health status: %s", h.Status)
	}
	return nil
}

// Close releases the client.
func (s *InfluxSource) Close() error {
	s.client.Close()
	return nil
}
