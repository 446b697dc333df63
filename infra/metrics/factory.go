package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/energyledger/core/factory"
	coremetrics "github.com/kilianp07/energyledger/core/metrics"
	"github.com/kilianp07/energyledger/infra/audit"
)

// init registers built-in recorders.
func init() {
	_ = coremetrics.RegisterSink("nop", func(map[string]any) (coremetrics.Recorder, error) {
		return coremetrics.NopRecorder{}, nil
	})

	_ = coremetrics.RegisterSink("prometheus", func(map[string]any) (coremetrics.Recorder, error) {
		return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterSink("influx", func(conf map[string]any) (coremetrics.Recorder, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" {
			return nil, fmt.Errorf("influx: url is required")
		}
		return NewInfluxRecorderWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = coremetrics.RegisterSink("jsonl", func(conf map[string]any) (coremetrics.Recorder, error) {
		var c audit.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return audit.New(c)
	})
}
