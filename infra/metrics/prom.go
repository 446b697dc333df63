package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/energyledger/core/metrics"
)

// PromRecorder records ledger refreshes and logins in Prometheus metrics.
type PromRecorder struct {
	refreshes *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	balance   *prometheus.GaugeVec
	samples   *prometheus.GaugeVec
	logins    *prometheus.CounterVec
}

// NewPromRecorder registers ledger metrics on the default Prometheus registerer.
// The /metrics server is started separately from metrics.prometheus_addr.
func NewPromRecorder() (*PromRecorder, error) {
	return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromRecorderWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered are reused.
func NewPromRecorderWithRegistry(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_refresh_total",
		Help: "Ledger refreshes by meter and outcome",
	}, []string{"meter", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_refresh_duration_seconds",
		Help:    "Time spent fetching samples and computing the ledger",
		Buckets: prometheus.DefBuckets,
	}, []string{"meter"})
	balance := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_balance_kw",
		Help: "Current energy account balance",
	}, []string{"meter"})
	samples := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_samples",
		Help: "Samples in the last computed ledger",
	}, []string{"meter"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_logins_total",
		Help: "Dashboard login attempts by result",
	}, []string{"result"})

	var err error
	if refreshes, err = register(reg, refreshes); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if balance, err = register(reg, balance); err != nil {
		return nil, err
	}
	if samples, err = register(reg, samples); err != nil {
		return nil, err
	}
	if logins, err = register(reg, logins); err != nil {
		return nil, err
	}
	return &PromRecorder{refreshes: refreshes, duration: duration, balance: balance, samples: samples, logins: logins}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRefresh counts the refresh and, when it succeeded, updates the gauges.
func (p *PromRecorder) RecordRefresh(ev coremetrics.RefreshEvent) error {
	p.refreshes.WithLabelValues(ev.Meter, ev.Status).Inc()
	p.duration.WithLabelValues(ev.Meter).Observe(ev.Duration.Seconds())
	if ev.Status != coremetrics.StatusOK {
		return nil
	}
	p.samples.WithLabelValues(ev.Meter).Set(float64(ev.Samples))
	if ev.BalanceValid {
		p.balance.WithLabelValues(ev.Meter).Set(ev.Balance)
	} else {
		p.balance.DeleteLabelValues(ev.Meter)
	}
	return nil
}

// RecordLogin counts a login attempt.
func (p *PromRecorder) RecordLogin(ev coremetrics.LoginEvent) error {
	result := "failure"
	if ev.Success {
		result = "success"
	}
	p.logins.WithLabelValues(result).Inc()
	return nil
}

func boolTag(b bool) string { return strconv.FormatBool(b) }
