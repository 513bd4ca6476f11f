// Package telemetry provides Prometheus metrics, optional OpenTelemetry
// tracing and correlation-id aware logging for the relay.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	UpdatesTotal       *prometheus.CounterVec
	RelaysTotal        *prometheus.CounterVec
	RelayFailuresTotal *prometheus.CounterVec
	BindingsTotal      prometheus.Counter
	UnbindingsTotal    *prometheus.CounterVec
	MappingsGauge      prometheus.Gauge
	StoreSaveDuration  prometheus.Observer
	StoreFailuresTotal prometheus.Counter
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pretender_updates_total", Help: "Inbound updates by classified category"}, []string{"category"})
		RelaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pretender_relays_total", Help: "Payloads relayed into destination groups"}, []string{"kind"})
		RelayFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pretender_relay_failures_total", Help: "Failed relay deliveries by reason"}, []string{"reason"})
		BindingsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "pretender_bindings_total", Help: "Owner to group bindings created"})
		UnbindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "pretender_unbindings_total", Help: "Owner to group bindings removed"}, []string{"cause"})
		MappingsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "pretender_relay_mappings", Help: "Current number of owner to group bindings"})
		StoreSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "pretender_store_save_duration_seconds", Help: "Relay store save duration seconds", Buckets: prometheus.DefBuckets})
		StoreFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "pretender_store_failures_total", Help: "Relay store save failures"})
	})
}

func ObserveUpdate(category string) {
	if UpdatesTotal != nil {
		UpdatesTotal.WithLabelValues(category).Inc()
	}
}

func RecordRelay(kind string) {
	if RelaysTotal != nil {
		RelaysTotal.WithLabelValues(kind).Inc()
	}
}

func RecordRelayFailure(reason string) {
	if RelayFailuresTotal != nil {
		RelayFailuresTotal.WithLabelValues(reason).Inc()
	}
}

func RecordBinding() {
	if BindingsTotal != nil {
		BindingsTotal.Inc()
	}
}

func RecordUnbinding(cause string) {
	if UnbindingsTotal != nil {
		UnbindingsTotal.WithLabelValues(cause).Inc()
	}
}

// SetMappings records the current number of relay bindings.
func SetMappings(n int) {
	if MappingsGauge != nil {
		MappingsGauge.Set(float64(n))
	}
}

func RecordStoreFailure() {
	if StoreFailuresTotal != nil {
		StoreFailuresTotal.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func() error) error {
	start := time.Now()
	err := fn()
	if obs != nil {
		obs.Observe(time.Since(start).Seconds())
	}
	return err
}

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation embeds id in ctx. An empty id gets a fresh random one.
func WithCorrelation(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, corrKey, id)
}

func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns base tagged with the context's correlation id.
func LoggerWithCorr(ctx context.Context, base *slog.Logger) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return base.With(slog.String("corr", id))
	}
	return base
}
