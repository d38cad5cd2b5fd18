// Package metrics exposes Prometheus collectors for the registry manager and
// its data-access collaborator.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/dbadmin/ports"
)

const namespace = "dbadmin"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	intents        *prometheus.CounterVec
	registrySize   prometheus.Gauge
	pendingAdds    prometheus.Gauge
	pendingDeletes prometheus.Gauge
	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "State transitions applied by the registry manager",
		}, []string{"intent"}),
		registrySize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_size",
			Help:      "Databases in the last fetched registry",
		}),
		pendingAdds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_adds",
			Help:      "Creates awaiting server confirmation",
		}),
		pendingDeletes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_deletes",
			Help:      "Deletes awaiting server confirmation",
		}),
		remoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Data-access calls by operation and outcome",
		}, []string{"op", "outcome"}),
		remoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Data-access call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// Observe records one applied state change. It matches eventbus.Handler.
func (m *Metrics) Observe(change dbadmin.StateChange) {
	m.intents.WithLabelValues(string(change.Intent)).Inc()
	m.registrySize.Set(float64(len(change.State.Registry)))
	m.pendingAdds.Set(float64(len(change.State.PendingAdds)))
	m.pendingDeletes.Set(float64(len(change.State.PendingDeletes)))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps next so every call is counted and timed.
func (m *Metrics) Instrument(next ports.DataAccess) ports.DataAccess {
	return &instrumented{next: next, m: m}
}

func (m *Metrics) observeCall(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dbadmin.KindOf(err))
	}
	m.remoteCalls.WithLabelValues(op, outcome).Inc()
	m.remoteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

type instrumented struct {
	next ports.DataAccess
	m    *Metrics
}

func (i *instrumented) ListDatabases(ctx context.Context) ([]dbadmin.DatabaseRecord, error) {
	start := time.Now()
	out, err := i.next.ListDatabases(ctx)
	i.m.observeCall("list", start, err)
	return out, err
}

func (i *instrumented) GetDatabase(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	start := time.Now()
	out, err := i.next.GetDatabase(ctx, id)
	i.m.observeCall("get", start, err)
	return out, err
}

func (i *instrumented) CreateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	start := time.Now()
	out, err := i.next.CreateDatabase(ctx, rec)
	i.m.observeCall("create", start, err)
	return out, err
}

func (i *instrumented) UpdateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	start := time.Now()
	out, err := i.next.UpdateDatabase(ctx, rec)
	i.m.observeCall("update", start, err)
	return out, err
}

func (i *instrumented) DeleteDatabase(ctx context.Context, id int64) error {
	start := time.Now()
	err := i.next.DeleteDatabase(ctx, id)
	i.m.observeCall("delete", start, err)
	return err
}

func (i *instrumented) SyncMetadata(ctx context.Context, id int64) error {
	start := time.Now()
	err := i.next.SyncMetadata(ctx, id)
	i.m.observeCall("sync", start, err)
	return err
}

func (i *instrumented) AddSampleDataset(ctx context.Context) (*dbadmin.DatabaseRecord, error) {
	start := time.Now()
	out, err := i.next.AddSampleDataset(ctx)
	i.m.observeCall("sample", start, err)
	return out, err
}
