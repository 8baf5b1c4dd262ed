// Package metrics records ingestion run metrics in a private Prometheus
// registry. Runs are batch jobs, so metrics are exported by writing a
// node_exporter textfile rather than serving an endpoint.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/records"
)

const namespace = "foundry"

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	objects   *prometheus.CounterVec
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	transfers *prometheus.CounterVec
	bytes     prometheus.Counter
	duration  *prometheus.GaugeVec
	lastRun   prometheus.Gauge
}

// New registers the collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		objects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_total",
			Help:      "Objects processed, by type and outcome.",
		}, []string{"type", "outcome"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalogue_requests_total",
			Help:      "Catalogue HTTP attempts, by method and status.",
		}, []string{"method", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalogue_request_duration_seconds",
			Help:      "Catalogue HTTP attempt latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datafile_transfers_total",
			Help:      "Datafile transfers, by outcome.",
		}, []string{"outcome"}),
		bytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datafile_transfer_bytes_total",
			Help:      "Bytes copied into storage boxes.",
		}),
		duration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of the last run, by object type.",
		}, []string{"type"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the last run.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest matches transport.Observer.
func (m *Metrics) ObserveRequest(method, _ string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveTransfer records one datafile transfer.
func (m *Metrics) ObserveTransfer(outcome string, bytes int64) {
	m.transfers.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.bytes.Add(float64(bytes))
	}
}

// ObserveStage records how long the objects of one type took.
func (m *Metrics) ObserveStage(t records.ObjectType, d time.Duration) {
	m.duration.WithLabelValues(t.String()).Set(d.Seconds())
}

// RecordResult adds the per-type outcome counts of a finished run.
func (m *Metrics) RecordResult(r *ingest.Result) {
	for _, t := range records.IngestionOrder {
		c := r.For(t).Counts()
		for outcome, n := range map[string]int{
			"success": c.Success,
			"updated": c.Updated,
			"skipped": c.Skipped,
			"error":   c.Error,
			"blocked": c.Blocked,
		} {
			m.objects.WithLabelValues(t.String(), outcome).Add(float64(n))
		}
	}
	if !r.FinishedAt.IsZero() {
		m.lastRun.Set(float64(r.FinishedAt.Unix()))
	}
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
