// Package metrics exposes Prometheus instruments for the sync engine, the
// composite repository and the artifact cache. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

type Metrics struct {
	syncRuns         *prometheus.CounterVec
	syncDuration     prometheus.Histogram
	syncMerged       prometheus.Counter
	syncConflicts    prometheus.Counter
	draftsImported   prometheus.Counter
	remoteFailures   *prometheus.CounterVec
	cacheEvictions   prometheus.Counter
	cacheExpirations prometheus.Counter
	cacheBytes       prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		syncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolvault_sync_runs_total",
				Help: "Sync attempts by outcome",
			},
			[]string{"outcome", "trigger"},
		),
		syncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolvault_sync_duration_seconds",
				Help:    "Duration of completed sync runs in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		syncMerged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolvault_sync_merged_total",
				Help: "Records downloaded or overwritten locally by sync",
			},
		),
		syncConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolvault_sync_conflicts_total",
				Help: "Records left untouched because the local copy was newer",
			},
		),
		draftsImported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolvault_drafts_imported_total",
				Help: "Local-provenance records pushed to the remote store",
			},
		),
		remoteFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolvault_remote_failures_total",
				Help: "Remote store failures swallowed by the repository",
			},
			[]string{"op"},
		),
		cacheEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolvault_cache_evictions_total",
				Help: "Artifacts evicted to stay under the cache ceiling",
			},
		),
		cacheExpirations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolvault_cache_expirations_total",
				Help: "Artifacts deleted after their TTL passed",
			},
		),
		cacheBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolvault_cache_bytes",
				Help: "Current total size of cached artifacts",
			},
		),
	}
}

// ObserveSync records one finished (or rejected) sync attempt.
func (m *Metrics) ObserveSync(outcome, trigger string, merged, conflicts int, d time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(outcome, trigger).Inc()
	if outcome == OutcomeRejected {
		return
	}
	m.syncDuration.Observe(d.Seconds())
	m.syncMerged.Add(float64(merged))
	m.syncConflicts.Add(float64(conflicts))
}

func (m *Metrics) DraftsImported(n int) {
	if m == nil {
		return
	}
	m.draftsImported.Add(float64(n))
}

func (m *Metrics) RemoteFailed(op string) {
	if m == nil {
		return
	}
	m.remoteFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) CacheEvicted(n int) {
	if m == nil {
		return
	}
	m.cacheEvictions.Add(float64(n))
}

func (m *Metrics) CacheExpired(n int) {
	if m == nil {
		return
	}
	m.cacheExpirations.Add(float64(n))
}

func (m *Metrics) CacheSize(bytes int64) {
	if m == nil {
		return
	}
	m.cacheBytes.Set(float64(bytes))
}
