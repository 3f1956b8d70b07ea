package executor

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds one promauto collector per counter/gauge the telemetry table
// names, registered against the Registerer passed to newMetrics each time an
// Executor is built.
type metrics struct {
	jobsSubmitted      prometheus.Counter
	jobsCompleted      prometheus.Counter
	jobsFailed         prometheus.Counter
	jobsCancelled      prometheus.Counter
	jobsCoalesced      prometheus.Counter
	jobsActive         prometheus.Gauge
	downloadsActive    prometheus.Gauge
	encodesActive      prometheus.Gauge
	bytesDownloaded    prometheus.Counter
	memoryCacheHits    prometheus.Counter
	diskCacheHits      prometheus.Counter
	semaphoreTimeouts  prometheus.Counter
	jobsRecovered      prometheus.Counter
	peakConcurrentJobs prometheus.Gauge

	startedAt time.Time
	active    atomic.Int64
	peak      atomic.Int64
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		jobsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_jobs_submitted_total", Help: "Jobs submitted to the executor."}),
		jobsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_jobs_completed_total", Help: "Jobs that reduced to success."}),
		jobsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_jobs_failed_total", Help: "Jobs that reduced to failure."}),
		jobsCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_jobs_cancelled_total", Help: "Jobs cancelled before completion."}),
		jobsCoalesced: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_jobs_coalesced_total", Help: "Requests served by joining an in-flight job instead of starting a new one."}),
		jobsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "xearthlayer_jobs_active", Help: "Jobs currently running."}),
		downloadsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "xearthlayer_downloads_active", Help: "Chunk downloads in flight."}),
		encodesActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "xearthlayer_encodes_active", Help: "DDS encodes in flight."}),
		bytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_bytes_downloaded_total", Help: "Bytes fetched from chunk providers."}),
		memoryCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_memory_cache_hits_total", Help: "Memory tile-cache hits."}),
		diskCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_disk_cache_hits_total", Help: "Disk chunk-cache hits."}),
		semaphoreTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_semaphore_timeouts_total", Help: "Resource-permit acquisitions that gave up waiting."}),
		jobsRecovered: f.NewCounter(prometheus.CounterOpts{
			Name: "xearthlayer_jobs_recovered_total", Help: "Jobs that succeeded on a retry after an earlier task failure."}),
		peakConcurrentJobs: f.NewGauge(prometheus.GaugeOpts{
			Name: "xearthlayer_peak_concurrent_jobs", Help: "High-water mark of concurrently running jobs."}),
		startedAt: time.Now(),
	}
}

func (m *metrics) jobStarted() {
	m.jobsActive.Inc()
	n := m.active.Add(1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	m.peakConcurrentJobs.Set(float64(m.peak.Load()))
}

func (m *metrics) jobFinished() {
	m.jobsActive.Dec()
	m.active.Add(-1)
}

// uptimeSecs satisfies the telemetry table's uptime_secs entry; it is a
// derived value rather than its own collector.
func (m *metrics) uptimeSecs() float64 {
	return time.Since(m.startedAt).Seconds()
}
