package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "naturepark_"

	resultSuccess = "success"
	resultError   = "error"

	cacheHit  = "hit"
	cacheMiss = "miss"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
	ingestSkipped  *prometheus.CounterVec
	ingestStored   prometheus.Counter

	queryRequests *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec

	weatherCache    *prometheus.CounterVec
	weatherUpstream *prometheus.CounterVec

	qrScans *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_measurements_skipped_total",
				Help: "Total malformed measurements skipped during ingest by reason",
			},
			[]string{"reason"},
		)
		ingestStored = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_measurements_stored_total",
				Help: "Total measurements stored via the ingest endpoint",
			},
		)

		queryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "measurement_query_requests_total",
				Help: "Total measurement query requests by format",
			},
			[]string{"format"},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "measurement_query_latency_seconds",
				Help:    "Measurement query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)

		weatherCache = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "weather_cache_total",
				Help: "Weather proxy cache lookups by result",
			},
			[]string{"result"},
		)
		weatherUpstream = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "weather_upstream_requests_total",
				Help: "Weather upstream fetches by result",
			},
			[]string{"result"},
		)

		qrScans = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "qr_scans_total",
				Help: "QR scan attempts by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			ingestSkipped,
			ingestStored,
			queryRequests,
			queryLatency,
			weatherCache,
			weatherUpstream,
			qrScans,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncIngestSkipped counts a malformed measurement dropped during ingest.
func IncIngestSkipped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestSkipped != nil {
		ingestSkipped.WithLabelValues(reason).Inc()
	}
}

// AddIngestStored counts measurements written by the ingest endpoint.
func AddIngestStored(count int) {
	if count <= 0 {
		return
	}
	if ingestStored != nil {
		ingestStored.Add(float64(count))
	}
}

// ObserveQuery records measurement query latency by output format.
func ObserveQuery(format string, duration time.Duration) {
	if format == "" {
		format = "json"
	}
	if queryRequests != nil {
		queryRequests.WithLabelValues(format).Inc()
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// IncWeatherCache counts a weather cache hit or miss.
func IncWeatherCache(hit bool) {
	if weatherCache == nil {
		return
	}
	if hit {
		weatherCache.WithLabelValues(cacheHit).Inc()
	} else {
		weatherCache.WithLabelValues(cacheMiss).Inc()
	}
}

// IncWeatherUpstream counts a weather upstream fetch result.
func IncWeatherUpstream(result string) {
	if result == "" {
		result = resultSuccess
	}
	if weatherUpstream != nil {
		weatherUpstream.WithLabelValues(result).Inc()
	}
}

// IncQRScan counts a QR scan attempt outcome.
func IncQRScan(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if qrScans != nil {
		qrScans.WithLabelValues(outcome).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
