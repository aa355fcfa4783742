package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "byahero",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "byahero",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Geofence metrics
	FeaturesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "byahero",
		Subsystem: "geofence",
		Name:      "features_loaded",
		Help:      "Features in the current geofence snapshot",
	})

	FeatureFilesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "geofence",
		Name:      "files_skipped_total",
		Help:      "Total geofence files skipped as malformed",
	})

	FeatureReloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "byahero",
		Subsystem: "geofence",
		Name:      "reload_duration_seconds",
		Help:      "Duration of geofence reloads",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "geofence",
		Name:      "resolutions_total",
		Help:      "Total location resolutions by outcome",
	}, []string{"kind"})

	// Fleet metrics
	BusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "fleet",
		Name:      "bus_updates_total",
		Help:      "Total bus state mutations by operation and result",
	}, []string{"operation", "result"})

	ReportsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "fleet",
		Name:      "reports_ingested_total",
		Help:      "Total location reports consumed from the message bus",
	}, []string{"result"})

	StaleLocationsCleared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "fleet",
		Name:      "stale_locations_cleared_total",
		Help:      "Total bus locations cleared by housekeeping",
	})

	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "byahero",
		Subsystem: "fleet",
		Name:      "bus_lock_wait_seconds",
		Help:      "Time spent waiting for a per-bus lock",
		Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "byahero",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "byahero",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "byahero",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "byahero",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies connection pool counts into the db gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
