package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_attempts_started_total",
			Help: "Attempts successfully started",
		},
	)

	AttemptDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_attempt_denials_total",
			Help: "Attempt start requests denied, by reason",
		},
		[]string{"reason"},
	)

	AttemptsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_attempts_closed_total",
			Help: "Attempts closed, by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionsFlagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_submissions_flagged_total",
			Help: "Closed submissions flagged as errored by grading integrity checks",
		},
	)

	GradingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assessment_grading_duration_seconds",
			Help:    "Time spent grading one submission including persistence",
			Buckets: prometheus.DefBuckets,
		},
	)

	ActiveDeadlines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "assessment_active_deadlines",
			Help: "Deadlines currently held by the scheduler",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AttemptsStarted,
			AttemptDenials,
			AttemptsClosed,
			SubmissionsFlagged,
			GradingDuration,
			ActiveDeadlines,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
