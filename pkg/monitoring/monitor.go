package monitoring

import (
	"strconv"
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

	AssessmentGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_generated_total",
			Help: "Total number of generated assessments by purpose and source",
		},
		[]string{"purpose", "source"},
	)

	AssessmentScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_scored_total",
			Help: "Total number of scored assessments by recommendation",
		},
		[]string{"recommendation"},
	)

	SubskillTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subskill_transitions_total",
			Help: "Total number of subskill status transitions",
		},
		[]string{"to"},
	)

	KnowledgeCheckAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_check_attempts_total",
			Help: "Total number of knowledge check attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AssessmentGenerated)
	prometheus.MustRegister(AssessmentScored)
	prometheus.MustRegister(SubskillTransitions)
	prometheus.MustRegister(KnowledgeCheckAttempts)
}

func RecordAssessmentGenerated(purpose, source string) {
	AssessmentGenerated.WithLabelValues(purpose, source).Inc()
}

func RecordAssessmentScored(recommendation string) {
	AssessmentScored.WithLabelValues(recommendation).Inc()
}

func RecordSubskillTransition(to string) {
	SubskillTransitions.WithLabelValues(to).Inc()
}

func RecordKnowledgeCheckAttempt(outcome string) {
	KnowledgeCheckAttempts.WithLabelValues(outcome).Inc()
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
