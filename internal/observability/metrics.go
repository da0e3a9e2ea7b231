package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tts_gateway_active_sessions",
		Help: "Number of live synthesis sessions",
	}, []string{"kind"}) // kind: "chunked" or "stream"

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_sessions_total",
		Help: "Total number of synthesis sessions",
	}, []string{"kind", "status"})

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tts_gateway_session_duration_seconds",
		Help:    "Duration of synthesis sessions in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	}, []string{"kind"})

	// Audio metrics
	framesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_frames_emitted_total",
		Help: "Total audio frames emitted to consumers",
	}, []string{"kind"})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_audio_bytes_total",
		Help: "Total synthesized audio bytes delivered",
	}, []string{"kind"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tts_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RecordSessionStart records a new synthesis session becoming live.
func RecordSessionStart(kind string) {
	activeSessions.WithLabelValues(kind).Inc()
}

// RecordSessionEnd records a session completing or failing.
func RecordSessionEnd(kind string, success bool, elapsed time.Duration) {
	activeSessions.WithLabelValues(kind).Dec()
	sessionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	sessionsTotal.WithLabelValues(kind, status).Inc()
}

// RecordFrame records one audio frame handed to a consumer.
func RecordFrame(kind string, bytes int) {
	framesEmitted.WithLabelValues(kind).Inc()
	audioBytes.WithLabelValues(kind).Add(float64(bytes))
}

// RecordError records an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
