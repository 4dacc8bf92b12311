package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turn metrics
	activeTurns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sdr_agent_active_turns",
		Help: "Number of conversation turns currently in flight",
	})

	totalTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdr_agent_turns_total",
		Help: "Total number of conversation turns processed",
	}, []string{"status"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sdr_agent_turn_duration_seconds",
		Help:    "End-to-end duration of conversation turns in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// Model metrics
	modelRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdr_agent_model_requests_total",
		Help: "Total number of model generate requests",
	}, []string{"model", "status"})

	modelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sdr_agent_model_latency_seconds",
		Help:    "Model generate latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	modelRetrySleeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdr_agent_model_retry_sleeps_total",
		Help: "Number of backoff sleeps taken while retrying the model",
	})

	modelFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdr_agent_model_fallbacks_total",
		Help: "Number of times the fallback model was attempted",
	})

	// Tool metrics
	toolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdr_agent_tool_invocations_total",
		Help: "Total number of tool invocations dispatched by the agent",
	}, []string{"tool", "status"})

	toolLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sdr_agent_tool_latency_seconds",
		Help:    "Tool invocation latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Scheduling metrics
	bookingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdr_agent_booking_outcomes_total",
		Help: "Booking attempts by outcome status",
	}, []string{"status"})

	calendarRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdr_agent_calendar_requests_total",
		Help: "Total number of Google Calendar API requests",
	}, []string{"operation", "status"})

	crmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdr_agent_crm_requests_total",
		Help: "Total number of CRM GraphQL requests",
	}, []string{"operation", "status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdr_agent_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// TurnMetrics tracks metrics for a single conversation turn
type TurnMetrics struct {
	turnID         string
	startTime      time.Time
	modelStartTime time.Time
	toolStartTime  time.Time
	mu             sync.Mutex
}

// NewTurnMetrics creates a new metrics tracker for a turn
func NewTurnMetrics(turnID string) *TurnMetrics {
	return &TurnMetrics{
		turnID:    turnID,
		startTime: time.Now(),
	}
}

// RecordTurnStart records the start of a turn
func (m *TurnMetrics) RecordTurnStart() {
	activeTurns.Inc()
}

// RecordTurnEnd records the end of a turn
func (m *TurnMetrics) RecordTurnEnd(success bool) {
	activeTurns.Dec()
	turnDuration.Observe(time.Since(m.startTime).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	totalTurns.WithLabelValues(status).Inc()
}

// RecordModelStart records the start of a model request
func (m *TurnMetrics) RecordModelStart() {
	m.mu.Lock()
	m.modelStartTime = time.Now()
	m.mu.Unlock()
}

// RecordModelEnd records the end of a model request
func (m *TurnMetrics) RecordModelEnd(model string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.modelStartTime.IsZero() {
		modelLatency.Observe(time.Since(m.modelStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	modelRequests.WithLabelValues(model, status).Inc()
}

// RecordToolStart records the start of a tool invocation
func (m *TurnMetrics) RecordToolStart() {
	m.mu.Lock()
	m.toolStartTime = time.Now()
	m.mu.Unlock()
}

// RecordToolEnd records the end of a tool invocation
func (m *TurnMetrics) RecordToolEnd(tool string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.toolStartTime.IsZero() {
		toolLatency.Observe(time.Since(m.toolStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	toolInvocations.WithLabelValues(tool, status).Inc()
}

// RecordError records an error
func (m *TurnMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordModelRetrySleep increments the retry backoff counter
func RecordModelRetrySleep() {
	modelRetrySleeps.Inc()
}

// RecordModelFallback increments the fallback-model counter
func RecordModelFallback() {
	modelFallbacks.Inc()
}

// RecordBookingOutcome records a booking attempt outcome
func RecordBookingOutcome(status string) {
	bookingOutcomes.WithLabelValues(status).Inc()
}

// RecordCalendarRequest records a calendar API request
func RecordCalendarRequest(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	calendarRequests.WithLabelValues(operation, status).Inc()
}

// RecordCRMRequest records a CRM API request
func RecordCRMRequest(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	crmRequests.WithLabelValues(operation, status).Inc()
}
