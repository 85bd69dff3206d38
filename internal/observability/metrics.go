package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	queueSize    *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	dequeueTotal *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	activeSessions       prometheus.Gauge
	sessionsCreatedTotal prometheus.Counter

	eventPushTotal  *prometheus.CounterVec
	eventQueueDepth *prometheus.GaugeVec
	sseConsumers    prometheus.Gauge

	turnTotal    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	storeWriteDuration prometheus.Histogram
	storeReadDuration  prometheus.Histogram
	storeErrorsTotal   *prometheus.CounterVec

	wsClients prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			queueSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "task_queue_size",
					Help: "Current task queue size by lane.",
				},
				[]string{"lane"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "task_enqueue_total",
					Help: "Total enqueue operations by lane.",
				},
				[]string{"lane"},
			),
			dequeueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "task_dequeue_total",
					Help: "Total task completions by lane and status.",
				},
				[]string{"lane", "status"},
			),
			taskDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "task_duration_seconds",
					Help:    "Task execution duration in seconds by lane.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"lane"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current live session coordinator count.",
				},
			),
			sessionsCreatedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_created_total",
					Help: "Total sessions created since process start.",
				},
			),
			eventPushTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stream_event_push_total",
					Help: "Total stream events pushed by event name.",
				},
				[]string{"event"},
			),
			eventQueueDepth: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "stream_event_queue_depth",
					Help: "Undelivered stream events per session queue.",
				},
				[]string{"session_id"},
			),
			sseConsumers: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sse_consumers",
					Help: "Currently connected SSE consumers.",
				},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_turn_total",
					Help: "Total agent turns by provider and status.",
				},
				[]string{"provider", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_turn_duration_seconds",
					Help:    "Agent turn duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			storeWriteDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "store_write_duration_seconds",
					Help:    "Durable write duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			storeReadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "store_read_duration_seconds",
					Help:    "Durable read duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			storeErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "store_errors_total",
					Help: "Total store errors by operation.",
				},
				[]string{"op"},
			),
			wsClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_ws_clients",
					Help: "Currently connected websocket gateway clients.",
				},
			),
		}

		prometheus.MustRegister(
			m.queueSize,
			m.enqueueTotal,
			m.dequeueTotal,
			m.taskDuration,
			m.activeSessions,
			m.sessionsCreatedTotal,
			m.eventPushTotal,
			m.eventQueueDepth,
			m.sseConsumers,
			m.turnTotal,
			m.turnDuration,
			m.storeWriteDuration,
			m.storeReadDuration,
			m.storeErrorsTotal,
			m.wsClients,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordQueueEnqueue(lane string, queueSize int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(lane).Inc()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetQueueSize(lane string, queueSize int) {
	m := getMetrics()
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func RecordQueueCompletion(lane string, duration time.Duration, success bool, queueSize int) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.dequeueTotal.WithLabelValues(lane, status).Inc()
	m.taskDuration.WithLabelValues(lane).Observe(duration.Seconds())
	m.queueSize.WithLabelValues(lane).Set(float64(queueSize))
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionCreated() {
	getMetrics().sessionsCreatedTotal.Inc()
}

func RecordEventPush(event string) {
	getMetrics().eventPushTotal.WithLabelValues(event).Inc()
}

func SetEventQueueDepth(sessionID string, depth int) {
	getMetrics().eventQueueDepth.WithLabelValues(sessionID).Set(float64(depth))
}

func AddSSEConsumer(delta int) {
	getMetrics().sseConsumers.Add(float64(delta))
}

func RecordTurn(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.turnTotal.WithLabelValues(provider, status).Inc()
	m.turnDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordStoreWrite(duration time.Duration) {
	getMetrics().storeWriteDuration.Observe(duration.Seconds())
}

func RecordStoreRead(duration time.Duration) {
	getMetrics().storeReadDuration.Observe(duration.Seconds())
}

func RecordStoreError(op string) {
	getMetrics().storeErrorsTotal.WithLabelValues(op).Inc()
}

func AddWSClient(delta int) {
	getMetrics().wsClients.Add(float64(delta))
}
