package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// realtime gateway.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	wsConnections   prometheus.Gauge
	chatMessages    prometheus.Counter
	attendanceTotal *prometheus.CounterVec
	syncFailures    prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Currently open realtime gateway connections",
	})

	chatMessages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total chat messages persisted",
	})

	attendanceTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_records_total",
		Help: "Total attendance records created by status",
	}, []string{"status"})

	syncFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_sync_failures_total",
		Help: "Total failed external calendar sync attempts",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, wsConnections, chatMessages, attendanceTotal, syncFailures, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		wsConnections:   wsConnections,
		chatMessages:    chatMessages,
		attendanceTotal: attendanceTotal,
		syncFailures:    syncFailures,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ConnectionOpened increments the live gateway connection gauge.
func (m *MetricsService) ConnectionOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

// ConnectionClosed decrements the live gateway connection gauge.
func (m *MetricsService) ConnectionClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}

// MessageSent counts a persisted chat message.
func (m *MetricsService) MessageSent() {
	if m != nil {
		m.chatMessages.Inc()
	}
}

// AttendanceRecorded counts a created attendance record.
func (m *MetricsService) AttendanceRecorded(status string) {
	if m != nil {
		m.attendanceTotal.WithLabelValues(status).Inc()
	}
}

// SyncFailed counts a failed external calendar sync.
func (m *MetricsService) SyncFailed() {
	if m != nil {
		m.syncFailures.Inc()
	}
}
