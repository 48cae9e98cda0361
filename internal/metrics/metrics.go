package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "odd"

var (
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Bridge connection state (0 disconnected, 1 connecting, 2 connected, 3 error)",
		},
	)
	dialAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dial_attempts_total",
			Help:      "Transport dial attempts, including reconnects",
		},
	)
	reconnectsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect timers armed after a lost or failed connection",
		},
	)
	framesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames handed to the router",
		},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames that could not be decoded",
		},
		[]string{"reason"},
	)
	messagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Decoded messages routed, by variant",
		},
		[]string{"variant"},
	)
	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Outbound send calls by result",
		},
		[]string{"result"},
	)
	logLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "message_log_length",
			Help:      "Entries currently held by the message log",
		},
	)
	recorderRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_rows_total",
			Help:      "Rows handled by the recorder, by result",
		},
		[]string{"table", "result"},
	)
)

// Collectors exposes every collector of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		connectionState,
		dialAttempts,
		reconnectsScheduled,
		framesReceived,
		decodeErrors,
		messagesRouted,
		sends,
		logLength,
		recorderRows,
	}
}

// Registry builds a registry with the package collectors plus the Go
// runtime and process collectors.
func Registry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, collector := range Collectors() {
		registry.MustRegister(collector)
	}
	return registry
}

// Handler exposes the registry over HTTP.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// SetConnectionState records the numeric connection state.
func SetConnectionState(code int) {
	connectionState.Set(float64(code))
}

// DialAttempt counts one dial.
func DialAttempt() {
	dialAttempts.Inc()
}

// ReconnectScheduled counts one armed reconnect timer.
func ReconnectScheduled() {
	reconnectsScheduled.Inc()
}

// FrameReceived counts one inbound frame.
func FrameReceived() {
	framesReceived.Inc()
}

// DecodeError counts one decode failure.
func DecodeError(reason string) {
	decodeErrors.WithLabelValues(reason).Inc()
}

// MessageRouted counts one routed message.
func MessageRouted(variant string) {
	messagesRouted.WithLabelValues(variant).Inc()
}

// Send counts one outbound send call.
func Send(result string) {
	sends.WithLabelValues(result).Inc()
}

// SetLogLength records the message log length.
func SetLogLength(n int) {
	logLength.Set(float64(n))
}

// RecorderRows counts rows handled by the recorder.
func RecorderRows(table, result string, n int) {
	recorderRows.WithLabelValues(table, result).Add(float64(n))
}
