// Package metrics exposes server activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marionette"

// Metrics holds the collectors of a server. A nil *Metrics records
// nothing.
type Metrics struct {
	commands       *prometheus.CounterVec
	answers        *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	stale          *prometheus.CounterVec
	remoteness     prometheus.Counter
	dialogs        prometheus.Counter
	connections    prometheus.Gauge
	connectionsAll prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_dispatched_total",
			Help:      "Commands received from clients.",
		}, []string{"command"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_answered_total",
			Help:      "Commands answered, by outcome.",
		}, []string{"command", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time from receiving a command to answering it.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"command"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Replies dropped because they did not match the command in flight.",
		}, []string{"reason"}),
		remoteness: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remoteness_changes_total",
			Help:      "Tabs whose content process was replaced.",
		}),
		dialogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_interruptions_total",
			Help:      "Commands released because a modal dialog opened.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open client connections.",
		}),
		connectionsAll: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Client connections accepted.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.commands, m.answers, m.latency, m.stale,
		m.remoteness, m.dialogs, m.connections, m.connectionsAll,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CommandDispatched counts a command handed to its handler.
func (m *Metrics) CommandDispatched(command string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command).Inc()
}

// CommandAnswered records the answer to a command and its latency.
func (m *Metrics) CommandAnswered(command, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(command, outcome).Inc()
	m.latency.WithLabelValues(command).Observe(d.Seconds())
}

// StaleResponse counts a dropped reply.
func (m *Metrics) StaleResponse(reason string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(reason).Inc()
}

// RemotenessChange counts a content process swap.
func (m *Metrics) RemotenessChange() {
	if m == nil {
		return
	}
	m.remoteness.Inc()
}

// DialogInterrupt counts a command released by a dialog.
func (m *Metrics) DialogInterrupt() {
	if m == nil {
		return
	}
	m.dialogs.Inc()
}

// ConnectionOpened counts an accepted client.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.connectionsAll.Inc()
}

// ConnectionClosed counts a client going away.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
