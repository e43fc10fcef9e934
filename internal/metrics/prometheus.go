// Package metrics exposes protocol counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arnej/rmilter"
)

// PrometheusCollector implements rmilter.Stats using Prometheus metrics.
type PrometheusCollector struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge

	commandsTotal       *prometheus.CounterVec
	responsesTotal      *prometheus.CounterVec
	decodeFailuresTotal prometheus.Counter
}

var _ rmilter.Stats = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmilter_connections_total",
			Help: "Total number of MTA connections opened.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rmilter_connections_active",
			Help: "Number of currently active MTA connections.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rmilter_commands_total",
			Help: "Total number of milter commands processed.",
		}, []string{"command"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rmilter_responses_total",
			Help: "Total number of action responses sent.",
		}, []string{"action"}),
		decodeFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmilter_decode_failures_total",
			Help: "Total number of frames that failed to decode.",
		}),
	}

	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.commandsTotal,
		c.responsesTotal,
		c.decodeFailuresTotal,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// CommandProcessed increments the command counter.
func (c *PrometheusCollector) CommandProcessed(cmd rmilter.Code) {
	c.commandsTotal.WithLabelValues(commandName(cmd)).Inc()
}

// ResponseSent increments the response counter.
func (c *PrometheusCollector) ResponseSent(action rmilter.Action) {
	c.responsesTotal.WithLabelValues(action.String()).Inc()
}

// DecodeFailure increments the decode failure counter.
func (c *PrometheusCollector) DecodeFailure() {
	c.decodeFailuresTotal.Inc()
}

func commandName(cmd rmilter.Code) string {
	switch cmd {
	case rmilter.CodeOptNeg:
		return "optneg"
	case rmilter.CodeMacro:
		return "macro"
	case rmilter.CodeConn:
		return "connect"
	case rmilter.CodeQuit:
		return "quit"
	case rmilter.CodeHelo:
		return "helo"
	case rmilter.CodeMail:
		return "mail"
	case rmilter.CodeRcpt:
		return "rcpt"
	case rmilter.CodeHeader:
		return "header"
	case rmilter.CodeEOH:
		return "eoh"
	case rmilter.CodeBody:
		return "body"
	case rmilter.CodeEOB:
		return "eob"
	case rmilter.CodeAbort:
		return "abort"
	}
	return "unknown"
}
