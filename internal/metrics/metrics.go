package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

var connectionStates = []string{
	core.StateDisconnected.String(),
	core.StateConnecting.String(),
	core.StateConnected.String(),
	core.StateReconnecting.String(),
	core.StateFailed.String(),
}

// Metrics exports client counters to Prometheus.
type Metrics struct {
	MessagesSent      prometheus.Counter
	MessagesReceived  prometheus.Counter
	SendsRateLimited  prometheus.Counter
	ReconnectAttempts prometheus.Counter
	ConnectionState   *prometheus.GaugeVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var _ core.Recorder = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_messages_sent_total",
			Help: "Chat messages accepted for sending",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_messages_received_total",
			Help: "Chat messages received from other users",
		}),
		SendsRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_sends_rate_limited_total",
			Help: "Sends refused by the local rate limiter",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wirechat_reconnect_attempts_total",
			Help: "Automatic reconnect attempts",
		}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wirechat_connection_state",
			Help: "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wirechat_status_requests_total",
			Help: "Requests served by the status endpoint",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wirechat_status_request_duration_seconds",
			Help:    "Status endpoint request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		m.MessagesSent,
		m.MessagesReceived,
		m.SendsRateLimited,
		m.ReconnectAttempts,
		m.ConnectionState,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	m.StateChanged(core.StateDisconnected.String())
	return m
}

func (m *Metrics) MessageSent()      { m.MessagesSent.Inc() }
func (m *Metrics) MessageReceived()  { m.MessagesReceived.Inc() }
func (m *Metrics) ReconnectAttempt() { m.ReconnectAttempts.Inc() }

// RateLimited counts a refused send.
func (m *Metrics) RateLimited() { m.SendsRateLimited.Inc() }

// StateChanged flips the state gauge so exactly one state reads 1.
func (m *Metrics) StateChanged(state string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

// GinMiddleware records request counts and latency for the status endpoint.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		m.HTTPRequestsTotal.With(labels).Inc()
		m.HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
