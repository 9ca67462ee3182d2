// Package metrics defines the optional recorder interface the transport
// eventloop reports state transitions to, and a Prometheus-backed
// implementation. The eventloop never depends on Prometheus directly:
// every call site takes a Recorder and is nil-safe when none is supplied,
// matching spec's "metric registries... observed via an optional
// recorder interface."
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives gauge/counter updates from the transport. Most calls
// come from the eventloop goroutine, but the outbound and dial queue-size
// increments come from Handle callers' goroutines and the ongoing-dial
// counts from each dial's own goroutine, so implementations must be safe
// for concurrent use. Noop and Metrics both are.
type Recorder interface {
	ActiveConnectionsInc()
	ActiveConnectionsDec()
	DialQueueSizeInc()
	DialQueueSizeDec()
	InboundMsgQueueSizeInc()
	InboundMsgQueueSizeDec()
	OutboundMsgQueueSizeInc()
	OutboundMsgQueueSizeDec()
	OngoingDialsInc()
	OngoingDialsDec()
	OngoingQueriesInc()
	OngoingQueriesDec()
	PendingDialsInc()
	PendingDialsDec()
	PendingMessagesInc()
	PendingMessagesDecBy(n int)
	SubscribedTopicsInc()
	SubscribedTopicsDec()
}

// Noop is a Recorder that discards every update. Used when the caller
// did not configure a registry.
type Noop struct{}

func (Noop) ActiveConnectionsInc()      {}
func (Noop) ActiveConnectionsDec()      {}
func (Noop) DialQueueSizeInc()          {}
func (Noop) DialQueueSizeDec()          {}
func (Noop) InboundMsgQueueSizeInc()    {}
func (Noop) InboundMsgQueueSizeDec()    {}
func (Noop) OutboundMsgQueueSizeInc()   {}
func (Noop) OutboundMsgQueueSizeDec()   {}
func (Noop) OngoingDialsInc()           {}
func (Noop) OngoingDialsDec()           {}
func (Noop) OngoingQueriesInc()         {}
func (Noop) OngoingQueriesDec()         {}
func (Noop) PendingDialsInc()           {}
func (Noop) PendingDialsDec()           {}
func (Noop) PendingMessagesInc()        {}
func (Noop) PendingMessagesDecBy(int)   {}
func (Noop) SubscribedTopicsInc()       {}
func (Noop) SubscribedTopicsDec()       {}

// Metrics is a Prometheus-backed Recorder, isolated on its own registry
// so it never collides with a host application's default registry.
type Metrics struct {
	Registry *prometheus.Registry

	activeConnections *prometheus.GaugeVec
	dialQueueSize      prometheus.Gauge
	inboundMsgQueue    prometheus.Gauge
	outboundMsgQueue   prometheus.Gauge
	ongoingDials       prometheus.Gauge
	ongoingQueries     prometheus.Gauge
	pendingDials       prometheus.Gauge
	pendingMessages    prometheus.Gauge
	subscribedTopics   prometheus.Gauge
}

// New creates a Metrics instance with all collectors registered on an
// isolated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		activeConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p2p_active_connections",
			Help: "Number of currently established connections.",
		}, []string{}),
		dialQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_dial_queue_size",
			Help: "Number of dial commands queued on the handle but not yet processed.",
		}),
		inboundMsgQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_inbound_msg_queue_size",
			Help: "Number of inbound messages buffered for the consumer.",
		}),
		outboundMsgQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_outbound_msg_queue_size",
			Help: "Number of outbound messages queued on the handle but not yet processed.",
		}),
		ongoingDials: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_ongoing_dials",
			Help: "Number of dials submitted to the swarm awaiting Established/Failed.",
		}),
		ongoingQueries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_ongoing_queries",
			Help: "Number of DHT GetClosestPeers queries in flight.",
		}),
		pendingDials: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_pending_dials",
			Help: "Number of dial waiters queued behind an unresolved DHT lookup.",
		}),
		pendingMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_pending_messages",
			Help: "Number of unicast payloads buffered awaiting destination resolution.",
		}),
		subscribedTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p2p_subscribed_topics",
			Help: "Number of currently subscribed gossip topics.",
		}),
	}
	reg.MustRegister(
		m.activeConnections,
		m.dialQueueSize,
		m.inboundMsgQueue,
		m.outboundMsgQueue,
		m.ongoingDials,
		m.ongoingQueries,
		m.pendingDials,
		m.pendingMessages,
		m.subscribedTopics,
	)
	return m
}

// Handler returns an http.Handler serving this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ActiveConnectionsInc()    { m.activeConnections.WithLabelValues().Inc() }
func (m *Metrics) ActiveConnectionsDec()    { m.activeConnections.WithLabelValues().Dec() }
func (m *Metrics) DialQueueSizeInc()        { m.dialQueueSize.Inc() }
func (m *Metrics) DialQueueSizeDec()        { m.dialQueueSize.Dec() }
func (m *Metrics) InboundMsgQueueSizeInc()  { m.inboundMsgQueue.Inc() }
func (m *Metrics) InboundMsgQueueSizeDec()  { m.inboundMsgQueue.Dec() }
func (m *Metrics) OutboundMsgQueueSizeInc() { m.outboundMsgQueue.Inc() }
func (m *Metrics) OutboundMsgQueueSizeDec() { m.outboundMsgQueue.Dec() }
func (m *Metrics) OngoingDialsInc()         { m.ongoingDials.Inc() }
func (m *Metrics) OngoingDialsDec()         { m.ongoingDials.Dec() }
func (m *Metrics) OngoingQueriesInc()       { m.ongoingQueries.Inc() }
func (m *Metrics) OngoingQueriesDec()       { m.ongoingQueries.Dec() }
func (m *Metrics) PendingDialsInc()         { m.pendingDials.Inc() }
func (m *Metrics) PendingDialsDec()         { m.pendingDials.Dec() }
func (m *Metrics) PendingMessagesInc()      { m.pendingMessages.Inc() }
func (m *Metrics) PendingMessagesDecBy(n int) {
	m.pendingMessages.Sub(float64(n))
}
func (m *Metrics) SubscribedTopicsInc() { m.subscribedTopics.Inc() }
func (m *Metrics) SubscribedTopicsDec() { m.subscribedTopics.Dec() }
