package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"helpdesk/internal/domain/entity"
)

// Metrics groups the collectors of the messaging core. A nil *Metrics is valid
// and records nothing, which keeps unit tests free of registry plumbing.
type Metrics struct {
	registry *prometheus.Registry

	messagesAppended  *prometheus.CounterVec
	receiptsUpdated   *prometheus.CounterVec
	wsConnections     prometheus.Gauge
	wsEvents          *prometheus.CounterVec
	onlineConversations prometheus.Gauge
	pushDeliveries    *prometheus.CounterVec
	autoReplies       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		messagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "messages_appended_total",
			Help:      "Messages appended to conversation ledgers, by sender role.",
		}, []string{"role"}),
		receiptsUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "receipts_updated_total",
			Help:      "Messages whose receipt status moved forward, by new status.",
		}, []string{"status"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "helpdesk",
			Name:      "websocket_connections",
			Help:      "Currently registered websocket connections.",
		}),
		wsEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "websocket_events_total",
			Help:      "Inbound websocket events, by type and outcome.",
		}, []string{"type", "outcome"}),
		onlineConversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "helpdesk",
			Name:      "online_conversations",
			Help:      "Distinct conversations with a live non-support connection.",
		}),
		pushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "push_deliveries_total",
			Help:      "Push notification attempts, by audience and result.",
		}, []string{"audience", "result"}),
		autoReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "auto_replies_total",
			Help:      "Auto-reply jobs, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.messagesAppended,
		m.receiptsUpdated,
		m.wsConnections,
		m.wsEvents,
		m.onlineConversations,
		m.pushDeliveries,
		m.autoReplies,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessageAppended(role entity.Role) {
	if m == nil {
		return
	}
	m.messagesAppended.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) ReceiptsUpdated(status entity.MessageStatus, n int) {
	if m == nil {
		return
	}
	m.receiptsUpdated.WithLabelValues(string(status)).Add(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}

func (m *Metrics) Event(eventType, outcome string) {
	if m == nil {
		return
	}
	m.wsEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) OnlineConversations(n int) {
	if m == nil {
		return
	}
	m.onlineConversations.Set(float64(n))
}

func (m *Metrics) PushDelivery(audience, result string) {
	if m == nil {
		return
	}
	m.pushDeliveries.WithLabelValues(audience, result).Inc()
}

func (m *Metrics) AutoReply(outcome string) {
	if m == nil {
		return
	}
	m.autoReplies.WithLabelValues(outcome).Inc()
}
