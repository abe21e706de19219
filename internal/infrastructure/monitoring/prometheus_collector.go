package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes coordinator metrics. It registers against the
// given registerer so tests can use isolated registries.
type PrometheusCollector struct {
	devicesConnected prometheus.Gauge
	sessionsActive   prometheus.Gauge

	messagesInbound  *prometheus.CounterVec
	eventsDropped    prometheus.Counter
	broadcastsTotal  prometheus.Counter
	broadcastFanout  prometheus.Histogram
	evictionsTotal   prometheus.Counter
	controlActions   *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	persistenceSkips prometheus.Counter
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		devicesConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classhub_devices_connected",
			Help: "Number of devices with a live channel",
		}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classhub_sessions_with_members",
			Help: "Number of sessions with at least one joined device",
		}),

		messagesInbound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classhub_messages_inbound_total",
			Help: "Inbound channel messages by type",
		}, []string{"type"}),

		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "classhub_events_dropped_total",
			Help: "Outbound events dropped because a channel was closed or its queue full",
		}),

		broadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "classhub_broadcasts_total",
			Help: "Total broadcast fan-outs performed",
		}),

		broadcastFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classhub_broadcast_fanout",
			Help:    "Number of channels that accepted each broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		evictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "classhub_heartbeat_evictions_total",
			Help: "Connections evicted by the heartbeat monitor",
		}),

		controlActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classhub_control_actions_total",
			Help: "Control actions issued, by delivery outcome",
		}, []string{"outcome"}),

		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classhub_registrations_total",
			Help: "Device registrations, by outcome (registered or replaced)",
		}, []string{"outcome"}),

		persistenceSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "classhub_persistence_failures_total",
			Help: "Best-effort persistence writes that failed and were logged",
		}),
	}
}

func (p *PrometheusCollector) DeviceConnected()    { p.devicesConnected.Inc() }
func (p *PrometheusCollector) DeviceDisconnected() { p.devicesConnected.Dec() }

func (p *PrometheusCollector) SessionActivated()   { p.sessionsActive.Inc() }
func (p *PrometheusCollector) SessionDeactivated() { p.sessionsActive.Dec() }

func (p *PrometheusCollector) RecordInboundMessage(msgType string) {
	p.messagesInbound.WithLabelValues(msgType).Inc()
}

func (p *PrometheusCollector) RecordDroppedEvent() {
	p.eventsDropped.Inc()
}

func (p *PrometheusCollector) RecordBroadcast(delivered int) {
	p.broadcastsTotal.Inc()
	p.broadcastFanout.Observe(float64(delivered))
}

func (p *PrometheusCollector) RecordEviction() {
	p.evictionsTotal.Inc()
}

func (p *PrometheusCollector) RecordControlAction(outcome string) {
	p.controlActions.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordRegistration(outcome string) {
	p.registrations.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordPersistenceFailure() {
	p.persistenceSkips.Inc()
}
