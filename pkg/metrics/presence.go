package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PresenceMetrics records realtime session and broadcast activity.
type PresenceMetrics struct {
	sessions   *prometheus.GaugeVec
	broadcasts *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	feedings   *prometheus.CounterVec
}

// NewPresenceMetrics registers the realtime metrics on the provided registerer.
func NewPresenceMetrics(reg prometheus.Registerer) *PresenceMetrics {
	if reg == nil {
		return &PresenceMetrics{}
	}
	sessions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "presence_sessions",
		Help: "Currently connected realtime sessions.",
	}, []string{"state"})
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_broadcasts",
		Help: "Events fanned out to space members.",
	}, []string{"event"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_dropped_messages",
		Help: "Messages dropped because a client send queue was full.",
	}, []string{"event"})
	feedings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feeding_actions",
		Help: "Feeding actions recorded, labeled by streak outcome.",
	}, []string{"outcome"})
	reg.MustRegister(sessions, broadcasts, dropped, feedings)
	return &PresenceMetrics{
		sessions:   sessions,
		broadcasts: broadcasts,
		dropped:    dropped,
		feedings:   feedings,
	}
}

// SessionConnected marks one more session in the given state.
func (p *PresenceMetrics) SessionConnected(state string) {
	if p == nil || p.sessions == nil {
		return
	}
	p.sessions.WithLabelValues(normalizeLabel(state)).Inc()
}

// SessionDisconnected marks one fewer session in the given state.
func (p *PresenceMetrics) SessionDisconnected(state string) {
	if p == nil || p.sessions == nil {
		return
	}
	p.sessions.WithLabelValues(normalizeLabel(state)).Dec()
}

// IncBroadcast increments the fanout counter for the named event.
func (p *PresenceMetrics) IncBroadcast(event string) {
	if p == nil || p.broadcasts == nil {
		return
	}
	p.broadcasts.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncDropped increments the dropped-message counter for the named event.
func (p *PresenceMetrics) IncDropped(event string) {
	if p == nil || p.dropped == nil {
		return
	}
	p.dropped.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncFeeding increments the feeding counter with the given streak outcome.
func (p *PresenceMetrics) IncFeeding(outcome string) {
	if p == nil || p.feedings == nil {
		return
	}
	p.feedings.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
