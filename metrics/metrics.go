// Package metrics exposes Prometheus counters for connection state and notification delivery.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fistoar/crm-realtime/types"
)

// Delivery channels.
const (
	ChannelNative = "native"
	ChannelToast  = "toast"
)

// Drop reasons.
const (
	DropSelf     = "self"
	DropAudience = "audience"
	DropSession  = "session"
	DropDecode   = "decode"
	DropFailed   = "failed"
)

// Metrics holds the collectors.
//
// Usage:
//
//	m := metrics.New(prometheus.NewRegistry())
//	m.Delivered(types.KindMessage, metrics.ChannelNative)
type Metrics struct {
	// NotificationsDelivered counts notifications shown.
	// Labels: kind, channel (native|toast)
	NotificationsDelivered *prometheus.CounterVec

	// NotificationsDropped counts events that produced no notification.
	// Labels: kind, reason (self|audience|session|decode|failed)
	NotificationsDropped *prometheus.CounterVec

	// ConnectionTransitions counts badge transitions by target state.
	ConnectionTransitions *prometheus.CounterVec

	// ConnectionState is 1 for the current badge state, 0 for the rest.
	ConnectionState *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide Metrics registered on the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NotificationsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_notifications_delivered_total",
			Help: "Notifications shown to the user, by event kind and channel.",
		}, []string{"kind", "channel"}),
		NotificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_notifications_dropped_total",
			Help: "Real-time events that produced no notification, by kind and reason.",
		}, []string{"kind", "reason"}),
		ConnectionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_connection_transitions_total",
			Help: "Connection badge transitions by target state.",
		}, []string{"state"}),
		ConnectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crm_connection_state",
			Help: "Current connection badge state (1 for the active state).",
		}, []string{"state"}),
	}
}

// Delivered records a shown notification. Safe on a nil receiver.
func (m *Metrics) Delivered(kind types.EventKind, channel string) {
	if m == nil {
		return
	}
	m.NotificationsDelivered.WithLabelValues(string(kind), channel).Inc()
}

// Dropped records a discarded event. Safe on a nil receiver.
func (m *Metrics) Dropped(kind types.EventKind, reason string) {
	if m == nil {
		return
	}
	m.NotificationsDropped.WithLabelValues(string(kind), reason).Inc()
}

// Transition records the badge entering state. Safe on a nil receiver.
func (m *Metrics) Transition(state types.ConnectionState) {
	if m == nil {
		return
	}
	m.ConnectionTransitions.WithLabelValues(string(state)).Inc()
	for _, s := range types.AllConnectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(string(s)).Set(v)
	}
}
