package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fistoar/crm-realtime/types"
)

func TestDeliveredAndDropped(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Delivered(types.KindMessage, ChannelNative)
	m.Delivered(types.KindMessage, ChannelNative)
	m.Dropped(types.KindCalendarCreated, DropSelf)

	if got := testutil.ToFloat64(m.NotificationsDelivered.WithLabelValues("message", ChannelNative)); got != 2 {
		t.Errorf("expected 2 delivered, got %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationsDropped.WithLabelValues("calendar_created", DropSelf)); got != 1 {
		t.Errorf("expected 1 dropped, got %v", got)
	}
}

func TestTransitionSetsSingleActiveState(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Transition(types.StateConnecting)
	m.Transition(types.StateConnected)

	if got := testutil.ToFloat64(m.ConnectionState.WithLabelValues(string(types.StateConnected))); got != 1 {
		t.Errorf("connected gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConnectionState.WithLabelValues(string(types.StateConnecting))); got != 0 {
		t.Errorf("connecting gauge = %v, want 0", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Delivered(types.KindMessage, ChannelToast)
	m.Dropped(types.KindMessage, DropAudience)
	m.Transition(types.StateHidden)
}
