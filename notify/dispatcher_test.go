package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fistoar/crm-realtime/clock"
	"github.com/fistoar/crm-realtime/metrics"
	"github.com/fistoar/crm-realtime/session"
	"github.com/fistoar/crm-realtime/types"
)

const hiFromU2 = `{"senderId":"u2","senderName":"Meera","message":"Hi","messageId":"m1","receiverIds":["u1"]}`

type harness struct {
	d        *Dispatcher
	sub      *fakeSubscriber
	provider *fakeProvider
	player   *fakePlayer
	toaster  *fakeToaster
	clock    *clock.Fake
	metrics  *metrics.Metrics
}

func newHarness(user types.ID, perm types.Permission) *harness {
	h := &harness{
		sub:      newFakeSubscriber(),
		provider: &fakeProvider{permission: perm},
		player:   &fakePlayer{},
		toaster:  &fakeToaster{},
		clock:    clock.NewFake(),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	h.d = NewDispatcher(session.Static{UserID: user}, h.provider, h.player, h.toaster, h.clock, h.metrics, Options{
		Icon:  "logo.png",
		Sound: "ding.mp3",
	})
	h.d.RegisterHandlers(h.sub)
	return h
}

func TestMessageToRecipientShowsNotificationAndSound(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	h.sub.emit(types.EventMessage, hiFromU2)

	if len(h.provider.shown) != 1 {
		t.Fatalf("expected one notification, got %d", len(h.provider.shown))
	}
	n := h.provider.shown[0]
	if n.Title != "New Message" || !strings.Contains(n.Message, "Hi") {
		t.Errorf("unexpected notification %q / %q", n.Title, n.Message)
	}
	if n.Tag != "message-m1" || n.Icon != "logo.png" || len(n.Vibrate) != 3 {
		t.Errorf("rich fields missing: %+v", n)
	}
	if h.player.plays != 1 || h.player.volume != 0.5 {
		t.Errorf("expected one playback at 0.5, got %d at %v", h.player.plays, h.player.volume)
	}
	if len(h.toaster.toasts) != 0 {
		t.Errorf("no toast expected when permission granted, got %v", h.toaster.toasts)
	}
}

func TestNumericTimestampStillNotifies(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	h.sub.emit(types.EventMessage, `{"senderId":"u2","senderName":"Meera","message":"Hi","messageId":"m1","receiverIds":["u1"],"timestamp":1700000000000}`)
	h.sub.emit(types.EventCalendarCreated, `{"eventId":"e1","title":"Standup","actorId":"u2","timestamp":1700000000000}`)

	if len(h.provider.shown) != 2 {
		t.Fatalf("expected two notifications, got %d", len(h.provider.shown))
	}
	if h.player.plays != 2 {
		t.Errorf("plays = %d, want 2", h.player.plays)
	}
}

func TestOwnMessageIsDropped(t *testing.T) {
	h := newHarness("u2", types.PermissionGranted)
	h.sub.emit(types.EventMessage, hiFromU2)

	if len(h.provider.shown) != 0 || h.player.plays != 0 || len(h.toaster.toasts) != 0 {
		t.Fatalf("self-authored message produced output: %d shown, %d plays, %d toasts",
			len(h.provider.shown), h.player.plays, len(h.toaster.toasts))
	}
	if got := testutil.ToFloat64(h.metrics.NotificationsDropped.WithLabelValues("message", metrics.DropSelf)); got != 1 {
		t.Errorf("expected self drop recorded, got %v", got)
	}
}

func TestReceiverListFiltersAudience(t *testing.T) {
	h := newHarness("u3", types.PermissionGranted)
	h.sub.emit(types.EventMessage, hiFromU2)
	if len(h.provider.shown) != 0 {
		t.Fatal("user outside receiver list must not be notified")
	}

	h = newHarness("u3", types.PermissionGranted)
	h.sub.emit(types.EventMessage, `{"senderId":"u2","message":"broadcast"}`)
	if len(h.provider.shown) != 1 {
		t.Fatal("message without receiver list should notify")
	}
}

func TestNumericIdsCompareAsStrings(t *testing.T) {
	h := newHarness("7", types.PermissionGranted)
	h.sub.emit(types.EventMessage, `{"senderId":7,"message":"note to self"}`)
	if len(h.provider.shown) != 0 {
		t.Fatal("numeric sender id equal to the user must be dropped")
	}
}

func TestCalendarSelfActorDropped(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	h.sub.emit(types.EventCalendarUpdated, `{"eventId":"e1","title":"Review","actorId":"u1"}`)
	if len(h.provider.shown) != 0 {
		t.Fatal("own calendar change must not notify")
	}
	h.sub.emit(types.EventCalendarDeleted, `{"eventId":"e1","title":"Review","actorId":"u4","actorName":"Kiran","reason":"moved"}`)
	if len(h.provider.shown) != 1 || h.provider.shown[0].Title != TitleCalendarDeleted {
		t.Fatalf("expected deletion notification, got %+v", h.provider.shown)
	}
}

func TestDeniedFallsBackToToastWithOneTimeHint(t *testing.T) {
	h := newHarness("u1", types.PermissionDenied)
	h.sub.emit(types.EventMessage, hiFromU2)

	if len(h.provider.shown) != 0 || h.player.plays != 0 {
		t.Fatal("no native notification or sound when denied")
	}
	if len(h.toaster.toasts) != 2 {
		t.Fatalf("expected toast plus hint, got %v", h.toaster.toasts)
	}
	first := h.toaster.toasts[0]
	if first.title != "New Message" || !strings.Contains(first.message, "Meera") {
		t.Errorf("unexpected fallback toast %+v", first)
	}
	if h.toaster.toasts[1].title != TitleEnableHint {
		t.Errorf("expected enable hint, got %+v", h.toaster.toasts[1])
	}

	h.sub.emit(types.EventMessage, `{"senderId":"u2","senderName":"Meera","message":"again","messageId":"m2"}`)
	if len(h.toaster.toasts) != 3 {
		t.Fatalf("hint must be shown only once, got %v", h.toaster.toasts)
	}
}

func TestRegisterHandlersIsIdempotent(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	h.d.RegisterHandlers(h.sub)

	for _, name := range EventNames {
		if n := h.sub.count(name); n != 1 {
			t.Errorf("%s: %d handlers bound, want 1", name, n)
		}
	}
	h.sub.emit(types.EventMessage, hiFromU2)
	if len(h.provider.shown) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(h.provider.shown))
	}

	h.d.UnregisterHandlers()
	for _, name := range EventNames {
		if n := h.sub.count(name); n != 0 {
			t.Errorf("%s still has %d handlers after unregister", name, n)
		}
	}
}

func TestAutoDismissAfterTenSeconds(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	h.sub.emit(types.EventMessage, hiFromU2)

	h.clock.Advance(AutoDismiss - 1)
	if h.provider.handles[0].closed != 0 {
		t.Fatal("closed before the dismiss delay")
	}
	h.clock.Advance(1)
	if h.provider.handles[0].closed != 1 {
		t.Fatal("expected auto-dismiss after 10s")
	}
}

func TestSameTagReplacesPrevious(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	h.sub.emit(types.EventCalendarUpdated, `{"eventId":"e1","title":"Review","actorId":"u4"}`)
	h.sub.emit(types.EventCalendarUpdated, `{"eventId":"e1","title":"Review v2","actorId":"u4"}`)

	if len(h.provider.handles) != 2 {
		t.Fatalf("expected two shows, got %d", len(h.provider.handles))
	}
	if h.provider.handles[0].closed != 1 {
		t.Fatal("older notification with the same tag should be closed")
	}
	if h.provider.handles[1].closed != 0 {
		t.Fatal("newer notification must stay open")
	}
}

func TestClickFocusesAndCloses(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	focused := 0
	h.d.opts.Focus = func() { focused++ }
	h.sub.emit(types.EventMessage, hiFromU2)

	h.provider.shown[0].OnClick()
	if focused != 1 || h.provider.handles[0].closed != 1 {
		t.Fatalf("click should focus and close, focused=%d closed=%d", focused, h.provider.handles[0].closed)
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	h := newHarness("u1", types.PermissionGranted)
	h.player.err = errPlayback
	h.sub.emit(types.EventMessage, hiFromU2)
	if len(h.provider.shown) != 1 {
		t.Fatal("playback failure must not block the notification")
	}

	h = newHarness("u1", types.PermissionGranted)
	h.provider.showErr = errors.New("icon missing")
	h.sub.emit(types.EventMessage, hiFromU2)
	if h.player.plays != 0 || len(h.toaster.toasts) != 0 {
		t.Fatal("failed notification should be skipped silently")
	}

	h.sub.emit(types.EventMessage, `not json`)
	if got := testutil.ToFloat64(h.metrics.NotificationsDropped.WithLabelValues("message", metrics.DropDecode)); got != 1 {
		t.Errorf("expected decode drop, got %v", got)
	}
}

func TestMissingSessionDropsEvent(t *testing.T) {
	h := newHarness("", types.PermissionGranted)
	h.sub.emit(types.EventMessage, hiFromU2)
	if len(h.provider.shown) != 0 {
		t.Fatal("event without a session must be dropped")
	}
}

func TestNegotiateUndetermined(t *testing.T) {
	h := newHarness("u1", types.PermissionDefault)
	h.provider.answer = types.PermissionGranted
	var recorded types.Permission
	h.d.opts.OnPermission = func(p types.Permission) { recorded = p }

	h.d.Negotiate(context.Background())
	h.d.Negotiate(context.Background())

	if h.provider.requests != 1 {
		t.Fatalf("permission must be requested once, got %d", h.provider.requests)
	}
	if recorded != types.PermissionGranted {
		t.Errorf("OnPermission got %q", recorded)
	}
	if len(h.toaster.toasts) != 1 || h.toaster.toasts[0].title != TitleEnabled {
		t.Fatalf("expected confirmation toast, got %v", h.toaster.toasts)
	}
}

func TestNegotiateRefused(t *testing.T) {
	h := newHarness("u1", types.PermissionDefault)
	h.provider.answer = types.PermissionDenied
	h.d.Negotiate(context.Background())
	if len(h.toaster.toasts) != 1 || h.toaster.toasts[0].title != TitleBlocked {
		t.Fatalf("expected remediation hint, got %v", h.toaster.toasts)
	}
}

func TestNegotiateAlreadyDeniedDoesNotPrompt(t *testing.T) {
	h := newHarness("u1", types.PermissionDenied)
	h.d.Negotiate(context.Background())
	if h.provider.requests != 0 {
		t.Fatal("denied permission must not be re-requested")
	}
	if len(h.toaster.toasts) != 1 || h.toaster.toasts[0].message != TextBlockedManual {
		t.Fatalf("expected manual steps hint, got %v", h.toaster.toasts)
	}
}

func TestNilProviderUsesToasts(t *testing.T) {
	toaster := &fakeToaster{}
	d := NewDispatcher(session.Static{UserID: "u1"}, nil, nil, toaster, clock.NewFake(), nil, Options{})
	d.Handle(types.KindMessage, []byte(hiFromU2))
	if len(toaster.toasts) == 0 || toaster.toasts[0].title != TitleMessage {
		t.Fatalf("expected toast fallback, got %v", toaster.toasts)
	}
	d.Negotiate(context.Background())
}
