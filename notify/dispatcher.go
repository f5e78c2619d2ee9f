// Package notify turns inbound real-time events into desktop notifications, with in-app
// toasts as the fallback when desktop notifications are not permitted.
package notify

import (
	"context"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/fistoar/crm-realtime/clock"
	"github.com/fistoar/crm-realtime/metrics"
	"github.com/fistoar/crm-realtime/session"
	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

const (
	// AutoDismiss closes notifications that do not require interaction.
	AutoDismiss = 10 * time.Second
	// activeTagTTL bounds how long a tag is remembered for replacement.
	activeTagTTL = 5 * time.Minute
)

// Fallback and permission toasts.
const (
	TitleEnableHint   = "Enable Notifications"
	TextEnableHint    = "Turn on desktop notifications to get alerts while the CRM is in the background."
	TitleEnabled      = "Notifications Enabled"
	TextEnabled       = "You will now receive desktop notifications for messages and calendar events."
	TitleBlocked      = "Notifications Blocked"
	TextBlockedManual = "Desktop notifications are blocked. To enable them: open your system notification settings, " +
		"find the CRM notifier, allow notifications, then restart the notifier."
)

// DefaultVibrate is the vibration pattern sent with every native notification.
var DefaultVibrate = []int{200, 100, 200}

// EventNames are the events a Dispatcher binds.
var EventNames = []string{
	types.EventMessage,
	types.EventCalendarCreated,
	types.EventCalendarUpdated,
	types.EventCalendarDeleted,
}

// Subscriber is the part of the connection handle the dispatcher binds to.
type Subscriber interface {
	On(event string, h types.EventHandler)
	Off(event string)
}

// Options are the display assets and hooks of native notifications.
type Options struct {
	Icon   string
	Image  string
	Sound  string
	Volume float64
	AppURL string

	// Focus brings the application to the front when a notification is clicked.
	Focus func()
	// OnPermission is told the outcome of a permission request.
	OnPermission func(types.Permission)
}

// Dispatcher filters events and delivers notifications.
type Dispatcher struct {
	session  session.Reader
	provider Provider // nil disables native notifications
	player   Player
	toaster  Toaster
	sched    clock.Scheduler
	metrics  *metrics.Metrics
	opts     Options

	active *ttlworker.Cache[string, Shown]

	mu         sync.Mutex
	sub        Subscriber
	hintShown  bool
	negotiated bool
}

// NewDispatcher wires a Dispatcher. provider, player, toaster and mt may be nil.
func NewDispatcher(sess session.Reader, provider Provider, player Player, toaster Toaster, sched clock.Scheduler, mt *metrics.Metrics, opts Options) *Dispatcher {
	if sched == nil {
		sched = clock.Real{}
	}
	if opts.Volume <= 0 {
		opts.Volume = 0.5
	}
	return &Dispatcher{
		session:  sess,
		provider: provider,
		player:   player,
		toaster:  toaster,
		sched:    sched,
		metrics:  mt,
		opts:     opts,
		active:   ttlworker.NewCache[string, Shown](activeTagTTL),
	}
}

// RegisterHandlers binds exactly one handler per event name on sub, detaching any
// earlier binding first. Calling it again is harmless.
func (d *Dispatcher) RegisterHandlers(sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range EventNames {
		kind, _ := types.KindForEvent(name)
		sub.Off(name)
		sub.On(name, d.handler(kind))
	}
	d.sub = sub
	tool.DefaultLogger.Debugf("[Notify] handlers bound for %v", EventNames)
}

// UnregisterHandlers detaches every handler bound by RegisterHandlers.
func (d *Dispatcher) UnregisterHandlers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sub == nil {
		return
	}
	for _, name := range EventNames {
		d.sub.Off(name)
	}
	d.sub = nil
}

func (d *Dispatcher) handler(kind types.EventKind) types.EventHandler {
	return func(payload []byte) {
		d.Handle(kind, payload)
	}
}

// Handle filters and delivers one event. It never panics into the transport.
func (d *Dispatcher) Handle(kind types.EventKind, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			tool.DefaultLogger.Errorf("[Notify] handler for %s panicked: %v", kind, r)
			d.metrics.Dropped(kind, metrics.DropFailed)
		}
	}()

	sess, err := d.session.Current()
	if err != nil {
		tool.DefaultLogger.Warnf("[Notify] dropping %s: %v", kind, err)
		d.metrics.Dropped(kind, metrics.DropSession)
		return
	}

	now := d.sched.Now()
	var content Content
	switch kind {
	case types.KindMessage:
		p, err := DecodeMessage(payload)
		if err != nil {
			tool.DefaultLogger.Warnf("[Notify] %v", err)
			d.metrics.Dropped(kind, metrics.DropDecode)
			return
		}
		if !p.SenderID.Empty() && p.SenderID == sess.UserID {
			d.metrics.Dropped(kind, metrics.DropSelf)
			return
		}
		if len(p.ReceiverIDs) > 0 && !p.HasReceiver(sess.UserID) {
			d.metrics.Dropped(kind, metrics.DropAudience)
			return
		}
		content = FormatMessage(p, now)
	default:
		p, err := DecodeCalendar(payload)
		if err != nil {
			tool.DefaultLogger.Warnf("[Notify] %v", err)
			d.metrics.Dropped(kind, metrics.DropDecode)
			return
		}
		if !p.ActorID.Empty() && p.ActorID == sess.UserID {
			d.metrics.Dropped(kind, metrics.DropSelf)
			return
		}
		content = FormatCalendar(kind, p, now)
	}

	d.deliver(content)
}

func (d *Dispatcher) deliver(c Content) {
	if d.provider != nil && d.provider.Permission() == types.PermissionGranted {
		if err := d.showNative(c); err != nil {
			tool.DefaultLogger.Errorf("[Notify] failed to show %s notification: %v", c.Kind, err)
			d.metrics.Dropped(c.Kind, metrics.DropFailed)
			return
		}
		d.metrics.Delivered(c.Kind, metrics.ChannelNative)
		return
	}
	d.showToast(c)
	d.metrics.Delivered(c.Kind, metrics.ChannelToast)
}

func (d *Dispatcher) showNative(c Content) error {
	now := d.sched.Now()
	n := &types.Notification{
		ID:        tool.GenerateRandomUUID(),
		Type:      string(c.Kind),
		Title:     c.Title,
		Message:   c.Body,
		Data:      c.Data,
		Tag:       c.Tag,
		Icon:      d.opts.Icon,
		Image:     d.opts.Image,
		Vibrate:   DefaultVibrate,
		Timestamp: now.UnixMilli(),
		URL:       d.opts.AppURL,
	}

	// a newer notification with the same tag replaces the old one
	if prev := d.active.Get(c.Tag); prev != nil {
		if err := prev.Close(); err != nil {
			tool.DefaultLogger.Debugf("[Notify] closing replaced notification %s: %v", c.Tag, err)
		}
		d.active.Delete(c.Tag)
	}

	var shown Shown
	n.OnClick = func() {
		if d.opts.Focus != nil {
			d.opts.Focus()
		}
		if shown != nil {
			d.dismiss(c.Tag, shown)
		}
	}

	shown, err := d.provider.Show(n)
	if err != nil {
		return err
	}
	d.active.Set(c.Tag, shown)

	if !n.RequireInteraction {
		d.sched.AfterFunc(AutoDismiss, func() { d.dismiss(c.Tag, shown) })
	}

	if d.player != nil && d.opts.Sound != "" {
		if err := d.player.Play(d.opts.Sound, d.opts.Volume); err != nil {
			tool.DefaultLogger.Warnf("[Notify] sound playback failed: %v", err)
		}
	}
	return nil
}

func (d *Dispatcher) dismiss(tag string, shown Shown) {
	if d.active.Get(tag) == shown {
		d.active.Delete(tag)
	}
	if err := shown.Close(); err != nil {
		tool.DefaultLogger.Debugf("[Notify] closing notification %s: %v", tag, err)
	}
}

func (d *Dispatcher) showToast(c Content) {
	if d.toaster == nil {
		tool.DefaultLogger.Infof("[Notify] %s: %s", c.Title, c.Toast)
		return
	}
	d.toaster.Toast(c.Title, c.Toast)

	d.mu.Lock()
	first := !d.hintShown
	d.hintShown = true
	d.mu.Unlock()
	if first {
		d.toaster.Toast(TitleEnableHint, TextEnableHint)
	}
}

// Negotiate runs the permission flow once per Dispatcher: an undetermined permission is
// requested, a denied one gets the manual remediation hint without prompting again.
func (d *Dispatcher) Negotiate(ctx context.Context) {
	d.mu.Lock()
	if d.negotiated || d.provider == nil {
		d.mu.Unlock()
		return
	}
	d.negotiated = true
	d.mu.Unlock()

	switch d.provider.Permission() {
	case types.PermissionGranted:
		return
	case types.PermissionDenied:
		d.toast(TitleBlocked, TextBlockedManual)
		return
	}

	perm, err := d.provider.RequestPermission(ctx)
	if err != nil {
		tool.DefaultLogger.Warnf("[Notify] permission request failed: %v", err)
		return
	}
	tool.DefaultLogger.Infof("[Notify] notification permission: %s", perm)
	if d.opts.OnPermission != nil {
		d.opts.OnPermission(perm)
	}
	if perm == types.PermissionGranted {
		d.toast(TitleEnabled, TextEnabled)
	} else {
		d.toast(TitleBlocked, TextBlockedManual)
	}
}

func (d *Dispatcher) toast(title, message string) {
	if d.toaster == nil {
		tool.DefaultLogger.Infof("[Notify] %s: %s", title, message)
		return
	}
	d.toaster.Toast(title, message)
}
