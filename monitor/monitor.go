// Package monitor tracks the real-time connection lifecycle and drives the status badge.
package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/fistoar/crm-realtime/clock"
	"github.com/fistoar/crm-realtime/metrics"
	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

const (
	// PollInterval is how often the liveness predicate is checked while connecting.
	PollInterval = 500 * time.Millisecond
	// HideDelay is how long the badge stays up after a non-first (re)connection.
	HideDelay = 3000 * time.Millisecond
)

// ErrAlreadyObserving is returned when Observe is called twice without Stop.
var ErrAlreadyObserving = errors.New("monitor: already observing a connection")

// Handle is the part of the connection handle the monitor needs.
type Handle interface {
	Connected() bool
	Reconnect()
	OnLifecycle(fn types.LifecycleFunc) (unsubscribe func())
}

// Broadcaster fans reload signals out to dependent views.
type Broadcaster interface {
	BroadcastReload(signal string)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithScheduler replaces the wall clock.
func WithScheduler(s clock.Scheduler) Option {
	return func(m *Monitor) { m.sched = s }
}

// WithBroadcaster sets where reload signals go on manual retry.
func WithBroadcaster(b Broadcaster) Option {
	return func(m *Monitor) { m.broadcaster = b }
}

// WithMetrics records transitions.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// Monitor applies lifecycle signals to the state machine and runs its timers.
// All transitions are serialized by mu, so they are totally ordered by arrival.
type Monitor struct {
	mu          sync.Mutex
	sched       clock.Scheduler
	broadcaster Broadcaster
	metrics     *metrics.Metrics

	handle      Handle
	unsubscribe func()
	snap        Snapshot

	pollTimer clock.Timer
	pollGen   uint64
	hideTimer clock.Timer
	hideGen   uint64

	listeners []func(types.ConnectionStatus)

	// seq numbers changed snapshots under mu; deliverMu keeps listener calls
	// in seq order and drops any snapshot older than the last one delivered.
	seq       uint64
	deliverMu sync.Mutex
	delivered uint64
}

// New creates a Monitor in the checking state.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		sched: clock.Real{},
		snap:  Initial(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange registers fn to receive every new status. Listeners run outside the lock
// but one at a time, and must not apply signals to the monitor themselves.
func (m *Monitor) OnChange(fn func(types.ConnectionStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status returns the current badge status.
func (m *Monitor) Status() types.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Status()
}

// Observe attaches to h and seeds the state from its liveness predicate.
func (m *Monitor) Observe(h Handle) error {
	m.mu.Lock()
	if m.handle != nil {
		m.mu.Unlock()
		return ErrAlreadyObserving
	}
	m.handle = h
	m.mu.Unlock()

	unsubscribe := h.OnLifecycle(func(status types.LifecycleStatus, reason string) {
		tool.DefaultLogger.Debugf("[Monitor] lifecycle %s (%s)", status, reason)
		m.Apply(Signal{Kind: SignalKind(status), Reason: reason})
	})

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	if h.Connected() {
		m.Apply(Signal{Kind: SignalConnected})
	} else {
		m.Apply(Signal{Kind: SignalConnecting})
	}
	return nil
}

// Retry is the manual retry action.
func (m *Monitor) Retry() {
	tool.DefaultLogger.Infof("[Monitor] manual reconnect requested")
	m.Apply(Signal{Kind: SignalManualRetry})
}

// Stop detaches from the handle and cancels both timers. The monitor can Observe again afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.handle = nil
	m.stopPollingLocked()
	m.cancelHideLocked()
	m.snap = Initial()
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Apply feeds one signal through the state machine and performs its effects.
func (m *Monitor) Apply(sig Signal) {
	m.apply(sig, nil)
}

// apply drops the signal when hideGen is set and no longer current, so a superseded
// hide timer never hides a newer connection early.
func (m *Monitor) apply(sig Signal, hideGen *uint64) {
	m.mu.Lock()
	if hideGen != nil && *hideGen != m.hideGen {
		m.mu.Unlock()
		return
	}
	prev := m.snap
	next, effects := Next(m.snap, sig)
	m.snap = next

	reconnect, broadcast := false, false
	for _, e := range effects {
		switch e {
		case EffectCancelHide:
			m.cancelHideLocked()
		case EffectScheduleHide:
			m.scheduleHideLocked()
		case EffectStartPolling:
			m.startPollingLocked()
		case EffectStopPolling:
			m.stopPollingLocked()
		case EffectForceReconnect:
			reconnect = true
		case EffectBroadcastReload:
			broadcast = true
		}
	}
	handle := m.handle
	changed := prev != next
	status := next.Status()
	listeners := append([]func(types.ConnectionStatus){}, m.listeners...)
	var seq uint64
	if changed {
		m.seq++
		seq = m.seq
	}
	m.mu.Unlock()

	if changed {
		if prev.State != next.State {
			m.metrics.Transition(next.State)
			tool.DefaultLogger.Infof("[Monitor] %s -> %s: %s", prev.State, next.State, next.Message)
		}
		m.deliver(seq, status, listeners)
	}
	if reconnect && handle != nil {
		handle.Reconnect()
	}
	if broadcast && m.broadcaster != nil {
		for _, s := range types.ReloadSignals {
			m.broadcaster.BroadcastReload(s)
		}
	}
}

func (m *Monitor) deliver(seq uint64, status types.ConnectionStatus, listeners []func(types.ConnectionStatus)) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	if seq <= m.delivered {
		tool.DefaultLogger.Debugf("[Monitor] dropping stale status %s", status.State)
		return
	}
	m.delivered = seq
	for _, fn := range listeners {
		fn(status)
	}
}

// startPollingLocked restarts the liveness poll; a running poll is stopped first.
func (m *Monitor) startPollingLocked() {
	m.stopPollingLocked()
	m.armPollLocked(m.pollGen)
}

func (m *Monitor) armPollLocked(gen uint64) {
	m.pollTimer = m.sched.AfterFunc(PollInterval, func() { m.pollTick(gen) })
}

func (m *Monitor) stopPollingLocked() {
	m.pollGen++
	if m.pollTimer != nil {
		m.pollTimer.Stop()
		m.pollTimer = nil
	}
}

func (m *Monitor) pollTick(gen uint64) {
	m.mu.Lock()
	if gen != m.pollGen || m.handle == nil || !Polling(m.snap.State) {
		m.mu.Unlock()
		return
	}
	h := m.handle
	m.mu.Unlock()

	if h.Connected() {
		tool.DefaultLogger.Debugf("[Monitor] poll found connection live")
		m.Apply(Signal{Kind: SignalPollLive})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.pollGen {
		m.armPollLocked(gen)
	}
}

func (m *Monitor) scheduleHideLocked() {
	m.cancelHideLocked()
	gen := m.hideGen
	m.hideTimer = m.sched.AfterFunc(HideDelay, func() {
		m.apply(Signal{Kind: SignalHideElapsed}, &gen)
	})
}

func (m *Monitor) cancelHideLocked() {
	m.hideGen++
	if m.hideTimer != nil {
		m.hideTimer.Stop()
		m.hideTimer = nil
	}
}
