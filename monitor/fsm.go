package monitor

import "github.com/fistoar/crm-realtime/types"

// SignalKind is an input to the badge state machine.
type SignalKind string

const (
	SignalConnecting   = SignalKind(types.LifecycleConnecting)
	SignalConnected    = SignalKind(types.LifecycleConnected)
	SignalDisconnected = SignalKind(types.LifecycleDisconnected)
	SignalReconnecting = SignalKind(types.LifecycleReconnecting)
	SignalReconnected  = SignalKind(types.LifecycleReconnected)
	SignalError        = SignalKind(types.LifecycleError)
	SignalTimeout      = SignalKind(types.LifecycleTimeout)

	SignalPollLive    SignalKind = "poll_live"    // polling found the handle live
	SignalHideElapsed SignalKind = "hide_elapsed" // visibility window ran out
	SignalManualRetry SignalKind = "manual_retry" // user pressed retry
)

// Signal is one input with its optional reason (disconnect code, attempt number, error text).
type Signal struct {
	Kind   SignalKind
	Reason string
}

// Effect is a side effect the Monitor performs after a transition.
type Effect string

const (
	EffectStartPolling    Effect = "start_polling"
	EffectStopPolling     Effect = "stop_polling"
	EffectScheduleHide    Effect = "schedule_hide"
	EffectCancelHide      Effect = "cancel_hide"
	EffectForceReconnect  Effect = "force_reconnect"
	EffectBroadcastReload Effect = "broadcast_reload"
)

// Snapshot is the machine state.
type Snapshot struct {
	State        types.ConnectionState
	Message      string
	HasConnected bool // at least one successful connection so far
}

// Initial is the state before the handle has been inspected.
func Initial() Snapshot {
	return Snapshot{State: types.StateChecking, Message: TextChecking}
}

// Status derives the badge view of a snapshot.
func (s Snapshot) Status() types.ConnectionStatus {
	return types.ConnectionStatus{
		State:        s.State,
		Message:      s.Message,
		Visible:      s.State != types.StateHidden,
		RetryEnabled: Retryable(s.State),
		HasConnected: s.HasConnected,
	}
}

// Retryable reports whether the manual retry action is offered in state.
func Retryable(state types.ConnectionState) bool {
	switch state {
	case types.StateConnected, types.StateReconnected, types.StateHidden:
		return false
	}
	return true
}

// Polling reports whether state wants the liveness poll running.
func Polling(state types.ConnectionState) bool {
	return state == types.StateConnecting || state == types.StateReconnecting
}

// Next is the pure transition function. Every signal except SignalHideElapsed
// cancels a pending hide.
func Next(s Snapshot, sig Signal) (Snapshot, []Effect) {
	switch sig.Kind {
	case SignalHideElapsed:
		if s.State == types.StateConnected || s.State == types.StateReconnected {
			s.State = types.StateHidden
		}
		return s, nil

	case SignalPollLive:
		switch s.State {
		case types.StateReconnecting:
			return Next(s, Signal{Kind: SignalReconnected})
		case types.StateConnecting, types.StateChecking:
			return Next(s, Signal{Kind: SignalConnected})
		}
		return s, []Effect{EffectStopPolling}

	case SignalConnected, SignalReconnected:
		first := !s.HasConnected
		if sig.Kind == SignalReconnected || s.State == types.StateReconnecting {
			s.State = types.StateReconnected
			s.Message = TextReconnected
		} else {
			s.State = types.StateConnected
			s.Message = TextConnected
		}
		s.HasConnected = true
		effects := []Effect{EffectCancelHide, EffectStopPolling}
		if !first {
			effects = append(effects, EffectScheduleHide)
		}
		return s, effects

	case SignalConnecting:
		s.State = types.StateConnecting
		s.Message = TextConnecting
		return s, []Effect{EffectCancelHide, EffectStartPolling}

	case SignalError:
		// transient: stay retryable and keep polling
		s.State = types.StateConnecting
		s.Message = TextError
		return s, []Effect{EffectCancelHide, EffectStartPolling}

	case SignalReconnecting:
		s.State = types.StateReconnecting
		s.Message = reconnectingText(sig.Reason)
		return s, []Effect{EffectCancelHide, EffectStartPolling}

	case SignalTimeout:
		s.State = types.StateDisconnected
		s.Message = TextTimeout
		return s, []Effect{EffectCancelHide, EffectStopPolling}

	case SignalDisconnected:
		s.State = types.StateDisconnected
		s.Message = ReasonText(sig.Reason)
		return s, []Effect{EffectCancelHide, EffectStopPolling}

	case SignalManualRetry:
		s.State = types.StateReconnecting
		s.Message = TextReconnecting
		return s, []Effect{EffectCancelHide, EffectForceReconnect, EffectStartPolling, EffectBroadcastReload}
	}
	return s, nil
}
