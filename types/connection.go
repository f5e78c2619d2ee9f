package types

// ConnectionState is the status shown on the connection badge.
type ConnectionState string

const (
	StateChecking     ConnectionState = "checking"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateReconnected  ConnectionState = "reconnected"
	StateDisconnected ConnectionState = "disconnected"
	StateHidden       ConnectionState = "hidden"
)

// AllConnectionStates lists every badge state, used to reset the state gauge.
var AllConnectionStates = []ConnectionState{
	StateChecking,
	StateConnecting,
	StateConnected,
	StateReconnecting,
	StateReconnected,
	StateDisconnected,
	StateHidden,
}

// LifecycleStatus is a transition reported by the connection handle.
type LifecycleStatus string

const (
	LifecycleConnecting   LifecycleStatus = "connecting"
	LifecycleConnected    LifecycleStatus = "connected"
	LifecycleDisconnected LifecycleStatus = "disconnected"
	LifecycleReconnecting LifecycleStatus = "reconnecting"
	LifecycleReconnected  LifecycleStatus = "reconnected"
	LifecycleError        LifecycleStatus = "error"
	LifecycleTimeout      LifecycleStatus = "timeout"
)

// Disconnect reasons reported alongside LifecycleDisconnected.
const (
	ReasonPingTimeout      = "ping timeout"
	ReasonTimeout          = "timeout"
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
)

// LifecycleFunc receives every lifecycle transition of a connection handle.
type LifecycleFunc func(status LifecycleStatus, reason string)

// EventHandler receives the raw JSON payload of a named real-time event.
type EventHandler func(payload []byte)

// ConnectionStatus is the snapshot exposed to the badge and the local API.
type ConnectionStatus struct {
	State        ConnectionState `json:"state"`
	Message      string          `json:"message"`
	Visible      bool            `json:"visible"`
	RetryEnabled bool            `json:"retryEnabled"`
	HasConnected bool            `json:"hasConnected"`
}
