package monitor

import (
	"strings"

	"github.com/fistoar/crm-realtime/types"
)

// Status text shown on the badge.
const (
	TextChecking     = "Checking connection..."
	TextConnecting   = "Connecting to server..."
	TextConnected    = "Connected to server"
	TextReconnecting = "Reconnecting..."
	TextReconnected  = "Reconnected successfully"
	TextError        = "Connection error, retrying..."

	TextTimeout          = "Connection timed out. Server is not responding."
	TextServerDisconnect = "Disconnected by server."
	TextClientDisconnect = "Connection closed."
	TextTransportClose   = "Connection lost. Check your network."
	TextLost             = "Connection lost."
)

// ReasonText maps a disconnect reason code to the text shown on the badge.
func ReasonText(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case types.ReasonPingTimeout, types.ReasonTimeout:
		return TextTimeout
	case types.ReasonServerDisconnect:
		return TextServerDisconnect
	case types.ReasonClientDisconnect:
		return TextClientDisconnect
	case types.ReasonTransportClose, types.ReasonTransportError:
		return TextTransportClose
	default:
		return TextLost
	}
}

func reconnectingText(reason string) string {
	if reason == "" {
		return TextReconnecting
	}
	return "Reconnecting (attempt " + reason + ")..."
}
