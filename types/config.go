package types

import "time"

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	ServerURL   string          `yaml:"serverUrl" json:"serverUrl"`     // websocket endpoint of the CRM real-time server
	AppURL      string          `yaml:"appUrl" json:"appUrl"`           // CRM web app, focused on notification click
	SessionPath string          `yaml:"sessionPath" json:"sessionPath"` // session file written by the CRM login
	Token       string          `yaml:"token,omitempty" json:"token,omitempty"`
	Port        int             `yaml:"port" json:"port"` // local control API port
	Notify      NotifyConfig    `yaml:"notify" json:"notify"`
	Reconnect   ReconnectConfig `yaml:"reconnect" json:"reconnect"`
}

// NotifyConfig configures desktop notification delivery.
type NotifyConfig struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	SocketPath string  `yaml:"socketPath" json:"socketPath"`
	Icon       string  `yaml:"icon" json:"icon"`
	Image      string  `yaml:"image" json:"image"`
	Sound      string  `yaml:"sound" json:"sound"`
	Volume     float64 `yaml:"volume" json:"volume"`
	Permission string  `yaml:"permission" json:"permission"` // default | granted | denied
}

// ReconnectConfig tunes the websocket client.
type ReconnectConfig struct {
	PingInterval     time.Duration `yaml:"pingInterval" json:"pingInterval"`
	PingTimeout      time.Duration `yaml:"pingTimeout" json:"pingTimeout"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout" json:"handshakeTimeout"`
	MinDelay         time.Duration `yaml:"minDelay" json:"minDelay"` // minimum spacing between redials
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log           string
	UseConfigPath string
	UseServerURL  string
	UseSession    string
	UsePort       int
	SkipNotify    bool // if true, skip native notifications and use toasts only.
}
