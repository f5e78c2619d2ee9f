package tool

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fistoar/crm-realtime/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
	configMu      sync.RWMutex
)

// DefaultConfig returns the config written when no config file exists.
func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		ServerURL:   "ws://127.0.0.1:5000/socket",
		AppURL:      "http://127.0.0.1:3000",
		SessionPath: "session.json", // written by the CRM login flow
		Port:        53318,
		Notify: types.NotifyConfig{
			Enabled:    true,
			SocketPath: "/tmp/crm-notify.sock",
			Icon:       "assets/logo.png",
			Image:      "assets/banner.png",
			Sound:      "assets/notification.mp3",
			Volume:     0.5,
			Permission: string(types.PermissionDefault),
		},
		Reconnect: types.ReconnectConfig{
			PingInterval:     25 * time.Second,
			PingTimeout:      20 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			MinDelay:         time.Second,
		},
	}
}

// LoadConfig reads path (or ConfigPath), creating it with defaults when missing.
// Zero values in the file fall back to the defaults.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			setCurrentConfig(cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	fillDefaults(&cfg)

	setCurrentConfig(cfg)
	return cfg, nil
}

func fillDefaults(cfg *types.AppConfig) {
	def := DefaultConfig()
	if cfg.ServerURL == "" {
		cfg.ServerURL = def.ServerURL
	}
	if cfg.SessionPath == "" {
		cfg.SessionPath = def.SessionPath
	}
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.Notify.SocketPath == "" {
		cfg.Notify.SocketPath = def.Notify.SocketPath
	}
	if cfg.Notify.Volume <= 0 || cfg.Notify.Volume > 1 {
		cfg.Notify.Volume = def.Notify.Volume
	}
	if cfg.Reconnect.PingInterval <= 0 {
		cfg.Reconnect.PingInterval = def.Reconnect.PingInterval
	}
	if cfg.Reconnect.PingTimeout <= 0 {
		cfg.Reconnect.PingTimeout = def.Reconnect.PingTimeout
	}
	if cfg.Reconnect.HandshakeTimeout <= 0 {
		cfg.Reconnect.HandshakeTimeout = def.Reconnect.HandshakeTimeout
	}
	if cfg.Reconnect.MinDelay <= 0 {
		cfg.Reconnect.MinDelay = def.Reconnect.MinDelay
	}
}

func writeConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func setCurrentConfig(cfg types.AppConfig) {
	configMu.Lock()
	defer configMu.Unlock()
	CurrentConfig = cfg
}

// GetCurrentConfig returns a copy of the loaded config.
func GetCurrentConfig() types.AppConfig {
	configMu.RLock()
	defer configMu.RUnlock()
	return CurrentConfig
}

// PersistPermission stores the resolved notification permission so the next start skips the prompt.
func PersistPermission(p types.Permission) {
	configMu.Lock()
	CurrentConfig.Notify.Permission = string(p)
	cfg := CurrentConfig
	path := ConfigPath
	configMu.Unlock()
	if err := writeConfig(path, cfg); err != nil {
		DefaultLogger.Warnf("Failed to persist config: %v", err)
	}
}
