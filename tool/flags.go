package tool

import (
	"flag"

	"github.com/fistoar/crm-realtime/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseServerURL, "useServerUrl", "", "override real-time server websocket URL")
	flag.StringVar(&cfg.UseSession, "useSession", "", "override session file path")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override local control API port")
	flag.BoolVar(&cfg.SkipNotify, "skipNotify", false, "if true, skip desktop notifications and use in-app toasts only")
	flag.Parse()
	return cfg
}

// ApplyFlags merges CLI overrides into cfg.
func ApplyFlags(cfg *types.AppConfig, flags types.Config) {
	if flags.UseServerURL != "" {
		cfg.ServerURL = flags.UseServerURL
	}
	if flags.UseSession != "" {
		cfg.SessionPath = flags.UseSession
	}
	if flags.UsePort > 0 {
		cfg.Port = flags.UsePort
	}
	if flags.SkipNotify {
		cfg.Notify.Enabled = false
	}
}
