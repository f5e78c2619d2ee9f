package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fistoar/crm-realtime/api"
	"github.com/fistoar/crm-realtime/api/notifyhub"
	"github.com/fistoar/crm-realtime/metrics"
	"github.com/fistoar/crm-realtime/monitor"
	"github.com/fistoar/crm-realtime/notify"
	"github.com/fistoar/crm-realtime/realtime"
	"github.com/fistoar/crm-realtime/session"
	"github.com/fistoar/crm-realtime/socket"
	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := tool.SetFlags()
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)

	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlags(&appCfg, cfg)

	sessions := session.FileStore{Path: appCfg.SessionPath}
	token := appCfg.Token
	if token == "" {
		// the CRM login stores its token next to the user
		if sess, err := sessions.Current(); err == nil {
			token = sess.Token
		} else {
			tool.DefaultLogger.Warnf("No token in config and session unreadable: %v", err)
		}
	}

	socketURL, err := tool.BuildSocketURL(appCfg.ServerURL, token)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	client := socket.New(socket.Options{
		URL:              socketURL,
		Header:           header,
		PingInterval:     appCfg.Reconnect.PingInterval,
		PingTimeout:      appCfg.Reconnect.PingTimeout,
		HandshakeTimeout: appCfg.Reconnect.HandshakeTimeout,
		MinDelay:         appCfg.Reconnect.MinDelay,
	})

	mt := metrics.Default()
	hub := notifyhub.New()

	mon := monitor.New(
		monitor.WithBroadcaster(hub),
		monitor.WithMetrics(mt),
	)
	mon.OnChange(hub.PushStatus)

	var (
		provider notify.Provider
		player   notify.Player
		clicks   *notify.SocketProvider
	)
	if appCfg.Notify.Enabled {
		clicks = notify.NewSocketProvider(appCfg.Notify.SocketPath, types.ParsePermission(appCfg.Notify.Permission))
		provider = clicks
		player = notify.NewSocketPlayer(appCfg.Notify.SocketPath)
	} else {
		tool.DefaultLogger.Info("Desktop notifications disabled, using in-app toasts only")
	}
	dispatcher := notify.NewDispatcher(sessions, provider, player, hub, nil, mt, notify.Options{
		Icon:         appCfg.Notify.Icon,
		Image:        appCfg.Notify.Image,
		Sound:        appCfg.Notify.Sound,
		Volume:       appCfg.Notify.Volume,
		AppURL:       appCfg.AppURL,
		OnPermission: tool.PersistPermission,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := realtime.New(client, mon, dispatcher)
	if err := coordinator.Start(ctx); err != nil {
		tool.DefaultLogger.Fatalf("Real-time startup failed: %v", err)
	}

	deps := api.Deps{
		Monitor:   mon,
		Hub:       hub,
		AppURL:    appCfg.AppURL,
		ServerURL: appCfg.ServerURL,
	}
	if clicks != nil {
		deps.Clicks = clicks
	}
	apiServer := api.NewServer(appCfg.Port, deps)
	go func() {
		if err := apiServer.Start(); err != nil {
			tool.DefaultLogger.Errorf("API server startup failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	tool.DefaultLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Warnf("API server shutdown: %v", err)
	}
	if err := coordinator.Stop(); err != nil {
		tool.DefaultLogger.Debugf("Real-time shutdown: %v", err)
	}
}
