package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fistoar/crm-realtime/api/controllers"
	"github.com/fistoar/crm-realtime/api/middlewares"
	"github.com/fistoar/crm-realtime/api/notifyhub"
	"github.com/fistoar/crm-realtime/tool"
)

const readHeaderTimeout = 10 * time.Second

// Deps are the components the local control API exposes.
type Deps struct {
	Monitor   controllers.ConnectionMonitor
	Hub       *notifyhub.Hub
	AppURL    string
	ServerURL string
	Clicks    controllers.ClickReceiver // nil when desktop notifications are disabled
	Prober    controllers.Prober        // nil uses ICMP
	Gatherer  prometheus.Gatherer       // nil uses the default registry
}

// Server is the local HTTP API next to the CRM desktop session.
type Server struct {
	port   int
	deps   Deps
	engine *gin.Engine
	server *http.Server
	mu     sync.RWMutex
}

func NewServer(port int, deps Deps) *Server {
	return &Server{port: port, deps: deps}
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.AllowOrigin(s.deps.AppURL))

	connCtrl := controllers.NewConnectionController(s.deps.Monitor)
	diagCtrl := controllers.NewDiagnoseController(s.deps.ServerURL, s.deps.Prober)

	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.GET("/status", connCtrl.HandleStatus)                     // Badge state for the web UI
		self.POST("/retry", connCtrl.HandleRetry)                      // Manual reconnect
		self.GET("/qrcode", controllers.GenerateQRCode(s.deps.AppURL)) // QR code PNG of the web app
		self.GET("/diagnose", diagCtrl.HandleDiagnose)                 // ICMP probe of the server host
		self.GET("/config", controllers.UserConfigGet)
		if s.deps.Clicks != nil {
			notifyCtrl := controllers.NewNotificationController(s.deps.Clicks)
			self.POST("/notifications/:id/click", notifyCtrl.HandleClick) // Click reported by the desktop helper
		}
		if s.deps.Hub != nil {
			self.GET("/notify", notifyhub.HandleNotifyWS(s.deps.Hub)) // Toasts, status and reload signals
		}
	}

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	engine.GET("/metrics", middlewares.OnlyAllowLocal, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return engine
}

// Handler returns the routed engine without listening.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		s.engine = s.setupRoutes()
	}
	return s.engine
}

// Start listens on 127.0.0.1 and blocks until Shutdown.
func (s *Server) Start() error {
	handler := s.Handler()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
