package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	probing "github.com/prometheus-community/pro-bing"

	"github.com/fistoar/crm-realtime/tool"
)

const (
	probeCount   = 3
	probeTimeout = 5 * time.Second
)

// ProbeResult summarizes an ICMP probe of the CRM server host.
type ProbeResult struct {
	Host        string  `json:"host"`
	Addr        string  `json:"addr"`
	PacketsSent int     `json:"packetsSent"`
	PacketsRecv int     `json:"packetsRecv"`
	PacketLoss  float64 `json:"packetLoss"`
	AvgRttMs    float64 `json:"avgRttMs"`
	MaxRttMs    float64 `json:"maxRttMs"`
	Reachable   bool    `json:"reachable"`
}

// Prober pings host.
type Prober func(ctx context.Context, host string) (*ProbeResult, error)

// ICMPProbe pings host with unprivileged UDP echo requests.
func ICMPProbe(ctx context.Context, host string) (*ProbeResult, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return nil, err
	}
	pinger.Count = probeCount
	pinger.Timeout = probeTimeout
	pinger.SetPrivileged(false)
	if err := pinger.RunWithContext(ctx); err != nil {
		return nil, err
	}

	stats := pinger.Statistics()
	return &ProbeResult{
		Host:        host,
		Addr:        stats.Addr,
		PacketsSent: stats.PacketsSent,
		PacketsRecv: stats.PacketsRecv,
		PacketLoss:  stats.PacketLoss,
		AvgRttMs:    float64(stats.AvgRtt) / float64(time.Millisecond),
		MaxRttMs:    float64(stats.MaxRtt) / float64(time.Millisecond),
		Reachable:   stats.PacketsRecv > 0,
	}, nil
}

type DiagnoseController struct {
	serverURL string
	probe     Prober
}

// NewDiagnoseController probes the host of serverURL; a nil probe uses ICMPProbe.
func NewDiagnoseController(serverURL string, probe Prober) *DiagnoseController {
	if probe == nil {
		probe = ICMPProbe
	}
	return &DiagnoseController{serverURL: serverURL, probe: probe}
}

// HandleDiagnose tells a dead server apart from a dead network when the badge is stuck.
// GET /api/self/v1/diagnose
func (ctrl *DiagnoseController) HandleDiagnose(c *gin.Context) {
	host, err := tool.HostOf(ctrl.serverURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		return
	}

	result, err := ctrl.probe(c.Request.Context(), host)
	if err != nil {
		tool.DefaultLogger.Warnf("[Diagnose] probe %s failed: %v", host, err)
		c.JSON(http.StatusBadGateway, tool.FastReturnError("Probe failed: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(result))
}
