package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fistoar/crm-realtime/tool"
	"github.com/fistoar/crm-realtime/types"
)

// ConnectionMonitor is what the badge endpoints need from the connection monitor.
type ConnectionMonitor interface {
	Status() types.ConnectionStatus
	Retry()
}

type ConnectionController struct {
	monitor ConnectionMonitor
}

func NewConnectionController(m ConnectionMonitor) *ConnectionController {
	return &ConnectionController{monitor: m}
}

// HandleStatus returns the badge status.
// GET /api/self/v1/status
func (ctrl *ConnectionController) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.monitor.Status()))
}

// HandleRetry is the manual reconnect button. It is refused while the badge offers no retry.
// POST /api/self/v1/retry
func (ctrl *ConnectionController) HandleRetry(c *gin.Context) {
	if !ctrl.monitor.Status().RetryEnabled {
		c.JSON(http.StatusConflict, tool.FastReturnError("Retry is only available while disconnected"))
		return
	}
	ctrl.monitor.Retry()
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(ctrl.monitor.Status()))
}
