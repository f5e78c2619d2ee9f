package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fistoar/crm-realtime/tool"
)

const redacted = "********"

// UserConfigGet returns the loaded config with the session token masked.
// GET /api/self/v1/config
func UserConfigGet(c *gin.Context) {
	cfg := tool.GetCurrentConfig()
	if cfg.Token != "" {
		cfg.Token = redacted
	}
	c.JSON(http.StatusOK, cfg)
}
