package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fistoar/crm-realtime/tool"
)

// ClickReceiver runs the click action of a notification shown by the desktop helper.
type ClickReceiver interface {
	Click(id string) bool
}

type NotificationController struct {
	clicks ClickReceiver
}

func NewNotificationController(r ClickReceiver) *NotificationController {
	return &NotificationController{clicks: r}
}

// HandleClick is called by the desktop helper when the user clicks a notification.
// POST /api/self/v1/notifications/:id/click
func (ctrl *NotificationController) HandleClick(c *gin.Context) {
	id := c.Param("id")
	if ctrl.clicks == nil || !ctrl.clicks.Click(id) {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Notification not found or already closed"))
		return
	}
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(gin.H{"id": id}))
}
