package handlers

import (
	"github.com/chachabrian/rydio-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades the request and registers the caller on the hub
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userId")
		role := c.GetString("role")
		services.HandleWebSocket(hub, c.Writer, c.Request, userID, role)
	}
}
