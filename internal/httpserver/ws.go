package httpserver

import (
	"heavenly-backend/internal/realtime"
	"github.com/gin-gonic/gin"
)

// websocketHandler joins the authenticated customer to their realtime room.
// Admins join the shared admin room so any connected admin sees store-wide
// events.
func websocketHandler(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := recipientFor(currentCustomer(c))
		hub.Serve(c.Writer, c.Request, rec)
	}
}
