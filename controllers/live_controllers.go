package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/table-reservations/hub"
	"github.com/yeremiapane/table-reservations/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type LiveController struct {
	Hub *hub.Hub
}

func NewLiveController(h *hub.Hub) *LiveController {
	return &LiveController{Hub: h}
}

// ReservationFeed -> GET /ws/reservations, streams reservation events.
func (lc *LiveController) ReservationFeed(c *gin.Context) {
	role := c.GetString("role")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Websocket upgrade failed: %v", err)
		return
	}

	lc.Hub.RegisterClient(ws, role)
	utils.InfoLogger.Printf("Live feed client connected (role=%s, clients=%d)", role, lc.Hub.ClientCount())

	// Incoming frames are ignored; reading detects the disconnect.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	lc.Hub.UnregisterClient(ws)
}
