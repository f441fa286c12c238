package handlers

import (
	"net/http"

	"syncboard/internal/logger"
	"syncboard/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WS upgrades the connection and attaches the participant to its room's
// presence/notification channel. Auth middleware already ran (token comes
// via query parameter for browser clients).
func (h *Handler) WS(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Query("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id is required"})
		return
	}
	if _, err := h.Rooms.Get(c.Request.Context(), roomID); err != nil {
		writeErr(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("ws upgrade", "error", err)
		return
	}

	client := ws.NewClient(roomID, pid, conn, h.Hub)
	go client.Run()
}
