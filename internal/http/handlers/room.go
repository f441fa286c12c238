package handlers

import (
	"net/http"

	"syncboard/internal/domain"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	Template *domain.Template `json:"template,omitempty"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	room, err := h.Rooms.Create(c.Request.Context(), callerID, req.Template)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type joinByCodeRequest struct {
	RoomCode string `json:"room_code" binding:"required"`
}

// JoinByCode resolves a short join code to the full room, the lookup step
// before taking a seat.
func (h *Handler) JoinByCode(c *gin.Context) {
	var req joinByCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_code is required"})
		return
	}
	room, err := h.Rooms.GetByCode(c.Request.Context(), req.RoomCode)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetRoomStatus(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if err := h.Rooms.SetStatus(c.Request.Context(), c.Param("id"), callerID, domain.RoomStatus(req.Status)); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("id")
	if err := h.Rooms.Delete(c.Request.Context(), roomID, callerID); err != nil {
		writeErr(c, err)
		return
	}
	h.Hub.CloseRoom(roomID)
	writeOK(c)
}

// RoomPresence reports liveness for every seated participant plus the set
// of participants currently holding a socket.
func (h *Handler) RoomPresence(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("id")
	room, err := h.Rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		writeErr(c, err)
		return
	}

	seated := room.Seats.SeatedIDs()
	statuses := make([]domain.ConnectionStatus, 0, len(seated))
	for _, id := range seated {
		statuses = append(statuses, h.Monitor.Status(roomID, id))
	}
	c.JSON(http.StatusOK, gin.H{
		"participants": statuses,
		"connected":    h.Hub.Connected(roomID),
	})
}

type coHostRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

func (h *Handler) AddCoHost(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req coHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant_id is required"})
		return
	}
	if err := h.Rooms.AddCoHost(c.Request.Context(), c.Param("id"), callerID, req.ParticipantID); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}
