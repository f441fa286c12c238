package handlers

import (
	"net/http"

	"syncboard/internal/domain"

	"github.com/gin-gonic/gin"
)

type transferRequest struct {
	From      string                `json:"from" binding:"required"`
	To        string                `json:"to" binding:"required"`
	Items     []domain.TransferItem `json:"items" binding:"required"`
	FromLabel string                `json:"from_label"`
	ToLabel   string                `json:"to_label"`
}

func (h *Handler) Transfer(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from, to and items are required"})
		return
	}
	err := h.Mutator.Transfer(c.Request.Context(), c.Param("id"),
		req.From, req.To, req.Items, req.FromLabel, req.ToLabel)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

type joinSeatRequest struct {
	SeatIndex   *int   `json:"seat_index" binding:"required"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) JoinSeat(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req joinSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seat_index is required"})
		return
	}
	err := h.Mutator.JoinSeat(c.Request.Context(), c.Param("id"), *req.SeatIndex, callerID, req.DisplayName)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *Handler) LeaveSeat(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("id")
	if err := h.Mutator.LeaveSeat(c.Request.Context(), roomID, callerID); err != nil {
		writeErr(c, err)
		return
	}
	h.Monitor.SeatVacated(roomID, callerID)
	writeOK(c)
}

type forceLeaveRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

// ForceLeaveSeat lets a host vacate any seat, mirroring what the presence
// monitor does on timeout. Idempotent by design.
func (h *Handler) ForceLeaveSeat(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req forceLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant_id is required"})
		return
	}
	roomID := c.Param("id")

	room, err := h.Rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if req.ParticipantID != callerID && !room.IsHost(callerID) {
		writeErr(c, domain.ErrPermissionDenied)
		return
	}

	if err := h.Mutator.ForceLeaveSeat(c.Request.Context(), roomID, req.ParticipantID); err != nil {
		writeErr(c, err)
		return
	}
	h.Monitor.SeatVacated(roomID, req.ParticipantID)
	writeOK(c)
}

type guestSeatRequest struct {
	SeatIndex *int `json:"seat_index" binding:"required"`
}

func (h *Handler) JoinGuestSeat(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req guestSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seat_index is required"})
		return
	}
	err := h.Mutator.JoinGuestSeat(c.Request.Context(), c.Param("id"), callerID, *req.SeatIndex)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

type forceEditRequest struct {
	ParticipantID string           `json:"participant_id" binding:"required"`
	Values        map[string]int64 `json:"values" binding:"required"`
	Label         string           `json:"label"`
}

func (h *Handler) ForceEdit(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req forceEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant_id and values are required"})
		return
	}
	err := h.Mutator.ForceEdit(c.Request.Context(), c.Param("id"), callerID,
		req.ParticipantID, req.Values, req.Label)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

type resetRequest struct {
	Variables []string `json:"variables" binding:"required"`
}

func (h *Handler) ResetVariables(c *gin.Context) {
	callerID, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variables are required"})
		return
	}
	err := h.Mutator.ResetVariables(c.Request.Context(), c.Param("id"), callerID, req.Variables)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}
