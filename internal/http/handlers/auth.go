package handlers

import (
	"net/http"

	"syncboard/internal/repository"
	"syncboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type anonymousAuthRequest struct {
	DisplayName string `json:"display_name"`
}

// AnonymousAuth issues a fresh anonymous identity and token. No signup
// flow: a device taps "join" and gets a participant id it can keep.
func (h *Handler) AnonymousAuth(c *gin.Context) {
	var req anonymousAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	p := &repository.Participant{
		ID:          uuid.NewString(),
		DisplayName: req.DisplayName,
	}
	if err := h.Participants.Create(c.Request.Context(), p); err != nil {
		writeErr(c, err)
		return
	}

	token, err := service.GenerateJWT(p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant_id": p.ID,
		"display_name":   p.DisplayName,
		"token":          token,
	})
}

// Me returns the caller's stored profile.
func (h *Handler) Me(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	p, err := h.Participants.GetByID(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateMeRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// UpdateMe renames the caller. Seats keep the name they were taken with;
// the new name applies from the next join.
func (h *Handler) UpdateMe(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display_name is required"})
		return
	}
	if err := h.Participants.UpdateDisplayName(c.Request.Context(), id, req.DisplayName); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}
