package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Undo(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.History.Undo(c.Request.Context(), c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

type rollbackRequest struct {
	EntryID string `json:"entry_id" binding:"required"`
}

func (h *Handler) Rollback(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entry_id is required"})
		return
	}
	if err := h.History.RollbackTo(c.Request.Context(), c.Param("id"), req.EntryID); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

// FetchHistory pages ledger entries newest-first; the cursor is the
// created_at (RFC 3339 nano) plus id of the last entry of the previous
// page, so entries sharing a timestamp are never skipped.
func (h *Handler) FetchHistory(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 10
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	var cursor *time.Time
	if v := c.Query("cursor"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		cursor = &t
	}
	cursorID := c.Query("cursor_id")

	entries, hasMore, err := h.History.FetchHistory(c.Request.Context(), c.Param("id"), cursor, cursorID, limit)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":  entries,
		"has_more": hasMore,
	})
}
