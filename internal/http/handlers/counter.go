package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type casRequest struct {
	ExpectedValue *int64 `json:"expected_value" binding:"required"`
	NewValue      *int64 `json:"new_value" binding:"required"`
}

// CommitCounter is the compare-and-swap endpoint. A mismatch is not an
// error: the caller gets the authoritative value back and reconciles
// locally; the server never retries on its behalf.
func (h *Handler) CommitCounter(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req casRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected_value and new_value are required"})
		return
	}

	current, conflict, err := h.Counter.Commit(c.Request.Context(), c.Param("id"),
		*req.ExpectedValue, *req.NewValue)
	if err != nil {
		writeErr(c, err)
		return
	}
	if conflict {
		c.JSON(http.StatusOK, gin.H{"conflict": true, "current_value": current})
		return
	}
	writeOK(c)
}
