package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CanSettle reports whether a settlement can run right now, with the
// blocking reason when it cannot.
func (h *Handler) CanSettle(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.Settlements.CanExecute(c.Request.Context(), c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	writeOK(c)
}

func (h *Handler) ExecuteSettlement(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	result, err := h.Settlements.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) FetchSettlements(c *gin.Context) {
	if _, ok := participantID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	entries, err := h.Settlements.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
