package middleware

import (
	"net/http"
	"strings"

	"syncboard/internal/service"

	"github.com/gin-gonic/gin"
)

// Auth validates the Bearer token and stores the participant id in the gin
// context. Identity only; authorization decisions happen inside the
// services' transactions.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		participantID, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("participant_id", participantID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// websocket clients cannot set headers from the browser
	return c.Query("token")
}
