package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRateLimiter wires the shared Redis client used by the middleware.
// Without one (or when Redis is unreachable) the limiter fails open so a
// cache outage never takes the API down with it.
func InitRateLimiter(client *redis.Client) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return
	}
	redisClient = client
}

// RateLimit is a fixed-window limiter using Redis INCR/EXPIRE, keyed by the
// authenticated participant when available and the client IP otherwise.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		ident := c.ClientIP()
		if pid, ok := c.Get("participant_id"); ok {
			if s, ok := pid.(string); ok && s != "" {
				ident = s
			}
		}
		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident

		ctx := c.Request.Context()
		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			redisClient.Expire(ctx, key, window)
		}

		if val > int64(maxRequests) {
			rlBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
