package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"syncboard/internal/config"
	"syncboard/internal/db"
	httpServer "syncboard/internal/http"
	"syncboard/internal/http/middleware"
	"syncboard/internal/logger"
	"syncboard/internal/presence"
	"syncboard/internal/repository"
	"syncboard/internal/service"
	"syncboard/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT()

	pool := db.Connect(cfg.DatabaseURL)
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		middleware.InitRateLimiter(redisClient)
	}

	// change notification: Redis pub/sub when configured so every instance
	// sees every commit; direct in-process dispatch otherwise
	var hub *ws.Hub
	var notifier service.Notifier
	if redisClient != nil {
		notifier = service.NewRedisNotifier(redisClient)
	} else {
		notifier = service.NewLocalNotifier(func(roomID, marker string) {
			if hub != nil {
				hub.RoomChanged(roomID, marker)
			}
		})
	}

	roomRepo := repository.NewRoomRepository(pool)
	mutator := service.NewMutatorService(pool, notifier, cfg.TxMaxAttempts)
	monitor := presence.NewMonitor(
		time.Duration(cfg.GraceWindowSec)*time.Second,
		time.Duration(cfg.ForceLeaveTimeoutSec)*time.Second,
		roomRepo, mutator)
	hub = ws.NewHub(monitor)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if redisClient != nil {
		service.SubscribeRoomChanges(rootCtx, redisClient, hub.RoomChanged)
	}

	r := gin.Default()

	// CORS: the board runs as a webapp on a different origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	httpServer.RegisterRoutes(r, pool, cfg, notifier, monitor, hub, version)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", "error", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}
