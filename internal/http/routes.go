package http

import (
	"time"

	"syncboard/internal/config"
	"syncboard/internal/http/handlers"
	"syncboard/internal/http/middleware"
	"syncboard/internal/presence"
	"syncboard/internal/service"
	"syncboard/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes wires the full API surface: one endpoint per mutator,
// ledger, settlement, and CAS operation, plus health checks and the
// websocket channel.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, cfg *config.Config, notifier service.Notifier, monitor *presence.Monitor, hub *ws.Hub, version string) *handlers.Handler {
	h := handlers.NewHandler(db, notifier, monitor, hub, cfg.TxMaxAttempts)
	healthHandler := handlers.NewHealthHandler(db, version)

	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	apiWindow := time.Duration(cfg.APIRateWindowSec) * time.Second
	authWindow := time.Duration(cfg.AuthRateWindowSec) * time.Second

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Metrics())
	v1.Use(middleware.RateLimit(cfg.APIRateLimit, apiWindow))

	v1.POST("/auth/anonymous", middleware.RateLimit(cfg.AuthRateLimit, authWindow), h.AnonymousAuth)
	v1.GET("/me", middleware.Auth(), h.Me)
	v1.PATCH("/me", middleware.Auth(), h.UpdateMe)

	rooms := v1.Group("/rooms", middleware.Auth())
	rooms.POST("", h.CreateRoom)
	rooms.POST("/join", h.JoinByCode)
	rooms.GET("/:id", h.GetRoom)
	rooms.GET("/:id/presence", h.RoomPresence)
	rooms.DELETE("/:id", h.DeleteRoom)
	rooms.POST("/:id/status", h.SetRoomStatus)
	rooms.POST("/:id/co-hosts", h.AddCoHost)

	rooms.POST("/:id/transfer", h.Transfer)
	rooms.POST("/:id/seats/join", h.JoinSeat)
	rooms.POST("/:id/seats/leave", h.LeaveSeat)
	rooms.POST("/:id/seats/force-leave", h.ForceLeaveSeat)
	rooms.POST("/:id/seats/guest", h.JoinGuestSeat)
	rooms.POST("/:id/force-edit", h.ForceEdit)
	rooms.POST("/:id/reset", h.ResetVariables)

	rooms.POST("/:id/undo", h.Undo)
	rooms.POST("/:id/rollback", h.Rollback)
	rooms.GET("/:id/history", h.FetchHistory)

	rooms.GET("/:id/settlements", h.FetchSettlements)
	rooms.POST("/:id/settlements", h.ExecuteSettlement)
	rooms.GET("/:id/settlements/check", h.CanSettle)

	rooms.POST("/:id/counter", h.CommitCounter)

	r.GET("/ws", middleware.Auth(), h.WS)

	return h
}
