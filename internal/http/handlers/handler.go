package handlers

import (
	"errors"
	"net/http"

	"syncboard/internal/domain"
	"syncboard/internal/presence"
	"syncboard/internal/repository"
	"syncboard/internal/service"
	"syncboard/internal/settle"
	"syncboard/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	DB           *pgxpool.Pool
	Rooms        *service.RoomService
	Mutator      *service.MutatorService
	History      *service.HistoryService
	Settlements  *service.SettlementService
	Counter      *service.CounterService
	Participants *repository.ParticipantRepository
	Monitor      *presence.Monitor
	Hub          *ws.Hub
}

func NewHandler(db *pgxpool.Pool, notifier service.Notifier, monitor *presence.Monitor, hub *ws.Hub, maxAttempts int) *Handler {
	return &Handler{
		DB:           db,
		Rooms:        service.NewRoomService(db),
		Mutator:      service.NewMutatorService(db, notifier, maxAttempts),
		History:      service.NewHistoryService(db, notifier, maxAttempts),
		Settlements:  service.NewSettlementService(db, notifier),
		Counter:      service.NewCounterService(db, notifier),
		Participants: repository.NewParticipantRepository(db),
		Monitor:      monitor,
		Hub:          hub,
	}
}

// participantID pulls the authenticated id the Auth middleware stored.
func participantID(c *gin.Context) (string, bool) {
	v, ok := c.Get("participant_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// writeErr maps the error taxonomy onto HTTP statuses. Every expected
// failure mode comes back as {"error": "..."} rather than a panic or a bare
// 500.
func writeErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrNothingToUndo):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrWriteConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidIndex),
		errors.Is(err, domain.ErrUnknownVariable),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAlreadySeated),
		errors.Is(err, domain.ErrSeatOccupied),
		errors.Is(err, domain.ErrNoGuestSlots),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, settle.ErrNotEnoughPlayers),
		errors.Is(err, settle.ErrNoScoreVariable),
		errors.Is(err, settle.ErrNoBonusTable),
		errors.Is(err, settle.ErrConservation),
		errors.Is(err, settle.ErrTie):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func writeOK(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}
