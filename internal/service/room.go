package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"syncboard/internal/domain"
	"syncboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomService covers room lifecycle: creation with a short join code,
// lookup by id or code, host-only status changes, and deletion (which
// cascades to the ledger and settlements).
type RoomService struct {
	db    *pgxpool.Pool
	rooms *repository.RoomRepository
}

func NewRoomService(db *pgxpool.Pool) *RoomService {
	return &RoomService{db: db, rooms: repository.NewRoomRepository(db)}
}

// Create makes a room with four empty seats and an empty state document.
// A nil template selects the built-in preset.
func (s *RoomService) Create(ctx context.Context, hostID string, tpl *domain.Template) (*domain.Room, error) {
	template := domain.DefaultTemplate()
	if tpl != nil {
		template = *tpl
	}
	if len(template.Variables) == 0 {
		return nil, fmt.Errorf("%w: template has no variables", domain.ErrUnknownVariable)
	}
	if template.ForceLeaveTimeoutSec <= 0 {
		template.ForceLeaveTimeoutSec = 600
	}

	room := &domain.Room{
		ID:       uuid.NewString(),
		HostID:   hostID,
		CoHosts:  []string{}, // nil would encode as SQL NULL against a NOT NULL column
		Status:   domain.RoomStatusWaiting,
		Template: template,
		State:    domain.NewStateDocument(),
	}

	// join codes collide rarely; retry a few times on the unique index
	for attempt := 0; attempt < 5; attempt++ {
		room.RoomCode = newRoomCode()
		err := s.rooms.Create(ctx, room)
		if err == nil {
			return room, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}
	return nil, domain.ErrWriteConflict
}

func (s *RoomService) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *RoomService) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	return s.rooms.GetByCode(ctx, code)
}

// SetStatus moves a room through waiting → playing → finished. Host-only;
// the check runs against the locked row so a concurrent co-host revocation
// cannot race the update.
func (s *RoomService) SetStatus(ctx context.Context, roomID, callerID string, status domain.RoomStatus) error {
	switch status {
	case domain.RoomStatusWaiting, domain.RoomStatusPlaying, domain.RoomStatusFinished:
	default:
		return fmt.Errorf("invalid status %q", status)
	}
	return attemptTx(ctx, s.db, func(tx pgx.Tx) error {
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if !room.IsHost(callerID) {
			return domain.ErrPermissionDenied
		}
		return s.rooms.UpdateStatus(ctx, tx, roomID, status)
	})
}

// Delete removes the room and everything hanging off it. Host-only,
// checked on the locked row.
func (s *RoomService) Delete(ctx context.Context, roomID, callerID string) error {
	return attemptTx(ctx, s.db, func(tx pgx.Tx) error {
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if !room.IsHost(callerID) {
			return domain.ErrPermissionDenied
		}
		return s.rooms.Delete(ctx, tx, roomID)
	})
}

// AddCoHost grants another participant host privileges. Creator-only,
// checked on the locked row.
func (s *RoomService) AddCoHost(ctx context.Context, roomID, callerID, coHostID string) error {
	return attemptTx(ctx, s.db, func(tx pgx.Tx) error {
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if callerID != room.HostID {
			return domain.ErrPermissionDenied
		}
		if room.IsHost(coHostID) {
			return nil
		}
		return s.rooms.AddCoHost(ctx, tx, roomID, coHostID)
	})
}

func newRoomCode() string {
	return fmt.Sprintf("%06d", rand.IntN(1000000))
}
