package service

import (
	"context"

	"syncboard/internal/domain"
	"syncboard/internal/repository"
	"syncboard/internal/settle"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettlementService runs the pure settlement math against a locked read of
// the room and persists the result. Execution never mutates the state
// document; the zero-sum result set is its own record.
type SettlementService struct {
	db          *pgxpool.Pool
	rooms       *repository.RoomRepository
	settlements *repository.SettlementRepository
	notifier    Notifier
}

func NewSettlementService(db *pgxpool.Pool, notifier Notifier) *SettlementService {
	return &SettlementService{
		db:          db,
		rooms:       repository.NewRoomRepository(db),
		settlements: repository.NewSettlementRepository(db),
		notifier:    notifier,
	}
}

// CanExecute checks settlement preconditions against the current state.
func (s *SettlementService) CanExecute(ctx context.Context, roomID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	return settle.CanExecute(room.State, room.Seats, room.Template)
}

// Execute computes and stores a settlement for the room's seated scores.
func (s *SettlementService) Execute(ctx context.Context, roomID string) (*domain.Settlement, error) {
	var result *domain.Settlement
	err := attemptTx(ctx, s.db, func(tx pgx.Tx) error {
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}
		result, err = settle.Execute(room.State, room.Seats, room.Template)
		if err != nil {
			return err
		}
		result.ID = uuid.NewString()
		result.RoomID = roomID
		return s.settlements.Insert(ctx, tx, result)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.RoomChanged(ctx, roomID, result.ID)
	return result, nil
}

// Fetch returns the room's settlements oldest-first.
func (s *SettlementService) Fetch(ctx context.Context, roomID string) ([]*domain.Settlement, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.settlements.ListByRoom(ctx, roomID)
}
