package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"syncboard/internal/domain"
	"syncboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryService owns undo and point-in-time rollback over the append-only
// ledger of pre-image snapshots. Both operations run under the same
// transaction discipline as the mutator, so restoring, compacting the
// ledger, and cleaning up dependent settlements commit as one unit.
type HistoryService struct {
	db          *pgxpool.Pool
	rooms       *repository.RoomRepository
	history     *repository.HistoryRepository
	settlements *repository.SettlementRepository
	notifier    Notifier
	maxAttempts int
}

func NewHistoryService(db *pgxpool.Pool, notifier Notifier, maxAttempts int) *HistoryService {
	return &HistoryService{
		db:          db,
		rooms:       repository.NewRoomRepository(db),
		history:     repository.NewHistoryRepository(db),
		settlements: repository.NewSettlementRepository(db),
		notifier:    notifier,
		maxAttempts: maxAttempts,
	}
}

// Undo restores the newest ledger entry's snapshot, deletes that entry, and
// retracts the matching preview-log line.
func (s *HistoryService) Undo(ctx context.Context, roomID string) error {
	var marker string
	err := runInTx(ctx, s.db, s.maxAttempts, func(tx pgx.Tx) error {
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}

		latest, err := s.history.Latest(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if latest == nil {
			return domain.ErrNothingToUndo
		}

		room.State.Restore(latest.Snapshot, room.Seats, room.Template)
		room.State.RemovePreviewByMessage(latest.Message)
		marker = uuid.NewString()
		room.State.WriteMarker = marker

		got, err := s.rooms.SaveState(ctx, tx, roomID, room.State, room.Seats)
		if err != nil {
			return err
		}
		if got != marker {
			return domain.ErrWriteConflict
		}
		return s.history.DeleteByID(ctx, tx, latest.ID)
	})
	if err == nil {
		s.notifier.RoomChanged(ctx, roomID, marker)
	}
	return err
}

// RollbackTo restores the snapshot of the given entry, removes every entry
// from it through the newest along with settlements created at or after it,
// and appends one new entry holding the pre-rollback state so the rollback
// itself is undoable.
func (s *HistoryService) RollbackTo(ctx context.Context, roomID, entryID string) error {
	var marker string
	err := runInTx(ctx, s.db, s.maxAttempts, func(tx pgx.Tx) error {
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}

		target, err := s.history.GetByID(ctx, tx, roomID, entryID)
		if err != nil {
			return err
		}

		pre := room.State.Snapshot()
		msg := fmt.Sprintf("Rolled back to %s", target.CreatedAt.Format(time.RFC3339))

		room.State.Restore(target.Snapshot, room.Seats, room.Template)
		room.State.PushPreview(uuid.NewString(), msg, time.Now().UTC())
		marker = uuid.NewString()
		room.State.WriteMarker = marker

		got, err := s.rooms.SaveState(ctx, tx, roomID, room.State, room.Seats)
		if err != nil {
			return err
		}
		if got != marker {
			return domain.ErrWriteConflict
		}

		if _, err := s.history.DeleteFrom(ctx, tx, roomID, target.CreatedAt); err != nil {
			return err
		}
		if _, err := s.settlements.DeleteSince(ctx, tx, roomID, target.CreatedAt); err != nil {
			return err
		}

		return s.history.Insert(ctx, tx, &domain.HistoryEntry{
			ID:       uuid.NewString(),
			RoomID:   roomID,
			Message:  msg,
			Snapshot: pre,
		})
	})
	if err == nil {
		s.notifier.RoomChanged(ctx, roomID, marker)
	}
	return err
}

// FetchHistory pages ledger entries newest-first. The cursor is the
// (created_at, id) of the last entry of the previous page.
func (s *HistoryService) FetchHistory(ctx context.Context, roomID string, cursor *time.Time, cursorID string, limit int) ([]*domain.HistoryEntry, bool, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, false, err
	}
	return s.history.List(ctx, roomID, cursor, cursorID, limit)
}

// IsNotFound reports whether err is one of the ledger's not-found variants.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrEntryNotFound) ||
		errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrParticipantNotFound)
}
