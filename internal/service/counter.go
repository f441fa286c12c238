package service

import (
	"context"

	"syncboard/internal/domain"
	"syncboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CounterService is the compare-and-swap primitive over the room's counter
// field. Clients coalesce repeated local increments and commit once after an
// idle debounce window; on conflict they replace their local value with the
// authoritative one, so the server never retries a CAS on their behalf.
type CounterService struct {
	db       *pgxpool.Pool
	rooms    *repository.RoomRepository
	notifier Notifier
}

func NewCounterService(db *pgxpool.Pool, notifier Notifier) *CounterService {
	return &CounterService{
		db:       db,
		rooms:    repository.NewRoomRepository(db),
		notifier: notifier,
	}
}

// Commit writes newValue if the stored counter still equals expected.
// On mismatch it reports conflict=true with the authoritative current value
// and mutates nothing.
func (s *CounterService) Commit(ctx context.Context, roomID string, expected, newValue int64) (current int64, conflict bool, err error) {
	var marker string
	err = attemptTx(ctx, s.db, func(tx pgx.Tx) error {
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if room.State.Counter != expected {
			current = room.State.Counter
			conflict = true
			return nil
		}

		room.State.Counter = newValue
		marker = uuid.NewString()
		room.State.WriteMarker = marker

		got, err := s.rooms.SaveState(ctx, tx, roomID, room.State, room.Seats)
		if err != nil {
			return err
		}
		if got != marker {
			return domain.ErrWriteConflict
		}
		current = newValue
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if conflict {
		casConflictsTotal.Inc()
		return current, true, nil
	}
	s.notifier.RoomChanged(ctx, roomID, marker)
	return current, false, nil
}
