package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"syncboard/internal/domain"
	"syncboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MutatorService executes every compound room mutation as one transaction:
// lock the room row, validate, mutate, write state and seats, verify the
// write marker, append the pre-image to the ledger, commit. Concurrent
// writers serialize on the row lock, so nothing partially applies and no
// update is lost.
type MutatorService struct {
	db          *pgxpool.Pool
	rooms       *repository.RoomRepository
	history     *repository.HistoryRepository
	notifier    Notifier
	maxAttempts int
}

func NewMutatorService(db *pgxpool.Pool, notifier Notifier, maxAttempts int) *MutatorService {
	return &MutatorService{
		db:          db,
		rooms:       repository.NewRoomRepository(db),
		history:     repository.NewHistoryRepository(db),
		notifier:    notifier,
		maxAttempts: maxAttempts,
	}
}

// mutateFn inspects and mutates the locked room. It returns the ledger /
// preview-log message and whether anything actually changed; changed=false
// commits nothing and is reported as success.
type mutateFn func(room *domain.Room) (message string, changed bool, err error)

func (s *MutatorService) mutate(ctx context.Context, roomID, op string, fn mutateFn) error {
	var marker string
	err := runInTx(ctx, s.db, s.maxAttempts, func(tx pgx.Tx) error {
		marker = ""
		room, err := s.rooms.GetForUpdate(ctx, tx, roomID)
		if err != nil {
			return err
		}

		pre := room.State.Snapshot()
		msg, changed, err := fn(room)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

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

		return s.history.Insert(ctx, tx, &domain.HistoryEntry{
			ID:       uuid.NewString(),
			RoomID:   roomID,
			Message:  msg,
			Snapshot: pre,
		})
	})

	switch {
	case err == nil:
		mutationsTotal.WithLabelValues(op, "ok").Inc()
		if marker != "" {
			s.notifier.RoomChanged(ctx, roomID, marker)
		}
	case errors.Is(err, domain.ErrWriteConflict):
		mutationsTotal.WithLabelValues(op, "conflict").Inc()
		writeConflictsTotal.Inc()
	default:
		mutationsTotal.WithLabelValues(op, "error").Inc()
	}
	return err
}

// Transfer moves the listed amounts between two parties (participant ids or
// the pot). Transferring to oneself is a success no-op.
func (s *MutatorService) Transfer(ctx context.Context, roomID, from, to string, items []domain.TransferItem, fromLabel, toLabel string) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty transfer", domain.ErrInvalidAmount)
	}
	return s.mutate(ctx, roomID, "transfer", func(room *domain.Room) (string, bool, error) {
		for _, it := range items {
			if _, ok := room.Template.Variable(it.Variable); !ok {
				return "", false, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, it.Variable)
			}
		}
		if from == to {
			return "", false, nil
		}
		if err := room.State.ApplyTransfer(from, to, items); err != nil {
			return "", false, err
		}
		return transferMessage(room, from, to, items, fromLabel, toLabel), true, nil
	})
}

// JoinSeat seats a participant, initializing its state from the template
// defaults when it has none yet.
func (s *MutatorService) JoinSeat(ctx context.Context, roomID string, seatIndex int, participantID, displayName string) error {
	if seatIndex < 0 || seatIndex >= domain.SeatCount {
		return fmt.Errorf("%w: %d", domain.ErrInvalidIndex, seatIndex)
	}
	return s.mutate(ctx, roomID, "join_seat", func(room *domain.Room) (string, bool, error) {
		if room.Seats.IndexOf(participantID) >= 0 {
			return "", false, domain.ErrAlreadySeated
		}
		if room.Seats[seatIndex] != nil {
			return "", false, domain.ErrSeatOccupied
		}
		room.Seats[seatIndex] = &domain.Seat{
			ParticipantID: participantID,
			DisplayName:   displayName,
			Kind:          domain.SeatKindReal,
			Status:        "active",
		}
		room.State.EnsureParticipant(participantID, displayName, room.Template)
		return fmt.Sprintf("%s joined seat %d", displayName, seatIndex+1), true, nil
	})
}

// JoinGuestSeat seats a host-managed synthetic participant. Host-only,
// enforced inside the transaction.
func (s *MutatorService) JoinGuestSeat(ctx context.Context, roomID, callerID string, seatIndex int) error {
	if seatIndex < 0 || seatIndex >= domain.SeatCount {
		return fmt.Errorf("%w: %d", domain.ErrInvalidIndex, seatIndex)
	}
	return s.mutate(ctx, roomID, "join_guest_seat", func(room *domain.Room) (string, bool, error) {
		if !room.IsHost(callerID) {
			return "", false, domain.ErrPermissionDenied
		}
		if room.Seats[seatIndex] != nil {
			return "", false, domain.ErrSeatOccupied
		}
		name, err := domain.NextGuestName(room.Seats, room.State)
		if err != nil {
			return "", false, err
		}
		guestID := domain.GuestIDPrefix + uuid.NewString()
		room.Seats[seatIndex] = &domain.Seat{
			ParticipantID: guestID,
			DisplayName:   name,
			Kind:          domain.SeatKindGuest,
			Status:        "active",
		}
		room.State.EnsureParticipant(guestID, name, room.Template)
		return fmt.Sprintf("%s joined seat %d", name, seatIndex+1), true, nil
	})
}

// LeaveSeat vacates the participant's seat. Its state entry is retained so
// it can be re-seated later with the same balances.
func (s *MutatorService) LeaveSeat(ctx context.Context, roomID, participantID string) error {
	return s.vacate(ctx, roomID, participantID, "leave_seat", false)
}

// ForceLeaveSeat vacates the seat on behalf of the presence monitor. It is
// idempotent: an already-vacant participant is a success no-op, since the
// timeout path may race a voluntary leave.
func (s *MutatorService) ForceLeaveSeat(ctx context.Context, roomID, participantID string) error {
	return s.vacate(ctx, roomID, participantID, "force_leave_seat", true)
}

func (s *MutatorService) vacate(ctx context.Context, roomID, participantID, op string, idempotent bool) error {
	return s.mutate(ctx, roomID, op, func(room *domain.Room) (string, bool, error) {
		idx := room.Seats.IndexOf(participantID)
		if idx < 0 {
			if idempotent {
				return "", false, nil
			}
			return "", false, fmt.Errorf("%w: %s", domain.ErrParticipantNotFound, participantID)
		}
		name := room.Seats[idx].DisplayName
		room.Seats[idx] = nil
		return fmt.Sprintf("%s left seat %d", name, idx+1), true, nil
	})
}

// ForceEdit overwrites one or more variables for a participant. Host-only.
func (s *MutatorService) ForceEdit(ctx context.Context, roomID, callerID, participantID string, values map[string]int64, label string) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: empty edit", domain.ErrUnknownVariable)
	}
	return s.mutate(ctx, roomID, "force_edit", func(room *domain.Room) (string, bool, error) {
		if !room.IsHost(callerID) {
			return "", false, domain.ErrPermissionDenied
		}
		for key := range values {
			if _, ok := room.Template.Variable(key); !ok {
				return "", false, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, key)
			}
		}
		if err := room.State.ApplyForceEdit(participantID, values); err != nil {
			return "", false, err
		}
		msg := label
		if msg == "" {
			msg = fmt.Sprintf("Edited %s", partyName(room, participantID, ""))
		}
		return msg, true, nil
	})
}

// ResetVariables restores the named variables to their template initial
// value for every participant and zeroes them in the pot. Host-only.
func (s *MutatorService) ResetVariables(ctx context.Context, roomID, callerID string, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: no variables named", domain.ErrUnknownVariable)
	}
	return s.mutate(ctx, roomID, "reset_variables", func(room *domain.Room) (string, bool, error) {
		if !room.IsHost(callerID) {
			return "", false, domain.ErrPermissionDenied
		}
		if err := room.State.ApplyReset(keys, room.Template); err != nil {
			return "", false, err
		}
		return "Reset " + strings.Join(keys, ", "), true, nil
	})
}

func transferMessage(room *domain.Room, from, to string, items []domain.TransferItem, fromLabel, toLabel string) string {
	fromName := partyName(room, from, fromLabel)
	toName := partyName(room, to, toLabel)

	parts := make([]string, 0, len(items))
	for _, it := range items {
		label := it.Variable
		if v, ok := room.Template.Variable(it.Variable); ok {
			label = v.Label
		}
		parts = append(parts, fmt.Sprintf("%s %d", label, it.Amount))
	}
	return fmt.Sprintf("%s → %s: %s", fromName, toName, strings.Join(parts, ", "))
}

func partyName(room *domain.Room, party, label string) string {
	if label != "" {
		return label
	}
	if party == domain.PotParty {
		return "Pot"
	}
	if ps, ok := room.State.Participants[party]; ok && ps.DisplayName != "" {
		return ps.DisplayName
	}
	if idx := room.Seats.IndexOf(party); idx >= 0 {
		return room.Seats[idx].DisplayName
	}
	return party
}
