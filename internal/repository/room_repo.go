package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"syncboard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	tplJSON, err := json.Marshal(room.Template)
	if err != nil {
		return err
	}
	seatsJSON, err := json.Marshal(room.Seats)
	if err != nil {
		return err
	}
	stateJSON, err := json.Marshal(room.State)
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO rooms (id, room_code, host_id, co_hosts, status, template, seats, state)
		VALUES ($1, $2, $3, COALESCE($4, '{}'::uuid[]), $5, $6, $7, $8)
		RETURNING created_at
	`, room.ID, room.RoomCode, room.HostID, room.CoHosts, room.Status,
		tplJSON, seatsJSON, stateJSON).Scan(&room.CreatedAt)
}

const roomColumns = `id, room_code, host_id, co_hosts, status, template, seats, state, created_at`

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	return scanRoom(r.db.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

func (r *RoomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	return scanRoom(r.db.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE room_code = $1`, code))
}

// GetForUpdate locks the room row for the remainder of the transaction.
// Every compound mutation starts here so concurrent writers serialize on
// the row instead of clobbering each other.
func (r *RoomRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Room, error) {
	return scanRoom(tx.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1 FOR UPDATE`, id))
}

// SaveState writes the state document and seats, returning the write marker
// read back from the stored row so callers can verify the write they are
// about to treat as durable is their own.
func (r *RoomRepository) SaveState(ctx context.Context, tx pgx.Tx, id string, state domain.StateDocument, seats domain.Seats) (string, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	seatsJSON, err := json.Marshal(seats)
	if err != nil {
		return "", err
	}

	var marker string
	err = tx.QueryRow(ctx, `
		UPDATE rooms SET state = $2, seats = $3
		WHERE id = $1
		RETURNING state->>'write_marker'
	`, id, stateJSON, seatsJSON).Scan(&marker)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrRoomNotFound
	}
	return marker, err
}

func (r *RoomRepository) UpdateStatus(ctx context.Context, q Querier, id string, status domain.RoomStatus) error {
	tag, err := q.Exec(ctx, `UPDATE rooms SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// Delete removes the room; ledger entries and settlements cascade.
func (r *RoomRepository) Delete(ctx context.Context, q Querier, id string) error {
	tag, err := q.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// AddCoHost appends a participant to the co-host array.
func (r *RoomRepository) AddCoHost(ctx context.Context, q Querier, id, coHostID string) error {
	tag, err := q.Exec(ctx,
		`UPDATE rooms SET co_hosts = array_append(co_hosts, $2) WHERE id = $1`,
		id, coHostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// SeatedParticipants implements presence.RoomSource.
func (r *RoomRepository) SeatedParticipants(ctx context.Context, roomID string) ([]string, error) {
	room, err := r.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Seats.SeatedIDs(), nil
}

// ForceLeaveTimeout implements presence.RoomSource.
func (r *RoomRepository) ForceLeaveTimeout(ctx context.Context, roomID string) (time.Duration, error) {
	room, err := r.GetByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return time.Duration(room.Template.ForceLeaveTimeoutSec) * time.Second, nil
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		room                          domain.Room
		tplJSON, seatsJSON, stateJSON []byte
	)
	err := row.Scan(&room.ID, &room.RoomCode, &room.HostID, &room.CoHosts,
		&room.Status, &tplJSON, &seatsJSON, &stateJSON, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(tplJSON, &room.Template); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(seatsJSON, &room.Seats); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stateJSON, &room.State); err != nil {
		return nil, err
	}
	if room.State.Participants == nil {
		room.State.Participants = make(map[string]domain.ParticipantState)
	}
	if room.State.Pot == nil {
		room.State.Pot = make(map[string]int64)
	}
	return &room, nil
}
