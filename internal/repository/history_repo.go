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

type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert records one pre-image. It runs on whatever Querier the caller
// supplies, so the mutator can append to the ledger inside its own
// transaction and have state and history commit together.
func (h *HistoryRepository) Insert(ctx context.Context, q Querier, e *domain.HistoryEntry) error {
	snapJSON, err := json.Marshal(e.Snapshot)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO history_entries (id, room_id, message, snapshot)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, e.ID, e.RoomID, e.Message, snapJSON).Scan(&e.CreatedAt)
}

// Latest returns the newest entry, or nil when the ledger is empty.
func (h *HistoryRepository) Latest(ctx context.Context, q Querier, roomID string) (*domain.HistoryEntry, error) {
	e, err := scanEntry(q.QueryRow(ctx, `
		SELECT id, room_id, message, snapshot, created_at
		FROM history_entries
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, roomID))
	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil, nil
	}
	return e, err
}

func (h *HistoryRepository) GetByID(ctx context.Context, q Querier, roomID, entryID string) (*domain.HistoryEntry, error) {
	return scanEntry(q.QueryRow(ctx, `
		SELECT id, room_id, message, snapshot, created_at
		FROM history_entries
		WHERE room_id = $1 AND id = $2
	`, roomID, entryID))
}

func (h *HistoryRepository) DeleteByID(ctx context.Context, q Querier, entryID string) error {
	_, err := q.Exec(ctx, `DELETE FROM history_entries WHERE id = $1`, entryID)
	return err
}

// DeleteFrom removes every entry created at or after the given instant.
func (h *HistoryRepository) DeleteFrom(ctx context.Context, q Querier, roomID string, since time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM history_entries
		WHERE room_id = $1 AND created_at >= $2
	`, roomID, since)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// List pages the ledger newest-first on the (created_at, id) keyset — the
// id breaks timestamp ties so entries sharing an instant with the cursor
// are never skipped. The cursor is the last entry of the previous page.
func (h *HistoryRepository) List(ctx context.Context, roomID string, cursor *time.Time, cursorID string, limit int) ([]*domain.HistoryEntry, bool, error) {
	if limit <= 0 {
		limit = 10
	}

	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case cursor != nil && cursorID != "":
		rows, err = h.db.Query(ctx, `
			SELECT id, room_id, message, snapshot, created_at
			FROM history_entries
			WHERE room_id = $1 AND (created_at, id) < ($2, $3::uuid)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, roomID, *cursor, cursorID, limit+1)
	case cursor != nil:
		rows, err = h.db.Query(ctx, `
			SELECT id, room_id, message, snapshot, created_at
			FROM history_entries
			WHERE room_id = $1 AND created_at < $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, roomID, *cursor, limit+1)
	default:
		rows, err = h.db.Query(ctx, `
			SELECT id, room_id, message, snapshot, created_at
			FROM history_entries
			WHERE room_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, roomID, limit+1)
	}
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var (
			e        domain.HistoryEntry
			snapJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.RoomID, &e.Message, &snapJSON, &e.CreatedAt); err != nil {
			return nil, false, err
		}
		if err := json.Unmarshal(snapJSON, &e.Snapshot); err != nil {
			return nil, false, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}

func scanEntry(row pgx.Row) (*domain.HistoryEntry, error) {
	var (
		e        domain.HistoryEntry
		snapJSON []byte
	)
	err := row.Scan(&e.ID, &e.RoomID, &e.Message, &snapJSON, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(snapJSON, &e.Snapshot); err != nil {
		return nil, err
	}
	return &e, nil
}
