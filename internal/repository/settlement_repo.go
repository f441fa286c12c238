package repository

import (
	"context"
	"encoding/json"
	"time"

	"syncboard/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SettlementRepository struct {
	db *pgxpool.Pool
}

func NewSettlementRepository(db *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Insert(ctx context.Context, q Querier, s *domain.Settlement) error {
	resultsJSON, err := json.Marshal(s.Results)
	if err != nil {
		return err
	}
	return q.QueryRow(ctx, `
		INSERT INTO settlements (id, room_id, kind, results)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, s.ID, s.RoomID, s.Kind, resultsJSON).Scan(&s.CreatedAt)
}

// ListByRoom returns settlements oldest-first.
func (r *SettlementRepository) ListByRoom(ctx context.Context, roomID string) ([]*domain.Settlement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, room_id, kind, results, created_at
		FROM settlements
		WHERE room_id = $1
		ORDER BY created_at ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Settlement
	for rows.Next() {
		var (
			s           domain.Settlement
			resultsJSON []byte
		)
		if err := rows.Scan(&s.ID, &s.RoomID, &s.Kind, &resultsJSON, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(resultsJSON, &s.Results); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteSince removes settlements created at or after the given instant.
// Rollback uses this to drop results that no longer correspond to any
// surviving ledger entry.
func (r *SettlementRepository) DeleteSince(ctx context.Context, q Querier, roomID string, since time.Time) (int64, error) {
	tag, err := q.Exec(ctx, `
		DELETE FROM settlements
		WHERE room_id = $1 AND created_at >= $2
	`, roomID, since)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
