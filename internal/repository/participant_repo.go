package repository

import (
	"context"
	"errors"
	"time"

	"syncboard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Participant - an anonymous identity issued at login
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type ParticipantRepository struct {
	db *pgxpool.Pool
}

func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(ctx context.Context, p *Participant) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO participants (id, display_name)
		VALUES ($1, $2)
		RETURNING created_at
	`, p.ID, p.DisplayName).Scan(&p.CreatedAt)
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*Participant, error) {
	var p Participant
	err := r.db.QueryRow(ctx, `
		SELECT id, display_name, created_at FROM participants WHERE id = $1
	`, id).Scan(&p.ID, &p.DisplayName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepository) UpdateDisplayName(ctx context.Context, id, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE participants SET display_name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}
