// Package settle computes zero-sum settlements over a room's seated scores.
// It is pure: no storage, no clock beyond the caller-supplied timestamp.
package settle

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"syncboard/internal/domain"
)

var (
	ErrNotEnoughPlayers = errors.New("settlement needs at least 2 seated participants")
	ErrNoScoreVariable  = errors.New("template has no score variable")
	ErrNoBonusTable     = errors.New("no rank bonus table for this player count")
	ErrConservation     = errors.New("score total does not match expected total")
	ErrTie              = errors.New("tied scores cannot be ranked")
)

type ranked struct {
	id    string
	name  string
	score int64
}

// CanExecute validates that a settlement can run: enough seated players, a
// designated score variable, exact conservation, and no tied scores.
func CanExecute(state domain.StateDocument, seats domain.Seats, tpl domain.Template) error {
	players, err := seatedScores(state, seats, tpl)
	if err != nil {
		return err
	}

	v, _ := tpl.Variable(tpl.Settlement.ScoreVariable)
	var total int64
	seen := make(map[int64]string, len(players))
	for _, p := range players {
		if other, dup := seen[p.score]; dup {
			return fmt.Errorf("%w: %s and %s both at %d", ErrTie, other, p.id, p.score)
		}
		seen[p.score] = p.id
		total += p.score
	}
	total += state.Pot[tpl.Settlement.ScoreVariable]

	expected := v.Initial * int64(len(players))
	if total != expected {
		return fmt.Errorf("%w: have %d, want %d", ErrConservation, total, expected)
	}
	return nil
}

// Execute ranks seated participants by score descending and produces an
// exactly zero-sum settlement. Every rank's result is the one-decimal
// truncation of (score+bonus)/divider, except the last rank, which absorbs
// the rounding residue so the column sums to zero by construction.
func Execute(state domain.StateDocument, seats domain.Seats, tpl domain.Template) (*domain.Settlement, error) {
	if err := CanExecute(state, seats, tpl); err != nil {
		return nil, err
	}
	players, err := seatedScores(state, seats, tpl)
	if err != nil {
		return nil, err
	}

	bonuses, ok := tpl.Settlement.RankBonus[len(players)]
	if !ok || len(bonuses) < len(players) {
		return nil, fmt.Errorf("%w: %d players", ErrNoBonusTable, len(players))
	}

	sort.Slice(players, func(i, j int) bool { return players[i].score > players[j].score })

	results := make(map[string]domain.PlayerResult, len(players))
	var sumDivided float64
	for i, p := range players {
		bonus := bonuses[i]
		divided := truncateTenth(float64(p.score+bonus) / float64(tpl.Settlement.Divider))
		result := divided
		if i == len(players)-1 {
			result = -sumDivided
		} else {
			sumDivided += divided
		}
		results[p.id] = domain.PlayerResult{
			DisplayName: p.name,
			Rank:        i + 1,
			Score:       p.score,
			Bonus:       bonus,
			Result:      result,
		}
	}

	return &domain.Settlement{
		Kind:    domain.SettlementKindSettlement,
		Results: results,
	}, nil
}

// truncateTenth floors toward negative infinity on the scaled integer,
// keeping exactly one decimal place.
func truncateTenth(v float64) float64 {
	return math.Floor(v*10) / 10
}

func seatedScores(state domain.StateDocument, seats domain.Seats, tpl domain.Template) ([]ranked, error) {
	key := tpl.Settlement.ScoreVariable
	if _, ok := tpl.Variable(key); !ok {
		return nil, ErrNoScoreVariable
	}

	var players []ranked
	for _, seat := range seats {
		if seat == nil {
			continue
		}
		ps, ok := state.Participants[seat.ParticipantID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrParticipantNotFound, seat.ParticipantID)
		}
		players = append(players, ranked{
			id:    seat.ParticipantID,
			name:  seat.DisplayName,
			score: ps.Values[key],
		})
	}
	if len(players) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	return players, nil
}
