package settle

import (
	"errors"
	"math"
	"testing"

	"syncboard/internal/domain"
)

func fourPlayerRoom(scores []int64) (domain.StateDocument, domain.Seats, domain.Template) {
	tpl := domain.DefaultTemplate()
	state := domain.NewStateDocument()
	var seats domain.Seats

	names := []string{"East", "South", "West", "North"}
	ids := []string{"p1", "p2", "p3", "p4"}
	for i, score := range scores {
		seats[i] = &domain.Seat{ParticipantID: ids[i], DisplayName: names[i], Kind: domain.SeatKindReal}
		state.Participants[ids[i]] = domain.ParticipantState{
			Values:      map[string]int64{"score": score},
			DisplayName: names[i],
		}
	}
	return state, seats, tpl
}

func TestExecute_RanksAndZeroSum(t *testing.T) {
	// seat order scores; expected ranks by descending score
	state, seats, tpl := fourPlayerRoom([]int64{20000, 38000, 24000, 18000})

	s, err := Execute(state, seats, tpl)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantRanks := map[string]int{"p1": 3, "p2": 1, "p3": 2, "p4": 4}
	for id, want := range wantRanks {
		if got := s.Results[id].Rank; got != want {
			t.Errorf("rank of %s = %d; want %d", id, got, want)
		}
	}

	// 18000 - 20000 = -2000 would be -2.0; the last rank instead absorbs
	// the other three results: -(58.0 + 29.0 + 15.0)
	if got := s.Results["p4"].Result; got != -102.0 {
		t.Errorf("last rank result = %v; want -102.0", got)
	}

	var sum float64
	for _, r := range s.Results {
		sum += r.Result
	}
	if sum != 0 {
		t.Errorf("settlement sum = %v; want exactly 0", sum)
	}
}

func TestExecute_ZeroSumWithRoundingResidue(t *testing.T) {
	// scores chosen so divided values truncate and leave residue
	state, seats, tpl := fourPlayerRoom([]int64{25100, 24900, 26050, 23950})

	s, err := Execute(state, seats, tpl)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var sum float64
	for _, r := range s.Results {
		sum += r.Result
	}
	if sum != 0 {
		t.Errorf("settlement sum = %v; want exactly 0", sum)
	}
}

func TestCanExecute_Failures(t *testing.T) {
	cases := []struct {
		name   string
		scores []int64
		mutate func(*domain.StateDocument, *domain.Seats, *domain.Template)
		want   error
	}{
		{
			name:   "tie",
			scores: []int64{25000, 25000, 26000, 24000},
			want:   ErrTie,
		},
		{
			name:   "conservation broken",
			scores: []int64{25000, 25000, 26000, 24000},
			mutate: func(s *domain.StateDocument, _ *domain.Seats, _ *domain.Template) {
				ps := s.Participants["p1"]
				ps.Values["score"] = 20000
				s.Participants["p1"] = ps
			},
			want: ErrConservation,
		},
		{
			name:   "one player",
			scores: []int64{25000},
			want:   ErrNotEnoughPlayers,
		},
		{
			name:   "missing score variable",
			scores: []int64{24000, 26000},
			mutate: func(_ *domain.StateDocument, _ *domain.Seats, tpl *domain.Template) {
				tpl.Settlement.ScoreVariable = "chips"
			},
			want: ErrNoScoreVariable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, seats, tpl := fourPlayerRoom(tc.scores)
			if tc.mutate != nil {
				tc.mutate(&state, &seats, &tpl)
			}
			err := CanExecute(state, seats, tpl)
			if !errors.Is(err, tc.want) {
				t.Fatalf("CanExecute = %v; want %v", err, tc.want)
			}
		})
	}
}

func TestCanExecute_PotCountsTowardConservation(t *testing.T) {
	state, seats, tpl := fourPlayerRoom([]int64{24000, 26000, 23000, 26500})
	state.Pot["score"] = 500

	if err := CanExecute(state, seats, tpl); err != nil {
		t.Fatalf("CanExecute with pot = %v; want nil", err)
	}
}

func TestTruncateTenth(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{58.0, 58.0},
		{29.99, 29.9},
		{-3.5, -3.5},
		{-3.501, -3.6},
		{0.04, 0.0},
		{-0.04, -0.1},
	}
	for _, tc := range cases {
		if got := truncateTenth(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("truncateTenth(%v) = %v; want %v", tc.in, got, tc.want)
		}
	}
}
