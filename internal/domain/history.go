package domain

import "time"

// HistoryEntry - one ledger record: the state as it was immediately before
// the associated mutation
type HistoryEntry struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Message   string    `json:"message"`
	Snapshot  Snapshot  `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
}

// SettlementKind distinguishes full settlements from manual adjustments.
type SettlementKind string

const (
	SettlementKindSettlement SettlementKind = "settlement"
	SettlementKindAdjustment SettlementKind = "adjustment"
)

// PlayerResult - one participant's line in a settlement
type PlayerResult struct {
	DisplayName string  `json:"display_name"`
	Rank        int     `json:"rank"`
	Score       int64   `json:"score"`
	Bonus       int64   `json:"bonus"`
	Result      float64 `json:"result"`
}

// Settlement - a finalized zero-sum result set for one round
type Settlement struct {
	ID        string                  `json:"id"`
	RoomID    string                  `json:"room_id"`
	Kind      SettlementKind          `json:"kind"`
	Results   map[string]PlayerResult `json:"results"`
	CreatedAt time.Time               `json:"created_at"`
}

// ConnectionStatus - a participant's liveness as seen by the presence monitor
type ConnectionStatus struct {
	ParticipantID  string     `json:"participant_id"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}
