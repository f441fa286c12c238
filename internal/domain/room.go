package domain

import (
	"strings"
	"time"
)

// RoomStatus - lifecycle of a room
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusPlaying  RoomStatus = "playing"
	RoomStatusFinished RoomStatus = "finished"
)

// SeatKind - who occupies a seat
type SeatKind string

const (
	SeatKindReal  SeatKind = "real"
	SeatKindGuest SeatKind = "guest"
)

// SeatCount is fixed: every room always has exactly 4 slots.
const SeatCount = 4

// PotParty is the reserved transfer party naming the shared pot.
const PotParty = "pot"

// GuestIDPrefix marks synthetic participant ids created by a host.
const GuestIDPrefix = "guest-"

// Variable - one numeric field tracked per participant
type Variable struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Initial int64  `json:"initial"`
}

// SettlementConfig - per-template settlement math parameters
type SettlementConfig struct {
	ScoreVariable string          `json:"score_variable"`
	Divider       int64           `json:"divider"`
	RankBonus     map[int][]int64 `json:"rank_bonus"` // keyed by seated player count (3 or 4)
}

// Template - the board definition a host configures for a room
type Template struct {
	Variables            []Variable       `json:"variables"`
	LayoutMode           string           `json:"layout_mode"`
	EditableBy           []string         `json:"editable_by,omitempty"`
	Settlement           SettlementConfig `json:"settlement"`
	ForceLeaveTimeoutSec int              `json:"force_leave_timeout_sec"`
}

// Variable returns the template variable with the given key.
func (t Template) Variable(key string) (Variable, bool) {
	for _, v := range t.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return Variable{}, false
}

// InitialValues builds a fresh variable map from the template defaults.
func (t Template) InitialValues() map[string]int64 {
	vals := make(map[string]int64, len(t.Variables))
	for _, v := range t.Variables {
		vals[v.Key] = v.Initial
	}
	return vals
}

// Seat - one of the four fixed slots
type Seat struct {
	ParticipantID string   `json:"participant_id"`
	DisplayName   string   `json:"display_name"`
	Kind          SeatKind `json:"kind"`
	Status        string   `json:"status,omitempty"`
}

// Seats is the fixed-length slot array. A nil element is an empty slot.
type Seats [SeatCount]*Seat

// IndexOf returns the slot index occupied by the participant, or -1.
func (s Seats) IndexOf(participantID string) int {
	for i, seat := range s {
		if seat != nil && seat.ParticipantID == participantID {
			return i
		}
	}
	return -1
}

// SeatedIDs lists occupant ids in slot order.
func (s Seats) SeatedIDs() []string {
	ids := make([]string, 0, SeatCount)
	for _, seat := range s {
		if seat != nil {
			ids = append(ids, seat.ParticipantID)
		}
	}
	return ids
}

// Room - one shared scoring session
type Room struct {
	ID        string        `json:"id"`
	RoomCode  string        `json:"room_code"`
	HostID    string        `json:"host_id"`
	CoHosts   []string      `json:"co_hosts,omitempty"`
	Status    RoomStatus    `json:"status"`
	Template  Template      `json:"template"`
	Seats     Seats         `json:"seats"`
	State     StateDocument `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
}

// IsHost reports whether the caller is the room creator or a co-host.
func (r *Room) IsHost(participantID string) bool {
	if participantID == r.HostID {
		return true
	}
	for _, id := range r.CoHosts {
		if id == participantID {
			return true
		}
	}
	return false
}

// guestNames is the fixed alphabet for synthetic occupants.
var guestNames = []string{
	"Guest A", "Guest B", "Guest C", "Guest D",
	"Guest E", "Guest F", "Guest G", "Guest H",
}

// NextGuestName picks the lexicographically-first unused guest display name,
// scanning occupied seats and any retained guest state entries so a vacated
// guest's name is not reissued while its data survives.
func NextGuestName(seats Seats, state StateDocument) (string, error) {
	used := make(map[string]bool)
	for _, seat := range seats {
		if seat != nil {
			used[seat.DisplayName] = true
		}
	}
	for id, ps := range state.Participants {
		if strings.HasPrefix(id, GuestIDPrefix) {
			used[ps.DisplayName] = true
		}
	}
	for _, name := range guestNames {
		if !used[name] {
			return name, nil
		}
	}
	return "", ErrNoGuestSlots
}

// DefaultTemplate is the built-in riichi scoring preset used when a room is
// created without an explicit template.
func DefaultTemplate() Template {
	return Template{
		Variables: []Variable{
			{Key: "score", Label: "Score", Initial: 25000},
		},
		LayoutMode:           "standard",
		ForceLeaveTimeoutSec: 600,
		Settlement: SettlementConfig{
			ScoreVariable: "score",
			Divider:       1000,
			RankBonus: map[int][]int64{
				3: {15000, 0, -15000},
				4: {20000, 5000, -5000, -20000},
			},
		},
	}
}
