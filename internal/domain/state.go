package domain

import (
	"fmt"
	"time"
)

// PreviewLogCapacity bounds the in-document preview log ring.
const PreviewLogCapacity = 5

// ParticipantState - one participant's variable values inside a room
type ParticipantState struct {
	Values      map[string]int64 `json:"values"`
	DisplayName string           `json:"display_name,omitempty"`
}

// Clone returns a deep copy.
func (p ParticipantState) Clone() ParticipantState {
	vals := make(map[string]int64, len(p.Values))
	for k, v := range p.Values {
		vals[k] = v
	}
	return ParticipantState{Values: vals, DisplayName: p.DisplayName}
}

// PreviewLogEntry - one line of the short human-readable operation log
type PreviewLogEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// StateDocument holds the whole shared numeric state of a room. The pot,
// preview log, write marker and counter are typed fields rather than
// magic-prefixed keys inside the participant map.
type StateDocument struct {
	Participants map[string]ParticipantState `json:"participants"`
	Pot          map[string]int64            `json:"pot"`
	PreviewLog   []PreviewLogEntry           `json:"preview_log,omitempty"`
	WriteMarker  string                      `json:"write_marker,omitempty"`
	Counter      int64                       `json:"counter"`
}

// NewStateDocument returns an empty document.
func NewStateDocument() StateDocument {
	return StateDocument{
		Participants: make(map[string]ParticipantState),
		Pot:          make(map[string]int64),
	}
}

// Clone returns a deep copy of the document.
func (s StateDocument) Clone() StateDocument {
	out := StateDocument{
		Participants: make(map[string]ParticipantState, len(s.Participants)),
		Pot:          make(map[string]int64, len(s.Pot)),
		WriteMarker:  s.WriteMarker,
		Counter:      s.Counter,
	}
	for id, ps := range s.Participants {
		out.Participants[id] = ps.Clone()
	}
	for k, v := range s.Pot {
		out.Pot[k] = v
	}
	if len(s.PreviewLog) > 0 {
		out.PreviewLog = make([]PreviewLogEntry, len(s.PreviewLog))
		copy(out.PreviewLog, s.PreviewLog)
	}
	return out
}

// Snapshot is the pre-image stored in the ledger: participants and pot only.
// The preview log, write marker and counter are operational fields and are
// stripped; the pot is kept because restoring it is what preserves
// conservation across undo of pot transfers.
type Snapshot struct {
	Participants map[string]ParticipantState `json:"participants"`
	Pot          map[string]int64            `json:"pot"`
}

// Snapshot produces a deep, stripped pre-image of the document.
func (s StateDocument) Snapshot() Snapshot {
	c := s.Clone()
	return Snapshot{Participants: c.Participants, Pot: c.Pot}
}

// PushPreview appends a preview-log line, evicting the oldest beyond capacity.
func (s *StateDocument) PushPreview(id, message string, at time.Time) {
	s.PreviewLog = append(s.PreviewLog, PreviewLogEntry{ID: id, Message: message, CreatedAt: at})
	if n := len(s.PreviewLog); n > PreviewLogCapacity {
		s.PreviewLog = s.PreviewLog[n-PreviewLogCapacity:]
	}
}

// RemovePreviewByMessage drops the newest preview-log line with the given
// message, if any. Undo uses this to retract the undone operation's line.
func (s *StateDocument) RemovePreviewByMessage(message string) {
	for i := len(s.PreviewLog) - 1; i >= 0; i-- {
		if s.PreviewLog[i].Message == message {
			s.PreviewLog = append(s.PreviewLog[:i], s.PreviewLog[i+1:]...)
			return
		}
	}
}

// EnsureParticipant creates a template-initialized state entry if absent and
// records the display name either way.
func (s *StateDocument) EnsureParticipant(id, displayName string, tpl Template) {
	ps, ok := s.Participants[id]
	if !ok {
		ps = ParticipantState{Values: tpl.InitialValues()}
	}
	if displayName != "" {
		ps.DisplayName = displayName
	}
	s.Participants[id] = ps
}

// TransferItem - one (variable, amount) pair moved by a transfer
type TransferItem struct {
	Variable string `json:"variable"`
	Amount   int64  `json:"amount"`
}

// ApplyTransfer moves the listed amounts from one party to another. A party
// is a participant id or PotParty. Outgoing pot amounts are floor-checked;
// participant balances may go negative (scores below zero are a normal
// game state, so the only checked floor is the pot's).
func (s *StateDocument) ApplyTransfer(from, to string, items []TransferItem) error {
	// outgoing pot amounts accumulate per variable: a transfer naming the
	// same variable twice must be checked against the running total, not
	// each item in isolation
	potOut := make(map[string]int64)
	for _, it := range items {
		if it.Amount <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidAmount, it.Amount)
		}
		if from == PotParty {
			potOut[it.Variable] += it.Amount
			if s.Pot[it.Variable] < potOut[it.Variable] {
				return fmt.Errorf("%w: pot %s has %d, need %d",
					ErrInsufficientFunds, it.Variable, s.Pot[it.Variable], potOut[it.Variable])
			}
		} else if _, ok := s.Participants[from]; !ok {
			return fmt.Errorf("%w: %s", ErrParticipantNotFound, from)
		}
		if to != PotParty {
			if _, ok := s.Participants[to]; !ok {
				return fmt.Errorf("%w: %s", ErrParticipantNotFound, to)
			}
		}
	}
	for _, it := range items {
		s.addValue(from, it.Variable, -it.Amount)
		s.addValue(to, it.Variable, it.Amount)
	}
	return nil
}

func (s *StateDocument) addValue(party, variable string, delta int64) {
	if party == PotParty {
		s.Pot[variable] += delta
		return
	}
	ps := s.Participants[party]
	if ps.Values == nil {
		ps.Values = make(map[string]int64)
	}
	ps.Values[variable] += delta
	s.Participants[party] = ps
}

// ApplyForceEdit overwrites the named variables for one participant.
func (s *StateDocument) ApplyForceEdit(participantID string, values map[string]int64) error {
	ps, ok := s.Participants[participantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, participantID)
	}
	if ps.Values == nil {
		ps.Values = make(map[string]int64)
	}
	for k, v := range values {
		ps.Values[k] = v
	}
	s.Participants[participantID] = ps
	return nil
}

// ApplyReset overwrites the named variables to their template initial value
// for every current participant and zeroes them in the pot.
func (s *StateDocument) ApplyReset(keys []string, tpl Template) error {
	for _, key := range keys {
		v, ok := tpl.Variable(key)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVariable, key)
		}
		for id, ps := range s.Participants {
			if ps.Values == nil {
				ps.Values = make(map[string]int64)
			}
			ps.Values[key] = v.Initial
			s.Participants[id] = ps
		}
		s.Pot[key] = 0
	}
	return nil
}

// Restore replaces participants and pot with a ledger snapshot, reconciled
// against the current seat roster:
//   - a seated participant absent from the snapshot gets a fresh
//     template-initialized entry;
//   - a participant present now but absent from the snapshot and not seated
//     is carried forward unchanged (vacated guests keep their data).
func (s *StateDocument) Restore(snap Snapshot, seats Seats, tpl Template) {
	restored := make(map[string]ParticipantState, len(snap.Participants))
	for id, ps := range snap.Participants {
		restored[id] = ps.Clone()
	}
	for _, id := range seats.SeatedIDs() {
		if _, ok := restored[id]; !ok {
			cur, had := s.Participants[id]
			ps := ParticipantState{Values: tpl.InitialValues()}
			if had {
				ps.DisplayName = cur.DisplayName
			}
			restored[id] = ps
		}
	}
	for id, ps := range s.Participants {
		if _, ok := restored[id]; ok {
			continue
		}
		if seats.IndexOf(id) >= 0 {
			continue
		}
		restored[id] = ps.Clone()
	}
	pot := make(map[string]int64, len(snap.Pot))
	for k, v := range snap.Pot {
		pot[k] = v
	}
	s.Participants = restored
	s.Pot = pot
}
