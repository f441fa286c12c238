// Package presence tracks participant liveness per room and reclaims seats
// that stay abandoned past the forced-vacate timeout.
package presence

import (
	"context"
	"sync"
	"time"

	"syncboard/internal/domain"
	"syncboard/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// State - liveness of one seated participant
type State int

const (
	StateConnected State = iota
	StateGrace
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateGrace:
		return "grace"
	case StateDisconnected:
		return "disconnected"
	default:
		return "connected"
	}
}

const (
	DefaultGraceWindow  = 60 * time.Second
	DefaultVacateWindow = 600 * time.Second
	// HeartbeatInterval is how often connected clients self-announce. The
	// heartbeat only keeps the liveness channel fresh; it never transitions
	// state by itself.
	HeartbeatInterval = 30 * time.Second
)

var transitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "presence_transitions_total",
		Help: "Presence state machine transitions",
	},
	[]string{"to"},
)

func init() {
	prometheus.MustRegister(transitions)
}

// SeatReleaser vacates a participant's seat after the vacate timer fires.
type SeatReleaser interface {
	ForceLeaveSeat(ctx context.Context, roomID, participantID string) error
}

// RoomSource answers roster questions. Implemented by the room repository.
type RoomSource interface {
	SeatedParticipants(ctx context.Context, roomID string) ([]string, error)
	ForceLeaveTimeout(ctx context.Context, roomID string) (time.Duration, error)
}

type key struct {
	roomID        string
	participantID string
}

type entry struct {
	state          State
	timer          *time.Timer
	disconnectedAt time.Time
}

// Monitor is the per-participant liveness state machine. All timers live in
// one table keyed by (room, participant) so roster changes can cancel every
// pending transition for an id in one place.
type Monitor struct {
	mu      sync.Mutex
	entries map[key]*entry

	grace        time.Duration
	vacateWindow time.Duration

	rooms    RoomSource
	releaser SeatReleaser
}

func NewMonitor(grace, vacateWindow time.Duration, rooms RoomSource, releaser SeatReleaser) *Monitor {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	if vacateWindow <= 0 {
		vacateWindow = DefaultVacateWindow
	}
	return &Monitor{
		entries:      make(map[key]*entry),
		grace:        grace,
		vacateWindow: vacateWindow,
		rooms:        rooms,
		releaser:     releaser,
	}
}

// HandleJoin marks a participant connected, cancelling any pending grace or
// vacate timer.
func (m *Monitor) HandleJoin(roomID, participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markConnected(key{roomID, participantID})
}

// HandleLeave starts the grace window for a seated participant. Leave
// signals for unseated ids are ignored.
func (m *Monitor) HandleLeave(ctx context.Context, roomID, participantID string) {
	if !m.isSeated(ctx, roomID, participantID) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{roomID, participantID}
	e, ok := m.entries[k]
	if ok && e.state != StateConnected {
		return
	}
	m.startGrace(k)
}

// HandleSync reconciles against the authoritative set of present ids: every
// seated id in the set is marked connected; every seated id absent from it
// with no grace timer running and not already disconnected starts a grace
// timer.
func (m *Monitor) HandleSync(ctx context.Context, roomID string, present []string) {
	seated, err := m.rooms.SeatedParticipants(ctx, roomID)
	if err != nil {
		logger.Error("presence sync: load roster", "room_id", roomID, "error", err)
		return
	}
	presentSet := make(map[string]bool, len(present))
	for _, id := range present {
		presentSet[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range seated {
		k := key{roomID, id}
		if presentSet[id] {
			m.markConnected(k)
			continue
		}
		if e, ok := m.entries[k]; ok && e.state != StateConnected {
			continue
		}
		m.startGrace(k)
	}
}

// SeatVacated clears all pending timers for a participant once it stops
// being seated, whatever the reason.
func (m *Monitor) SeatVacated(roomID, participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drop(key{roomID, participantID})
}

// CloseRoom clears every timer a room still holds.
func (m *Monitor) CloseRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.roomID == roomID {
			m.drop(k)
		}
	}
}

// Status reports a participant's current liveness.
func (m *Monitor) Status(roomID, participantID string) domain.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := domain.ConnectionStatus{ParticipantID: participantID, Connected: true}
	if e, ok := m.entries[key{roomID, participantID}]; ok && e.state == StateDisconnected {
		st.Connected = false
		at := e.disconnectedAt
		st.DisconnectedAt = &at
	}
	return st
}

// callers hold m.mu for every helper below.

func (m *Monitor) markConnected(k key) {
	e, ok := m.entries[k]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(m.entries, k)
	transitions.WithLabelValues("connected").Inc()
}

func (m *Monitor) startGrace(k key) {
	if e, ok := m.entries[k]; ok && e.timer != nil {
		e.timer.Stop()
	}
	e := &entry{state: StateGrace}
	e.timer = time.AfterFunc(m.grace, func() { m.graceExpired(k) })
	m.entries[k] = e
	transitions.WithLabelValues("grace").Inc()
}

func (m *Monitor) drop(k key) {
	if e, ok := m.entries[k]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.entries, k)
	}
}

func (m *Monitor) graceExpired(k key) {
	// roster lookup before taking the lock; it can block on the database
	// and must not stall every other presence event while it does
	vacateAfter := m.vacateTimeout(k.roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[k]
	if !ok || e.state != StateGrace {
		return
	}
	e.state = StateDisconnected
	e.disconnectedAt = time.Now()
	e.timer = time.AfterFunc(vacateAfter, func() { m.vacateExpired(k) })
	transitions.WithLabelValues("disconnected").Inc()
	logger.Info("participant disconnected", "room_id", k.roomID, "participant_id", k.participantID)
}

func (m *Monitor) vacateExpired(k key) {
	m.mu.Lock()
	e, ok := m.entries[k]
	if !ok || e.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	delete(m.entries, k)
	m.mu.Unlock()

	transitions.WithLabelValues("seat_released").Inc()
	logger.Info("reclaiming abandoned seat", "room_id", k.roomID, "participant_id", k.participantID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.releaser.ForceLeaveSeat(ctx, k.roomID, k.participantID); err != nil {
		logger.Error("force leave seat", "room_id", k.roomID, "participant_id", k.participantID, "error", err)
	}
}

func (m *Monitor) vacateTimeout(roomID string) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if d, err := m.rooms.ForceLeaveTimeout(ctx, roomID); err == nil && d > 0 {
		return d
	}
	return m.vacateWindow
}

func (m *Monitor) isSeated(ctx context.Context, roomID, participantID string) bool {
	seated, err := m.rooms.SeatedParticipants(ctx, roomID)
	if err != nil {
		logger.Error("presence: load roster", "room_id", roomID, "error", err)
		return false
	}
	for _, id := range seated {
		if id == participantID {
			return true
		}
	}
	return false
}
