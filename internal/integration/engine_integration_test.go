package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"syncboard/internal/domain"
	"syncboard/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "..", "internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

type env struct {
	db          *pgxpool.Pool
	rooms       *service.RoomService
	mutator     *service.MutatorService
	history     *service.HistoryService
	settlements *service.SettlementService
	counter     *service.CounterService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	applyMigrations(t, db)

	notifier := service.NewLocalNotifier(func(string, string) {})
	return &env{
		db:          db,
		rooms:       service.NewRoomService(db),
		mutator:     service.NewMutatorService(db, notifier, 3),
		history:     service.NewHistoryService(db, notifier, 3),
		settlements: service.NewSettlementService(db, notifier),
		counter:     service.NewCounterService(db, notifier),
	}
}

// newRoom creates a room with the default template and seats the host and a
// second participant. Returns the room id and both participant ids.
func (e *env) newRoom(t *testing.T) (roomID, hostID, playerID string) {
	t.Helper()
	ctx := context.Background()

	hostID = uuid.NewString()
	playerID = uuid.NewString()

	room, err := e.rooms.Create(ctx, hostID, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	t.Cleanup(func() {
		_, _ = e.db.Exec(context.Background(), `DELETE FROM rooms WHERE id = $1`, room.ID)
	})

	if err := e.mutator.JoinSeat(ctx, room.ID, 0, hostID, "Alice"); err != nil {
		t.Fatalf("host join seat: %v", err)
	}
	if err := e.mutator.JoinSeat(ctx, room.ID, 1, playerID, "Bob"); err != nil {
		t.Fatalf("player join seat: %v", err)
	}
	return room.ID, hostID, playerID
}

func (e *env) score(t *testing.T, roomID, participantID string) int64 {
	t.Helper()
	room, err := e.rooms.Get(context.Background(), roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	return room.State.Participants[participantID].Values["score"]
}

func TestTransfer_AppliesAndWritesLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	items := []domain.TransferItem{{Variable: "score", Amount: 1000}}
	if err := e.mutator.Transfer(ctx, roomID, hostID, playerID, items, "", ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := e.score(t, roomID, hostID); got != 24000 {
		t.Errorf("sender score = %d; want 24000", got)
	}
	if got := e.score(t, roomID, playerID); got != 26000 {
		t.Errorf("receiver score = %d; want 26000", got)
	}

	entries, _, err := e.history.FetchHistory(ctx, roomID, nil, "", 10)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	// 2 joins + 1 transfer, newest first
	if len(entries) != 3 {
		t.Fatalf("history length = %d; want 3", len(entries))
	}
	newest := entries[0]
	if newest.Message != "Alice → Bob: Score 1000" {
		t.Errorf("ledger message = %q", newest.Message)
	}
	// the snapshot is the pre-image
	if got := newest.Snapshot.Participants[hostID].Values["score"]; got != 25000 {
		t.Errorf("snapshot sender score = %d; want 25000", got)
	}

	room, err := e.rooms.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if n := len(room.State.PreviewLog); n != 3 {
		t.Fatalf("preview log length = %d; want 3", n)
	}
	if got := room.State.PreviewLog[2].Message; got != newest.Message {
		t.Errorf("preview line = %q; want %q", got, newest.Message)
	}
	if room.State.WriteMarker == "" {
		t.Error("write marker not set after mutation")
	}
}

func TestTransfer_PotFloorAndSelfNoop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, _ := e.newRoom(t)

	err := e.mutator.Transfer(ctx, roomID, domain.PotParty, hostID,
		[]domain.TransferItem{{Variable: "score", Amount: 100}}, "", "")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("empty pot transfer = %v; want ErrInsufficientFunds", err)
	}

	// self transfer is a success no-op and writes no ledger entry
	if err := e.mutator.Transfer(ctx, roomID, hostID, hostID,
		[]domain.TransferItem{{Variable: "score", Amount: 100}}, "", ""); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	entries, _, err := e.history.FetchHistory(ctx, roomID, nil, "", 10)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("history length = %d; want 2 (joins only)", len(entries))
	}
}

func TestUndo_RestoresPreImageAndRetractsPreview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	items := []domain.TransferItem{{Variable: "score", Amount: 5000}}
	if err := e.mutator.Transfer(ctx, roomID, hostID, playerID, items, "", ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if err := e.history.Undo(ctx, roomID); err != nil {
		t.Fatalf("undo: %v", err)
	}

	if got := e.score(t, roomID, hostID); got != 25000 {
		t.Errorf("sender score after undo = %d; want 25000", got)
	}
	if got := e.score(t, roomID, playerID); got != 25000 {
		t.Errorf("receiver score after undo = %d; want 25000", got)
	}

	room, err := e.rooms.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	for _, line := range room.State.PreviewLog {
		if strings.Contains(line.Message, "→") {
			t.Errorf("undone transfer still in preview log: %q", line.Message)
		}
	}

	entries, _, err := e.history.FetchHistory(ctx, roomID, nil, "", 10)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("history length after undo = %d; want 2", len(entries))
	}
}

func TestUndo_EmptyLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	hostID := uuid.NewString()
	room, err := e.rooms.Create(ctx, hostID, nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	t.Cleanup(func() {
		_, _ = e.db.Exec(context.Background(), `DELETE FROM rooms WHERE id = $1`, room.ID)
	})

	if err := e.history.Undo(ctx, room.ID); !errors.Is(err, domain.ErrNothingToUndo) {
		t.Errorf("undo on empty ledger = %v; want ErrNothingToUndo", err)
	}
}

func TestRollbackTo_CompactsLedgerAndIsUndoable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	for i := 0; i < 3; i++ {
		items := []domain.TransferItem{{Variable: "score", Amount: 1000}}
		if err := e.mutator.Transfer(ctx, roomID, hostID, playerID, items, "", ""); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	// host: 22000, player: 28000; ledger: 2 joins + 3 transfers

	entries, _, err := e.history.FetchHistory(ctx, roomID, nil, "", 10)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("history length = %d; want 5", len(entries))
	}

	// roll back to the second transfer's entry: its snapshot is the state
	// after exactly one transfer
	target := entries[1]
	if err := e.history.RollbackTo(ctx, roomID, target.ID); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if got := e.score(t, roomID, hostID); got != 24000 {
		t.Errorf("host score after rollback = %d; want 24000", got)
	}
	if got := e.score(t, roomID, playerID); got != 26000 {
		t.Errorf("player score after rollback = %d; want 26000", got)
	}

	entries, _, err = e.history.FetchHistory(ctx, roomID, nil, "", 10)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	// 2 joins + first transfer survive, plus the rollback's own entry
	if len(entries) != 4 {
		t.Fatalf("history length after rollback = %d; want 4", len(entries))
	}
	if !strings.HasPrefix(entries[0].Message, "Rolled back to ") {
		t.Errorf("newest message = %q; want a rollback entry", entries[0].Message)
	}

	// the rollback itself is undoable: undo returns to the pre-rollback state
	if err := e.history.Undo(ctx, roomID); err != nil {
		t.Fatalf("undo rollback: %v", err)
	}
	if got := e.score(t, roomID, hostID); got != 22000 {
		t.Errorf("host score after undoing rollback = %d; want 22000", got)
	}
}

func TestRollbackTo_UnknownEntry(t *testing.T) {
	e := newEnv(t)
	roomID, _, _ := e.newRoom(t)

	err := e.history.RollbackTo(context.Background(), roomID, uuid.NewString())
	if !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("rollback to unknown entry = %v; want ErrEntryNotFound", err)
	}
}

func TestHistoryPagination(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	for i := 0; i < 4; i++ {
		items := []domain.TransferItem{{Variable: "score", Amount: 100}}
		if err := e.mutator.Transfer(ctx, roomID, hostID, playerID, items, "", ""); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	// total ledger: 6 entries

	page1, hasMore, err := e.history.FetchHistory(ctx, roomID, nil, "", 4)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != 4 || !hasMore {
		t.Fatalf("page 1: %d entries, hasMore=%v; want 4, true", len(page1), hasMore)
	}

	last := page1[len(page1)-1]
	page2, hasMore, err := e.history.FetchHistory(ctx, roomID, &last.CreatedAt, last.ID, 4)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 2 || hasMore {
		t.Fatalf("page 2: %d entries, hasMore=%v; want 2, false", len(page2), hasMore)
	}
	if !page1[0].CreatedAt.After(page2[len(page2)-1].CreatedAt) {
		t.Error("pages not ordered newest-first")
	}

	// the composite cursor must not skip or repeat entries even when
	// neighbouring rows share a created_at
	seen := make(map[string]bool)
	for _, en := range append(append([]*domain.HistoryEntry{}, page1...), page2...) {
		if seen[en.ID] {
			t.Errorf("entry %s returned on both pages", en.ID)
		}
		seen[en.ID] = true
	}
	if len(seen) != 6 {
		t.Errorf("pages cover %d distinct entries; want 6", len(seen))
	}
}

func TestSeatConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	if err := e.mutator.JoinSeat(ctx, roomID, 2, hostID, "Alice"); !errors.Is(err, domain.ErrAlreadySeated) {
		t.Errorf("double join = %v; want ErrAlreadySeated", err)
	}
	other := uuid.NewString()
	if err := e.mutator.JoinSeat(ctx, roomID, 0, other, "Carol"); !errors.Is(err, domain.ErrSeatOccupied) {
		t.Errorf("join occupied seat = %v; want ErrSeatOccupied", err)
	}

	// leaving retains state; rejoining restores the same balances
	items := []domain.TransferItem{{Variable: "score", Amount: 700}}
	if err := e.mutator.Transfer(ctx, roomID, hostID, playerID, items, "", ""); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := e.mutator.LeaveSeat(ctx, roomID, playerID); err != nil {
		t.Fatalf("leave seat: %v", err)
	}
	if err := e.mutator.JoinSeat(ctx, roomID, 3, playerID, "Bob"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if got := e.score(t, roomID, playerID); got != 25700 {
		t.Errorf("score after rejoin = %d; want 25700", got)
	}
}

func TestForceLeaveSeat_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, _, playerID := e.newRoom(t)

	if err := e.mutator.ForceLeaveSeat(ctx, roomID, playerID); err != nil {
		t.Fatalf("force leave: %v", err)
	}
	if err := e.mutator.ForceLeaveSeat(ctx, roomID, playerID); err != nil {
		t.Fatalf("repeated force leave: %v", err)
	}
	if err := e.mutator.LeaveSeat(ctx, roomID, playerID); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Errorf("voluntary leave when unseated = %v; want ErrParticipantNotFound", err)
	}
}

func TestGuestSeats_HostOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	if err := e.mutator.JoinGuestSeat(ctx, roomID, playerID, 2); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-host guest join = %v; want ErrPermissionDenied", err)
	}

	if err := e.mutator.JoinGuestSeat(ctx, roomID, hostID, 2); err != nil {
		t.Fatalf("guest join: %v", err)
	}
	room, err := e.rooms.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	seat := room.Seats[2]
	if seat == nil || seat.Kind != domain.SeatKindGuest || seat.DisplayName != "Guest A" {
		t.Fatalf("guest seat = %+v; want Guest A", seat)
	}
	if !strings.HasPrefix(seat.ParticipantID, domain.GuestIDPrefix) {
		t.Errorf("guest id = %q; want %s prefix", seat.ParticipantID, domain.GuestIDPrefix)
	}
	if got := e.score(t, roomID, seat.ParticipantID); got != 25000 {
		t.Errorf("guest initial score = %d; want 25000", got)
	}
}

func TestForceEditAndReset(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	if err := e.mutator.ForceEdit(ctx, roomID, playerID, hostID,
		map[string]int64{"score": 1}, ""); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-host force edit = %v; want ErrPermissionDenied", err)
	}

	if err := e.mutator.ForceEdit(ctx, roomID, hostID, playerID,
		map[string]int64{"score": 31700}, ""); err != nil {
		t.Fatalf("force edit: %v", err)
	}
	if got := e.score(t, roomID, playerID); got != 31700 {
		t.Errorf("score after force edit = %d; want 31700", got)
	}

	if err := e.mutator.ResetVariables(ctx, roomID, hostID, []string{"score"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := e.score(t, roomID, playerID); got != 25000 {
		t.Errorf("score after reset = %d; want 25000", got)
	}
}

func TestCounterCAS(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, _, _ := e.newRoom(t)

	cur, conflict, err := e.counter.Commit(ctx, roomID, 0, 5)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if conflict || cur != 5 {
		t.Fatalf("commit = (%d, %v); want (5, false)", cur, conflict)
	}

	// a writer with a stale expectation loses and learns the current value
	cur, conflict, err = e.counter.Commit(ctx, roomID, 0, 9)
	if err != nil {
		t.Fatalf("stale commit: %v", err)
	}
	if !conflict || cur != 5 {
		t.Fatalf("stale commit = (%d, %v); want (5, true)", cur, conflict)
	}

	cur, conflict, err = e.counter.Commit(ctx, roomID, 5, 9)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if conflict || cur != 9 {
		t.Fatalf("second commit = (%d, %v); want (9, false)", cur, conflict)
	}
}

func TestSettlement_ExecuteAndRollbackCleanup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	// the bonus tables cover 3 and 4 seated players; fill the room
	third, fourth := uuid.NewString(), uuid.NewString()
	if err := e.mutator.JoinSeat(ctx, roomID, 2, third, "Carol"); err != nil {
		t.Fatalf("third join: %v", err)
	}
	if err := e.mutator.JoinSeat(ctx, roomID, 3, fourth, "Dave"); err != nil {
		t.Fatalf("fourth join: %v", err)
	}

	preEdit, _, err := e.history.FetchHistory(ctx, roomID, nil, "", 1)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}

	// skew the scores while conserving the total
	edits := map[string]int64{hostID: 38000, playerID: 12000, third: 26000, fourth: 24000}
	for id, score := range edits {
		if err := e.mutator.ForceEdit(ctx, roomID, hostID, id,
			map[string]int64{"score": score}, ""); err != nil {
			t.Fatalf("force edit: %v", err)
		}
	}

	if err := e.settlements.CanExecute(ctx, roomID); err != nil {
		t.Fatalf("can execute: %v", err)
	}
	s, err := e.settlements.Execute(ctx, roomID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	wantRanks := map[string]int{hostID: 1, third: 2, fourth: 3, playerID: 4}
	for id, want := range wantRanks {
		if got := s.Results[id].Rank; got != want {
			t.Errorf("rank = %d; want %d", got, want)
		}
	}
	var sum float64
	for _, r := range s.Results {
		sum += r.Result
	}
	if sum != 0 {
		t.Errorf("settlement sum = %v; want 0", sum)
	}

	list, err := e.settlements.Fetch(ctx, roomID)
	if err != nil {
		t.Fatalf("fetch settlements: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("settlements = %d; want 1", len(list))
	}

	// rolling back to before the edits removes the settlement too
	if err := e.history.RollbackTo(ctx, roomID, preEdit[0].ID); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	list, err = e.settlements.Fetch(ctx, roomID)
	if err != nil {
		t.Fatalf("fetch settlements after rollback: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("settlements after rollback = %d; want 0", len(list))
	}
}

func TestRoomLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	roomID, hostID, playerID := e.newRoom(t)

	room, err := e.rooms.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if len(room.RoomCode) != 6 {
		t.Errorf("room code = %q; want 6 digits", room.RoomCode)
	}
	// co_hosts is NOT NULL in the schema; a fresh room must round-trip
	// as an empty array, not as NULL
	if room.CoHosts == nil {
		t.Error("fresh room CoHosts is nil; want empty slice")
	} else if len(room.CoHosts) != 0 {
		t.Errorf("fresh room CoHosts = %v; want empty", room.CoHosts)
	}
	byCode, err := e.rooms.GetByCode(ctx, room.RoomCode)
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if byCode.ID != roomID {
		t.Errorf("get by code returned %s; want %s", byCode.ID, roomID)
	}

	if err := e.rooms.SetStatus(ctx, roomID, playerID, domain.RoomStatusPlaying); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-host status change = %v; want ErrPermissionDenied", err)
	}
	if err := e.rooms.Delete(ctx, roomID, playerID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-host delete = %v; want ErrPermissionDenied", err)
	}
	if err := e.rooms.AddCoHost(ctx, roomID, playerID, playerID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-host add co-host = %v; want ErrPermissionDenied", err)
	}
	if err := e.rooms.SetStatus(ctx, roomID, hostID, domain.RoomStatusPlaying); err != nil {
		t.Fatalf("set status: %v", err)
	}

	// a co-host gains host powers
	if err := e.rooms.AddCoHost(ctx, roomID, hostID, playerID); err != nil {
		t.Fatalf("add co-host: %v", err)
	}
	if err := e.rooms.SetStatus(ctx, roomID, playerID, domain.RoomStatusFinished); err != nil {
		t.Errorf("co-host status change: %v", err)
	}

	if err := e.rooms.Delete(ctx, roomID, hostID); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if _, err := e.rooms.Get(ctx, roomID); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("get deleted room = %v; want ErrRoomNotFound", err)
	}
}
