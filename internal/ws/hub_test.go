package ws

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"syncboard/internal/presence"
)

type stubRooms struct{}

func (stubRooms) SeatedParticipants(context.Context, string) ([]string, error) {
	return nil, nil
}

func (stubRooms) ForceLeaveTimeout(context.Context, string) (time.Duration, error) {
	return 0, nil
}

type stubReleaser struct{}

func (stubReleaser) ForceLeaveSeat(context.Context, string, string) error { return nil }

func testHub() *Hub {
	m := presence.NewMonitor(time.Minute, time.Minute, stubRooms{}, stubReleaser{})
	return NewHub(m)
}

func TestHubRoomChanged_FansOutToRoomOnly(t *testing.T) {
	h := testHub()

	c1 := NewClient("room1", "p1", nil, h)
	c2 := NewClient("room1", "p2", nil, h)
	c3 := NewClient("room2", "p3", nil, h)
	h.Register(c1)
	h.Register(c2)
	h.Register(c3)

	h.RoomChanged("room1", "marker-1")

	for _, c := range []*Client{c1, c2} {
		select {
		case raw := <-c.Send:
			var msg outbound
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.Type != "room_changed" || msg.RoomID != "room1" || msg.Marker != "marker-1" {
				t.Errorf("message = %+v", msg)
			}
		default:
			t.Errorf("client %s got no message", c.ParticipantID)
		}
	}

	select {
	case <-c3.Send:
		t.Error("client in another room received the notification")
	default:
	}
}

func TestHubRegisterReplacesOldSocket(t *testing.T) {
	h := testHub()

	old := NewClient("room1", "p1", nil, h)
	h.Register(old)
	replacement := NewClient("room1", "p1", nil, h)
	h.Register(replacement)

	select {
	case _, ok := <-old.Send:
		if ok {
			t.Error("old socket's send channel not closed on replacement")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("old socket's send channel still open")
	}

	// unregistering the stale client must not evict the replacement
	h.Unregister(old)
	ids := h.Connected("room1")
	if len(ids) != 1 || ids[0] != "p1" {
		t.Errorf("connected = %v; want [p1]", ids)
	}
}

func TestHubUnregisterAndConnected(t *testing.T) {
	h := testHub()

	c1 := NewClient("room1", "p1", nil, h)
	c2 := NewClient("room1", "p2", nil, h)
	h.Register(c1)
	h.Register(c2)

	ids := h.Connected("room1")
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Fatalf("connected = %v; want [p1 p2]", ids)
	}

	h.Unregister(c1)
	ids = h.Connected("room1")
	if len(ids) != 1 || ids[0] != "p2" {
		t.Errorf("connected after unregister = %v; want [p2]", ids)
	}
}

func TestHubCloseRoom(t *testing.T) {
	h := testHub()

	c := NewClient("room1", "p1", nil, h)
	h.Register(c)
	h.CloseRoom("room1")

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Error("send channel not closed on room close")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("send channel still open after room close")
	}
	if ids := h.Connected("room1"); len(ids) != 0 {
		t.Errorf("connected after close = %v; want empty", ids)
	}
}
