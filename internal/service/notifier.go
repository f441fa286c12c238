package service

import (
	"context"
	"encoding/json"
	"time"

	"syncboard/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

// roomChangesChannel is the Redis pub/sub channel carrying change
// notifications for every room. Writers publish implicitly by committing;
// the websocket hub fans the notification out to connected clients, which
// refetch the room.
const roomChangesChannel = "syncboard:room_changes"

// Notifier announces that a room's document changed.
type Notifier interface {
	RoomChanged(ctx context.Context, roomID, marker string)
}

type roomChange struct {
	RoomID string `json:"room_id"`
	Marker string `json:"marker"`
}

// RedisNotifier publishes change notifications so every server instance
// sees writes from every other.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) RoomChanged(ctx context.Context, roomID, marker string) {
	payload, _ := json.Marshal(roomChange{RoomID: roomID, Marker: marker})
	if err := n.client.Publish(ctx, roomChangesChannel, payload).Err(); err != nil {
		logger.Error("publish room change", "room_id", roomID, "error", err)
	}
}

// SubscribeRoomChanges pumps change notifications into fn until ctx ends.
func SubscribeRoomChanges(ctx context.Context, client *redis.Client, fn func(roomID, marker string)) {
	sub := client.Subscribe(ctx, roomChangesChannel)
	go func() {
		defer sub.Close()
		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("room changes subscription", "error", err)
				time.Sleep(time.Second)
				continue
			}
			var rc roomChange
			if err := json.Unmarshal([]byte(msg.Payload), &rc); err != nil {
				continue
			}
			fn(rc.RoomID, rc.Marker)
		}
	}()
}

// LocalNotifier dispatches directly in-process. Used when Redis is not
// configured (single-instance deployments).
type LocalNotifier struct {
	fn func(roomID, marker string)
}

func NewLocalNotifier(fn func(roomID, marker string)) *LocalNotifier {
	return &LocalNotifier{fn: fn}
}

func (n *LocalNotifier) RoomChanged(_ context.Context, roomID, marker string) {
	n.fn(roomID, marker)
}
