package ws

import (
	"encoding/json"
	"time"

	"syncboard/internal/logger"
	"syncboard/internal/presence"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 75 * time.Second
	// pingPeriod doubles as the participant's periodic self-announcement.
	// It refreshes the liveness channel only; presence transitions come
	// from register/unregister and sync messages.
	pingPeriod = presence.HeartbeatInterval
)

// Client is one participant's socket inside a room.
type Client struct {
	RoomID        string
	ParticipantID string
	Conn          *websocket.Conn
	Send          chan []byte

	hub *Hub
}

func NewClient(roomID, participantID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		RoomID:        roomID,
		ParticipantID: participantID,
		Conn:          conn,
		Send:          make(chan []byte, 64),
		hub:           hub,
	}
}

// inbound is what clients may send: currently only full-sync requests
// carrying the roster they believe is present.
type inbound struct {
	Type    string   `json:"type"`
	Present []string `json:"present,omitempty"`
}

func (c *Client) Run() {
	go c.writePump()
	c.hub.Register(c)
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read", "participant_id", c.ParticipantID, "error", err)
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "sync" {
			c.hub.HandleSync(c, msg.Present)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
