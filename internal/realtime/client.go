package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trackroom/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	maxChatMessageLen = 500
)

type editingState struct {
	isEditing      bool
	editingTrackID string
}

// Client is one websocket connection. Identity is fixed at handshake time;
// editing state is the only field mutated afterwards, under mu, because the
// hub goroutine reads it while building participant lists.
type Client struct {
	hub  *Hub
	pub  events.Publisher
	conn *websocket.Conn
	send chan []byte

	userID      string
	displayName string
	joinedAt    time.Time

	mu      sync.Mutex
	editing editingState
	closed  bool
}

func (c *Client) state() editingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

func (c *Client) setEditing(isEditing bool, trackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editing = editingState{isEditing: isEditing, editingTrackID: trackID}
}

// trySend queues data without blocking. False means the client's buffer is
// full and the connection should be torn down.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("invalid frame")
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(msg string) {
	c.trySend(encodeFrame(events.Error, map[string]string{"message": msg}))
}

type roomRef struct {
	PlaylistID string `json:"playlistId"`
}

type chatPayload struct {
	PlaylistID string `json:"playlistId"`
	Message    string `json:"message"`
}

type editingPayload struct {
	PlaylistID string `json:"playlistId"`
	IsEditing  bool   `json:"isEditing"`
	TrackID    string `json:"trackId"`
}

type signalPayload struct {
	PlaylistID string          `json:"playlistId"`
	Data       json.RawMessage `json:"data"`
}

func (c *Client) dispatch(frame Frame) {
	switch frame.Event {
	case evJoinPlaylist:
		var ref roomRef
		if json.Unmarshal(frame.Data, &ref) != nil || ref.PlaylistID == "" {
			c.sendError("playlistId is required")
			return
		}
		c.hub.join <- membership{client: c, room: ref.PlaylistID}

	case evLeavePlaylist:
		var ref roomRef
		if json.Unmarshal(frame.Data, &ref) != nil || ref.PlaylistID == "" {
			c.sendError("playlistId is required")
			return
		}
		c.hub.leave <- membership{client: c, room: ref.PlaylistID}

	case evJoinDirectory:
		c.hub.join <- membership{client: c, room: DirectoryRoom}

	case evLeaveDirectory:
		c.hub.leave <- membership{client: c, room: DirectoryRoom}

	case evGetParticipants:
		var ref roomRef
		if json.Unmarshal(frame.Data, &ref) != nil || ref.PlaylistID == "" {
			c.sendError("playlistId is required")
			return
		}
		participants := c.hub.Participants(ref.PlaylistID)
		c.trySend(encodeFrame(events.ParticipantsList, map[string]any{
			"playlistId":   ref.PlaylistID,
			"participants": participants,
		}))

	case evSendMessage:
		c.handleChat(frame.Data)

	case evUpdateEditingStatus:
		c.handleEditingStatus(frame.Data)

	case evStartTrackOperation:
		c.republishSignal(events.TrackOperationStarted, frame.Data)

	case evCancelTrackOperation:
		c.republishSignal(events.TrackOperationCancelled, frame.Data)

	case evTrackDragPreview:
		c.republishSignal(events.TrackDragPreview, frame.Data)

	case evTrackSelection:
		c.republishSignal(events.TrackSelection, frame.Data)

	default:
		c.sendError("unknown event")
	}
}

func (c *Client) handleChat(data json.RawMessage) {
	var body chatPayload
	if json.Unmarshal(data, &body) != nil || body.PlaylistID == "" {
		c.sendError("playlistId is required")
		return
	}
	// The bound is in characters, not bytes.
	msg := strings.TrimSpace(body.Message)
	if msg == "" || utf8.RuneCountInString(msg) > maxChatMessageLen {
		c.sendError("message must be between 1 and 500 characters")
		return
	}

	c.publish(events.Event{
		Name:       events.NewPlaylistMessage,
		PlaylistID: body.PlaylistID,
		Payload: map[string]any{
			"id":          uuid.NewString(),
			"playlistId":  body.PlaylistID,
			"userId":      c.userID,
			"displayName": c.displayName,
			"message":     msg,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (c *Client) handleEditingStatus(data json.RawMessage) {
	var body editingPayload
	if json.Unmarshal(data, &body) != nil || body.PlaylistID == "" {
		c.sendError("playlistId is required")
		return
	}
	c.setEditing(body.IsEditing, body.TrackID)

	c.publish(events.Event{
		Name:       events.CollaboratorEditingStatus,
		PlaylistID: body.PlaylistID,
		Payload: map[string]any{
			"playlistId":  body.PlaylistID,
			"userId":      c.userID,
			"displayName": c.displayName,
			"isEditing":   body.IsEditing,
			"trackId":     body.TrackID,
		},
	})
}

// republishSignal forwards a transient collaboration signal through Redis so
// collaborators connected to other instances see it too.
func (c *Client) republishSignal(name string, data json.RawMessage) {
	var body signalPayload
	if json.Unmarshal(data, &body) != nil || body.PlaylistID == "" {
		c.sendError("playlistId is required")
		return
	}

	payload := map[string]any{
		"playlistId": body.PlaylistID,
		"userId":     c.userID,
	}
	if len(body.Data) > 0 {
		payload["data"] = json.RawMessage(body.Data)
	}
	c.publish(events.Event{
		Name:       name,
		PlaylistID: body.PlaylistID,
		Payload:    payload,
	})
}

func (c *Client) publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.pub.Publish(ctx, e); err != nil {
		c.sendError("broadcast unavailable")
	}
}
