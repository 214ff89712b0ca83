// Package realtime fans playlist events out to websocket clients. Every
// instance subscribes to the shared Redis channel, so a mutation handled
// anywhere reaches every connected client; client-originated signals travel
// back through the same channel rather than straight to local rooms.
package realtime

import (
	"encoding/json"
	"time"
)

// DirectoryRoom is the global room carrying public directory updates.
const DirectoryRoom = "playlists"

// Client-originated events.
const (
	evJoinPlaylist         = "join-playlist"
	evLeavePlaylist        = "leave-playlist"
	evJoinDirectory        = "join-playlists-room"
	evLeaveDirectory       = "leave-playlists-room"
	evGetParticipants      = "get-participants"
	evSendMessage          = "send-playlist-message"
	evUpdateEditingStatus  = "update-editing-status"
	evStartTrackOperation  = "start-track-operation"
	evCancelTrackOperation = "cancel-track-operation"
	evTrackDragPreview     = "track-drag-preview"
	evTrackSelection       = "track-selection"
)

// Frame is the wire format in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = nil
	}
	b, _ := json.Marshal(Frame{Event: event, Data: raw})
	return b
}

// Participant is one user's presence in a room, deduplicated across their
// open connections.
type Participant struct {
	UserID         string    `json:"userId"`
	DisplayName    string    `json:"displayName"`
	JoinedAt       time.Time `json:"joinedAt"`
	IsEditing      bool      `json:"isEditing"`
	EditingTrackID string    `json:"editingTrackId,omitempty"`
	Connections    int       `json:"connections"`
}
