// Package events defines the wire contract between the playlist engine and
// the realtime layer. Mutations publish envelopes onto a shared Redis
// channel; every realtime instance subscribes and fans the event out to the
// websocket room for the playlist, so a client connected to one instance
// still observes mutations handled by another.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub-sub channel all envelopes travel on.
const Channel = "broadcast"

// Room-scoped structural events.
const (
	PlaylistCreated     = "playlist-created"
	PlaylistUpdated     = "playlist-updated"
	PlaylistDeleted     = "playlist-deleted"
	TrackAdded          = "track-added"
	TrackRemoved        = "track-removed"
	TracksReordered     = "tracks-reordered"
	CollaboratorAdded   = "collaborator-added"
	CollaboratorRemoved = "collaborator-removed"
)

// Directory mirrors of the track-level structural events.
const (
	DirectoryTrackAdded     = "playlist-track-added"
	DirectoryTrackRemoved   = "playlist-track-removed"
	DirectoryTrackReordered = "playlist-track-reordered"
)

// Room-only collaboration signals. These carry transient intent, never
// state, and are never mirrored to the directory room.
const (
	NewPlaylistMessage        = "new-playlist-message"
	CollaboratorEditingStatus = "collaborator-editing-status"
	TrackOperationStarted     = "track-operation-started"
	TrackOperationCancelled   = "track-operation-cancelled"
	TrackDragPreview          = "track-drag-preview"
	TrackSelection            = "track-selection"
)

// Presence events emitted by the realtime layer itself.
const (
	JoinedPlaylist     = "joined-playlist"
	LeftPlaylist       = "left-playlist"
	CollaboratorJoined = "collaborator-joined"
	CollaboratorLeft   = "collaborator-left"
	ParticipantsList   = "participants-list"
	Error              = "error"
)

// DirectoryMirror maps a structural event to the name it is re-broadcast
// under in the global directory room. Events absent from this table are
// never mirrored.
var DirectoryMirror = map[string]string{
	PlaylistCreated:     PlaylistCreated,
	PlaylistUpdated:     PlaylistUpdated,
	PlaylistDeleted:     PlaylistDeleted,
	TrackAdded:          DirectoryTrackAdded,
	TrackRemoved:        DirectoryTrackRemoved,
	TracksReordered:     DirectoryTrackReordered,
	CollaboratorAdded:   CollaboratorAdded,
	CollaboratorRemoved: CollaboratorRemoved,
}

// Event is the envelope published on the channel. Public marks events about
// public playlists, which are additionally mirrored to the directory room.
type Event struct {
	Name       string `json:"event"`
	PlaylistID string `json:"playlistId,omitempty"`
	Public     bool   `json:"public,omitempty"`
	Payload    any    `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// RedisPublisher publishes envelopes onto the shared channel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel, string(data)).Err()
}
