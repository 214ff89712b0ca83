package realtime

import (
	"go.uber.org/zap"

	"trackroom/internal/events"
)

type membership struct {
	client *Client
	room   string
}

type roomMessage struct {
	room string
	data []byte
}

type presenceQuery struct {
	room  string
	reply chan []Participant
}

// Hub owns every connected client and the room memberships. All state is
// confined to the Run goroutine; the channels are the only way in.
type Hub struct {
	log *zap.SugaredLogger

	rooms   map[string]map[*Client]bool
	members map[*Client]map[string]bool

	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	broadcast  chan roomMessage
	closeRoom  chan string
	presence   chan presenceQuery
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:        log,
		rooms:      make(map[string]map[*Client]bool),
		members:    make(map[*Client]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		broadcast:  make(chan roomMessage),
		closeRoom:  make(chan string),
		presence:   make(chan presenceQuery),
	}
}

// Broadcast sends data to every client currently in room.
func (h *Hub) Broadcast(room string, data []byte) {
	h.broadcast <- roomMessage{room: room, data: data}
}

// CloseRoom evicts every client from room, notifying them first.
func (h *Hub) CloseRoom(room string) {
	h.closeRoom <- room
}

// Participants reports the deduplicated presence list for room.
func (h *Hub) Participants(room string) []Participant {
	reply := make(chan []Participant, 1)
	h.presence <- presenceQuery{room: room, reply: reply}
	return <-reply
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.members[client] = make(map[string]bool)

		case client := <-h.unregister:
			h.dropClient(client)

		case m := <-h.join:
			h.joinRoom(m.client, m.room)

		case m := <-h.leave:
			h.leaveRoom(m.client, m.room, true)

		case msg := <-h.broadcast:
			h.send(msg.room, msg.data)

		case room := <-h.closeRoom:
			h.evictRoom(room)

		case q := <-h.presence:
			q.reply <- h.participants(q.room)
		}
	}
}

func (h *Hub) joinRoom(c *Client, room string) {
	if h.members[c] == nil || h.members[c][room] {
		return
	}
	h.members[c][room] = true
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true

	if room == DirectoryRoom {
		return
	}

	c.trySend(encodeFrame(events.JoinedPlaylist, map[string]any{
		"playlistId":   room,
		"participants": h.participants(room),
	}))
	h.sendExcept(room, c, encodeFrame(events.CollaboratorJoined, map[string]any{
		"playlistId":  room,
		"userId":      c.userID,
		"displayName": c.displayName,
	}))
	h.sendPresence(room)
}

// sendPresence pushes a freshly computed presence list to the whole room.
func (h *Hub) sendPresence(room string) {
	h.send(room, encodeFrame(events.ParticipantsList, map[string]any{
		"playlistId":   room,
		"participants": h.participants(room),
	}))
}

func (h *Hub) leaveRoom(c *Client, room string, notify bool) {
	if h.members[c] == nil || !h.members[c][room] {
		return
	}
	delete(h.members[c], room)
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}

	if room == DirectoryRoom {
		return
	}
	if notify {
		c.trySend(encodeFrame(events.LeftPlaylist, map[string]any{"playlistId": room}))
	}
	// Only announce departure once the user has no other connection left in
	// the room; the presence list still refreshes so connection counts stay
	// accurate.
	for other := range h.rooms[room] {
		if other.userID == c.userID {
			h.sendPresence(room)
			return
		}
	}
	h.send(room, encodeFrame(events.CollaboratorLeft, map[string]any{
		"playlistId": room,
		"userId":     c.userID,
	}))
	h.sendPresence(room)
}

func (h *Hub) dropClient(c *Client) {
	if h.members[c] == nil {
		return
	}
	for room := range h.members[c] {
		h.leaveRoom(c, room, false)
	}
	delete(h.members, c)
	c.close()
}

func (h *Hub) send(room string, data []byte) {
	h.sendExcept(room, nil, data)
}

func (h *Hub) sendExcept(room string, skip *Client, data []byte) {
	for client := range h.rooms[room] {
		if client == skip {
			continue
		}
		if !client.trySend(data) {
			h.log.Warnw("dropping slow client", "user_id", client.userID)
			h.dropClient(client)
		}
	}
}

func (h *Hub) evictRoom(room string) {
	data := encodeFrame(events.PlaylistDeleted, map[string]string{"playlistId": room})
	for client := range h.rooms[room] {
		client.trySend(data)
		delete(h.members[client], room)
	}
	delete(h.rooms, room)
}

func (h *Hub) participants(room string) []Participant {
	byUser := map[string]*Participant{}
	order := []string{}
	for client := range h.rooms[room] {
		state := client.state()
		p, ok := byUser[client.userID]
		if !ok {
			byUser[client.userID] = &Participant{
				UserID:         client.userID,
				DisplayName:    client.displayName,
				JoinedAt:       client.joinedAt,
				IsEditing:      state.isEditing,
				EditingTrackID: state.editingTrackID,
				Connections:    1,
			}
			order = append(order, client.userID)
			continue
		}
		p.Connections++
		if client.joinedAt.Before(p.JoinedAt) {
			p.JoinedAt = client.joinedAt
		}
		if state.isEditing {
			p.IsEditing = true
			p.EditingTrackID = state.editingTrackID
		}
	}

	out := make([]Participant, 0, len(order))
	for _, uid := range order {
		out = append(out, *byUser[uid])
	}
	return out
}
