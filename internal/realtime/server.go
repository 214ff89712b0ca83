package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trackroom/internal/events"
	"trackroom/internal/users"
)

var upgrader = websocket.Upgrader{
	// Origin checks belong to the gateway in front of this service.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	hub   *Hub
	rdb   *redis.Client
	pub   events.Publisher
	users users.Directory
	log   *zap.SugaredLogger
}

func NewServer(hub *Hub, rdb *redis.Client, pub events.Publisher, dir users.Directory, log *zap.SugaredLogger) *Server {
	return &Server{
		hub:   hub,
		rdb:   rdb,
		pub:   pub,
		users: dir,
		log:   log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	displayName, err := s.users.DisplayName(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			s.log.Warnw("display name lookup failed", "user_id", userID, "error", err)
		}
		displayName = placeholderName(userID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:         s.hub,
		pub:         s.pub,
		conn:        conn,
		send:        make(chan []byte, 256),
		userID:      userID,
		displayName: displayName,
		joinedAt:    time.Now().UTC(),
	}
	s.hub.register <- client

	client.trySend(encodeFrame("welcome", map[string]any{
		"userId":      userID,
		"displayName": displayName,
		"now":         time.Now().UTC().Format(time.RFC3339Nano),
	}))

	go client.writePump()
	go client.readPump()
}

func placeholderName(userID string) string {
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return "listener-" + userID
}

// RunRedisSubscriber consumes the shared channel and routes every envelope
// to its playlist room. Public structural events are additionally mirrored
// into the directory room; a playlist deletion tears its room down.
func (s *Server) RunRedisSubscriber(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, events.Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.route([]byte(msg.Payload))
		}
	}
}

func (s *Server) route(raw []byte) {
	var e events.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		s.log.Warnw("malformed broadcast payload", "error", err)
		return
	}
	if e.Name == "" || e.PlaylistID == "" {
		return
	}

	s.hub.Broadcast(e.PlaylistID, encodeFrame(e.Name, e.Payload))

	if e.Public {
		if mirror, ok := events.DirectoryMirror[e.Name]; ok {
			s.hub.Broadcast(DirectoryRoom, encodeFrame(mirror, e.Payload))
		}
	}
	if e.Name == events.PlaylistDeleted {
		s.hub.CloseRoom(e.PlaylistID)
	}
}
