package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trackroom/internal/events"
	"trackroom/internal/users"
)

func newTestRig(t *testing.T) (*Server, *events.RedisPublisher, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hub := NewHub(zap.NewNop().Sugar())
	go hub.Run()

	pub := events.NewRedisPublisher(rdb)
	dir := &users.StaticDirectory{Accounts: []users.Account{
		{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"},
	}}
	srv := NewServer(hub, rdb, pub, dir, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	go srv.RunRedisSubscriber(ctx)
	// Give the subscription a moment to establish before anything publishes.
	time.Sleep(50 * time.Millisecond)

	return srv, pub, func() {
		cancel()
		rdb.Close()
		mr.Close()
	}
}

// dialWS connects through the full handshake path, identity header included.
func dialWS(t *testing.T, srv *Server, userID string) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(srv.Router())
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	header := http.Header{}
	if userID != "" {
		header.Set("X-User-Id", userID)
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		server.Close()
		t.Fatalf("dial: %v", err)
	}
	return ws, func() {
		ws.Close()
		server.Close()
	}
}

func sendFrame(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ws.WriteJSON(Frame{Event: event, Data: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func joinRoom(t *testing.T, ws *websocket.Conn, room string) {
	t.Helper()
	sendFrame(t, ws, evJoinPlaylist, map[string]string{"playlistId": room})
	readFrame(t, ws) // joined-playlist
	readFrame(t, ws) // participants-list
}

func TestServer_HandshakeRequiresIdentity(t *testing.T) {
	srv, _, cleanup := newTestRig(t)
	defer cleanup()

	server := httptest.NewServer(srv.Router())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake rejection without identity")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestServer_WelcomeAndPlaceholderName(t *testing.T) {
	srv, _, cleanup := newTestRig(t)
	defer cleanup()

	// "ghost-user-id" is not in the directory, so the presence name degrades
	// to a placeholder instead of failing the handshake.
	ws, closeWS := dialWS(t, srv, "ghost-user-id")
	defer closeWS()

	f := readFrame(t, ws)
	if f.Event != "welcome" {
		t.Fatalf("expected welcome, got %s", f.Event)
	}
	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(f.Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.DisplayName != "listener-ghost-us" {
		t.Errorf("expected placeholder name, got %q", body.DisplayName)
	}
}

func TestServer_RoutesEventsToRoom(t *testing.T) {
	srv, pub, cleanup := newTestRig(t)
	defer cleanup()

	wsA, closeA := dialWS(t, srv, "alice")
	defer closeA()
	readFrame(t, wsA) // welcome
	joinRoom(t, wsA, "pl-1")

	wsB, closeB := dialWS(t, srv, "ghost")
	defer closeB()
	readFrame(t, wsB) // welcome
	joinRoom(t, wsB, "pl-2")

	err := pub.Publish(context.Background(), events.Event{
		Name:       events.TrackAdded,
		PlaylistID: "pl-1",
		Payload:    map[string]string{"trackId": "t-1"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	f := readFrame(t, wsA)
	if f.Event != events.TrackAdded {
		t.Errorf("expected %s, got %s", events.TrackAdded, f.Event)
	}
	expectNoFrame(t, wsB)
}

func TestServer_DirectoryMirror(t *testing.T) {
	srv, pub, cleanup := newTestRig(t)
	defer cleanup()

	ws, closeWS := dialWS(t, srv, "alice")
	defer closeWS()
	readFrame(t, ws) // welcome
	sendFrame(t, ws, evJoinDirectory, nil)

	t.Run("public structural events are mirrored under the directory name", func(t *testing.T) {
		err := pub.Publish(context.Background(), events.Event{
			Name:       events.TrackAdded,
			PlaylistID: "pl-public",
			Public:     true,
			Payload:    map[string]string{"trackId": "t-1"},
		})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		f := readFrame(t, ws)
		if f.Event != events.DirectoryTrackAdded {
			t.Errorf("expected %s, got %s", events.DirectoryTrackAdded, f.Event)
		}
	})

	t.Run("private playlists never reach the directory room", func(t *testing.T) {
		err := pub.Publish(context.Background(), events.Event{
			Name:       events.TrackAdded,
			PlaylistID: "pl-private",
			Payload:    map[string]string{"trackId": "t-2"},
		})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		expectNoFrame(t, ws)
	})

	t.Run("transient signals are room only", func(t *testing.T) {
		err := pub.Publish(context.Background(), events.Event{
			Name:       events.TrackDragPreview,
			PlaylistID: "pl-public",
			Public:     true,
			Payload:    map[string]string{"trackId": "t-3"},
		})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		expectNoFrame(t, ws)
	})
}

func TestServer_DeleteClosesRoom(t *testing.T) {
	srv, pub, cleanup := newTestRig(t)
	defer cleanup()

	ws, closeWS := dialWS(t, srv, "alice")
	defer closeWS()
	readFrame(t, ws) // welcome
	joinRoom(t, ws, "doomed")

	err := pub.Publish(context.Background(), events.Event{
		Name:       events.PlaylistDeleted,
		PlaylistID: "doomed",
		Public:     true,
		Payload:    map[string]string{"playlistId": "doomed"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The room broadcast arrives first, then the eviction notice.
	for i := 0; i < 2; i++ {
		f := readFrame(t, ws)
		if f.Event != events.PlaylistDeleted {
			t.Fatalf("expected %s, got %s", events.PlaylistDeleted, f.Event)
		}
	}
	if got := srv.hub.Participants("doomed"); len(got) != 0 {
		t.Errorf("expected empty room, got %d participants", len(got))
	}
}

func TestServer_ChatRoundTrip(t *testing.T) {
	srv, _, cleanup := newTestRig(t)
	defer cleanup()

	ws, closeWS := dialWS(t, srv, "alice")
	defer closeWS()
	readFrame(t, ws) // welcome
	joinRoom(t, ws, "pl-1")

	t.Run("valid message fans out with a generated id", func(t *testing.T) {
		sendFrame(t, ws, evSendMessage, map[string]string{
			"playlistId": "pl-1",
			"message":    "  great pick  ",
		})
		f := readFrame(t, ws)
		if f.Event != events.NewPlaylistMessage {
			t.Fatalf("expected %s, got %s", events.NewPlaylistMessage, f.Event)
		}
		var body struct {
			ID      string `json:"id"`
			UserID  string `json:"userId"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(f.Data, &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.ID == "" {
			t.Error("expected generated message id")
		}
		if body.UserID != "alice" {
			t.Errorf("expected sender alice, got %s", body.UserID)
		}
		if body.Message != "great pick" {
			t.Errorf("expected trimmed message, got %q", body.Message)
		}
	})

	t.Run("length bound counts characters, not bytes", func(t *testing.T) {
		// 300 two-byte characters: well within 500 chars even though the
		// byte length is 600.
		text := strings.Repeat("ж", 300)
		sendFrame(t, ws, evSendMessage, map[string]string{
			"playlistId": "pl-1",
			"message":    text,
		})
		f := readFrame(t, ws)
		if f.Event != events.NewPlaylistMessage {
			t.Fatalf("expected %s, got %s", events.NewPlaylistMessage, f.Event)
		}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(f.Data, &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Message != text {
			t.Errorf("expected multibyte message to round-trip, got %q", body.Message)
		}
	})

	t.Run("oversized message is rejected with an error frame", func(t *testing.T) {
		sendFrame(t, ws, evSendMessage, map[string]string{
			"playlistId": "pl-1",
			"message":    strings.Repeat("x", 501),
		})
		f := readFrame(t, ws)
		if f.Event != events.Error {
			t.Fatalf("expected error frame, got %s", f.Event)
		}
	})

	t.Run("blank message is rejected", func(t *testing.T) {
		sendFrame(t, ws, evSendMessage, map[string]string{
			"playlistId": "pl-1",
			"message":    "   ",
		})
		f := readFrame(t, ws)
		if f.Event != events.Error {
			t.Fatalf("expected error frame, got %s", f.Event)
		}
	})
}

func TestServer_EditingStatusRoundTrip(t *testing.T) {
	srv, _, cleanup := newTestRig(t)
	defer cleanup()

	ws, closeWS := dialWS(t, srv, "alice")
	defer closeWS()
	readFrame(t, ws) // welcome
	joinRoom(t, ws, "pl-1")

	sendFrame(t, ws, evUpdateEditingStatus, map[string]any{
		"playlistId": "pl-1",
		"isEditing":  true,
		"trackId":    "t-9",
	})

	f := readFrame(t, ws)
	if f.Event != events.CollaboratorEditingStatus {
		t.Fatalf("expected %s, got %s", events.CollaboratorEditingStatus, f.Event)
	}

	participants := srv.hub.Participants("pl-1")
	if len(participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(participants))
	}
	if !participants[0].IsEditing || participants[0].EditingTrackID != "t-9" {
		t.Errorf("expected editing state on presence, got %+v", participants[0])
	}
}
