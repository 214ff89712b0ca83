package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"trackroom/internal/events"
)

type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Message:   msg,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// fail maps an error to its HTTP response. Anything that is not an apiError
// is an internal failure and is logged, never leaked.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.status, apiErr.code, apiErr.msg)
		return
	}
	s.log.Errorw("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "InternalError", "internal server error")
}

// requesterID is the identity stamped by the auth middleware. Empty means
// anonymous.
func requesterID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

// requireUser rejects anonymous requests up front for endpoints that only
// make sense with an identity.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := requesterID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return "", false
	}
	return uid, true
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errMissingField("invalid request body")
	}
	return nil
}

// publish sends a broadcast event best effort. A publish failure never fails
// the request that already committed.
func (s *Server) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warnw("event publish failed", "event", e.Name, "playlist_id", e.PlaylistID, "error", err)
	}
}

// loadSnapshot fetches the permission snapshot for the playlist in the URL.
func (s *Server) loadSnapshot(r *http.Request, id string) (*Snapshot, error) {
	return s.store.GetSnapshot(r.Context(), id)
}

func (s *Server) view(snap *Snapshot, requester string) View {
	return View{
		Playlist:          snap.Playlist,
		CollaboratorCount: len(snap.Members),
		IsOwner:           requester != "" && requester == snap.Playlist.CreatorID,
		IsCollaborator:    snap.isMember(requester),
	}
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
