package playlist

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"trackroom/internal/events"
)

type duplicateBody struct {
	Name       *string `json:"name"`
	Visibility *string `json:"visibility"`
	License    *string `json:"license"`
}

// handleDuplicatePlaylist copies a viewable playlist into a fresh one owned
// by the requester. Track order carries over; collaborators do not.
func (s *Server) handleDuplicatePlaylist(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	snap, err := s.loadSnapshot(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !CanView(*snap, uid) {
		s.fail(w, r, errAccessDenied("you do not have access to this playlist"))
		return
	}

	var body duplicateBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	dst := &Playlist{
		Name:        "Copy of " + snap.Playlist.Name,
		Description: snap.Playlist.Description,
		Visibility:  snap.Playlist.Visibility,
		License:     snap.Playlist.License,
		CoverURL:    snap.Playlist.CoverURL,
		CreatorID:   uid,
	}
	if body.Name != nil && strings.TrimSpace(*body.Name) != "" {
		dst.Name = strings.TrimSpace(*body.Name)
	}
	if body.Visibility != nil {
		if !validVisibility(*body.Visibility) {
			s.fail(w, r, errMissingField("visibility must be public or private"))
			return
		}
		dst.Visibility = *body.Visibility
	}
	if body.License != nil {
		if !validLicense(*body.License) {
			s.fail(w, r, errMissingField("license must be open or invited"))
			return
		}
		dst.License = *body.License
	}

	if err := s.store.DuplicatePlaylist(r.Context(), id, dst); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.PlaylistCreated,
		PlaylistID: dst.ID,
		Public:     dst.IsPublic(),
		Payload:    dst,
	})
	writeJSON(w, http.StatusCreated, dst)
}

func (s *Server) handleExportPlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.loadSnapshot(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !CanView(*snap, requesterID(r)) {
		s.fail(w, r, errAccessDenied("you do not have access to this playlist"))
		return
	}

	exp, err := s.store.ExportPlaylist(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
