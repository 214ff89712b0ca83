package playlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackroom/internal/catalog"
	"trackroom/internal/events"
)

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
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

	tracks, err := s.store.ListTracks(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

type addTrackBody struct {
	catalog.TrackSpec
	Position *int `json:"position"`
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
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
	if !CanEdit(*snap, uid) {
		s.fail(w, r, errForbiddenEdit("you cannot edit this playlist"))
		return
	}

	var body addTrackBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	body.Normalize()
	if body.ExternalID == "" {
		s.fail(w, r, errMissingField("externalId is required"))
		return
	}
	if body.Title == "" {
		s.fail(w, r, errMissingField("title is required"))
		return
	}

	track, err := s.catalog.ResolveOrCreate(r.Context(), body.TrackSpec)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pt, stats, err := s.store.AddTrack(r.Context(), id, *track, uid, body.Position)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.TrackAdded,
		PlaylistID: id,
		Public:     snap.Playlist.IsPublic(),
		Payload: map[string]any{
			"track": pt,
			"stats": stats,
		},
	})
	writeJSON(w, http.StatusCreated, pt)
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	trackID := chi.URLParam(r, "trackId")

	snap, err := s.loadSnapshot(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !CanEdit(*snap, uid) {
		s.fail(w, r, errForbiddenEdit("you cannot edit this playlist"))
		return
	}

	stats, err := s.store.RemoveTrack(r.Context(), id, trackID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.TrackRemoved,
		PlaylistID: id,
		Public:     snap.Playlist.IsPublic(),
		Payload: map[string]any{
			"trackId": trackID,
			"stats":   stats,
		},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"trackId": trackID,
		"stats":   stats,
	})
}

type reorderBody struct {
	TrackIDs []string `json:"trackIds"`
}

func (s *Server) handleReorderTracks(w http.ResponseWriter, r *http.Request) {
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
	if !CanEdit(*snap, uid) {
		s.fail(w, r, errForbiddenEdit("you cannot edit this playlist"))
		return
	}

	var body reorderBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(body.TrackIDs) == 0 {
		s.fail(w, r, errMissingField("trackIds is required"))
		return
	}

	tracks, err := s.store.ReorderTracks(r.Context(), id, body.TrackIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Clients already hold the track details; the broadcast only carries the
	// new id order.
	orderedIDs := make([]string, len(tracks))
	for i, pt := range tracks {
		orderedIDs[i] = pt.Track.ID
	}
	s.publish(r.Context(), events.Event{
		Name:       events.TracksReordered,
		PlaylistID: id,
		Public:     snap.Playlist.IsPublic(),
		Payload: map[string]any{
			"trackIds": orderedIDs,
			"movedBy":  uid,
		},
	})
	writeJSON(w, http.StatusOK, tracks)
}
