package playlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trackroom/internal/events"
)

func (s *Server) handleListCollaborators(w http.ResponseWriter, r *http.Request) {
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

	collaborators, err := s.store.ListCollaborators(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collaborators)
}

type addCollaboratorBody struct {
	UserID string `json:"userId"`
}

func (s *Server) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
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
	if !CanManageCollaborators(*snap, uid) {
		s.fail(w, r, errAccessDenied("you cannot manage collaborators on this playlist"))
		return
	}

	var body addCollaboratorBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.UserID == "" {
		s.fail(w, r, errMissingField("userId is required"))
		return
	}

	exists, err := s.users.Exists(r.Context(), body.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !exists {
		s.fail(w, r, errNotFound("user not found"))
		return
	}

	if err := s.store.AddCollaborator(r.Context(), id, body.UserID); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.CollaboratorAdded,
		PlaylistID: id,
		Public:     snap.Playlist.IsPublic(),
		Payload: map[string]string{
			"userId":  body.UserID,
			"addedBy": uid,
		},
	})
	writeJSON(w, http.StatusCreated, map[string]string{"userId": body.UserID})
}

func (s *Server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	target := chi.URLParam(r, "userId")

	snap, err := s.loadSnapshot(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !CanRemoveCollaborator(*snap, target, uid) {
		s.fail(w, r, errAccessDenied("you cannot remove this collaborator"))
		return
	}

	if err := s.store.RemoveCollaborator(r.Context(), id, target); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.CollaboratorRemoved,
		PlaylistID: id,
		Public:     snap.Playlist.IsPublic(),
		Payload: map[string]string{
			"userId":    target,
			"removedBy": uid,
		},
	})
	writeJSON(w, http.StatusOK, map[string]string{"userId": target})
}
