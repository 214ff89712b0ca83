package playlist

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"trackroom/internal/events"
)

type playlistBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Visibility  *string `json:"visibility"`
	License     *string `json:"license"`
	CoverURL    *string `json:"coverUrl"`
}

func validVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

func validLicense(l string) bool {
	return l == LicenseOpen || l == LicenseInvited
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var body playlistBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		s.fail(w, r, errMissingField("name is required"))
		return
	}

	p := &Playlist{
		Name:       strings.TrimSpace(*body.Name),
		Visibility: VisibilityPublic,
		License:    LicenseOpen,
		CreatorID:  uid,
	}
	if body.Description != nil {
		p.Description = *body.Description
	}
	if body.CoverURL != nil {
		p.CoverURL = *body.CoverURL
	}
	if body.Visibility != nil {
		if !validVisibility(*body.Visibility) {
			s.fail(w, r, errMissingField("visibility must be public or private"))
			return
		}
		p.Visibility = *body.Visibility
	}
	if body.License != nil {
		if !validLicense(*body.License) {
			s.fail(w, r, errMissingField("license must be open or invited"))
			return
		}
		p.License = *body.License
	}

	if err := s.store.CreatePlaylist(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.PlaylistCreated,
		PlaylistID: p.ID,
		Public:     p.IsPublic(),
		Payload:    p,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, limit = clampPage(page, limit)

	visibility := q.Get("visibility")
	if visibility != "" && !validVisibility(visibility) {
		s.fail(w, r, errMissingField("visibility must be public or private"))
		return
	}

	opts := ListOptions{
		Page:        page,
		Limit:       limit,
		RequesterID: requesterID(r),
		Owner:       q.Get("owner"),
		Visibility:  visibility,
	}
	playlists, total, err := s.store.ListPlaylists(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Page{
		Items:   playlists,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: page*limit < total,
		HasPrev: page > 1,
	})
}

func (s *Server) handleSearchPlaylists(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.fail(w, r, errMissingField("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	_, limit = clampPage(1, limit)

	playlists, err := s.store.SearchPlaylists(r.Context(), query, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleRecommendedPlaylists(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	_, limit = clampPage(1, limit)

	playlists, err := s.store.RecommendPlaylists(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleMyPlaylists(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	playlists, err := s.store.ListMine(r.Context(), uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.loadSnapshot(r, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	uid := requesterID(r)
	if !CanView(*snap, uid) {
		s.fail(w, r, errAccessDenied("you do not have access to this playlist"))
		return
	}
	writeJSON(w, http.StatusOK, s.view(snap, uid))
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
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

	var body playlistBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	p := snap.Playlist
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			s.fail(w, r, errMissingField("name cannot be empty"))
			return
		}
		p.Name = name
	}
	if body.Description != nil {
		p.Description = *body.Description
	}
	if body.CoverURL != nil {
		p.CoverURL = *body.CoverURL
	}
	if body.Visibility != nil {
		if !validVisibility(*body.Visibility) {
			s.fail(w, r, errMissingField("visibility must be public or private"))
			return
		}
		p.Visibility = *body.Visibility
	}
	if body.License != nil {
		if !validLicense(*body.License) {
			s.fail(w, r, errMissingField("license must be open or invited"))
			return
		}
		p.License = *body.License
	}

	if err := s.store.UpdatePlaylist(r.Context(), &p); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.PlaylistUpdated,
		PlaylistID: p.ID,
		Public:     p.IsPublic(),
		Payload:    p,
	})
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
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
	if uid != snap.Playlist.CreatorID {
		s.fail(w, r, errAccessDenied("only the creator can delete a playlist"))
		return
	}

	if err := s.store.DeletePlaylist(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Name:       events.PlaylistDeleted,
		PlaylistID: id,
		Public:     snap.Playlist.IsPublic(),
		Payload:    map[string]string{"playlistId": id},
	})
	writeJSON(w, http.StatusOK, map[string]string{"playlistId": id})
}
