// Package playlist implements the collaborative playlist engine: the
// directory, the ordered track store, the permission model, collaborators
// and invitations, all exposed over a chi router.
package playlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"trackroom/internal/catalog"
	"trackroom/internal/events"
	"trackroom/internal/mailer"
	"trackroom/internal/users"
)

type Server struct {
	store    Store
	catalog  catalog.Resolver
	users    users.Directory
	mail     mailer.Mailer
	events   events.Publisher
	log      *zap.SugaredLogger
	deepLink string
}

func NewServer(store Store, cat catalog.Resolver, dir users.Directory, mail mailer.Mailer, pub events.Publisher, log *zap.SugaredLogger, deepLink string) *Server {
	return &Server{
		store:    store,
		catalog:  cat,
		users:    dir,
		mail:     mail,
		events:   pub,
		log:      log,
		deepLink: deepLink,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Route("/playlists", func(r chi.Router) {
		r.Get("/", s.handleListPlaylists)
		r.Post("/", s.handleCreatePlaylist)
		r.Get("/search", s.handleSearchPlaylists)
		r.Get("/recommended", s.handleRecommendedPlaylists)
		r.Get("/my-playlists", s.handleMyPlaylists)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPlaylist)
			r.Patch("/", s.handleUpdatePlaylist)
			r.Delete("/", s.handleDeletePlaylist)

			r.Get("/tracks", s.handleListTracks)
			r.Post("/tracks", s.handleAddTrack)
			r.Patch("/tracks/reorder", s.handleReorderTracks)
			r.Delete("/tracks/{trackId}", s.handleRemoveTrack)

			r.Get("/collaborators", s.handleListCollaborators)
			r.Post("/collaborators", s.handleAddCollaborator)
			r.Delete("/collaborators/{userId}", s.handleRemoveCollaborator)

			r.Get("/invitations", s.handleListInvitations)
			r.Post("/invite", s.handleInvite)

			r.Post("/duplicate", s.handleDuplicatePlaylist)
			r.Get("/export", s.handleExportPlaylist)
		})
	})

	r.Route("/invitations/{id}", func(r chi.Router) {
		r.Post("/accept", s.handleAcceptInvitation)
		r.Post("/decline", s.handleDeclineInvitation)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
