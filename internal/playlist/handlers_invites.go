package playlist

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"trackroom/internal/events"
	"trackroom/internal/users"
)

type inviteBody struct {
	Emails []string `json:"emails"`
}

// InviteResult reports the outcome for one invited email address. Statuses:
// "invited" when a pending invitation was created, "mail-only" when no
// account matched the address, "already-member" and "failed" otherwise.
type InviteResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	InvitationID string `json:"invitationId,omitempty"`
}

// handleInvite invites a batch of email addresses. Each address is handled
// independently: a failure for one never rolls back invitations already
// created for earlier addresses.
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
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
		s.fail(w, r, errAccessDenied("you cannot invite users to this playlist"))
		return
	}

	var body inviteBody
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	emails := make([]string, 0, len(body.Emails))
	for _, e := range body.Emails {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	if len(emails) == 0 {
		s.fail(w, r, errMissingField("emails is required"))
		return
	}

	results := make([]InviteResult, 0, len(emails))
	for _, email := range emails {
		results = append(results, s.inviteOne(r, snap, uid, email))
	}
	writeJSON(w, http.StatusCreated, results)
}

func (s *Server) inviteOne(r *http.Request, snap *Snapshot, inviterID, email string) InviteResult {
	res := InviteResult{Email: email}

	acc, err := s.users.FindByEmail(r.Context(), email)
	switch {
	case errors.Is(err, users.ErrNotFound):
		// No account yet; the mail still goes out so the recipient can sign
		// up and find the playlist.
		res.Status = "mail-only"
		s.sendInvitationMail(r, snap, email, s.deepLink)
		return res
	case err != nil:
		s.log.Warnw("account lookup failed", "email", email, "error", err)
		res.Status = "failed"
		return res
	}

	if snap.isMember(acc.ID) {
		res.Status = "already-member"
		return res
	}

	inv := &Invitation{
		PlaylistID: snap.Playlist.ID,
		InviterID:  inviterID,
		InviteeID:  acc.ID,
	}
	if err := s.store.CreateInvitation(r.Context(), inv); err != nil {
		s.log.Warnw("invitation create failed", "email", email, "error", err)
		res.Status = "failed"
		return res
	}
	res.Status = "invited"
	res.InvitationID = inv.ID

	s.sendInvitationMail(r, snap, email, s.deepLink+"/"+inv.ID)
	return res
}

// sendInvitationMail dispatches the invitation email best effort. A mail
// failure never rolls back an invitation that is already persisted.
func (s *Server) sendInvitationMail(r *http.Request, snap *Snapshot, email, deepLink string) {
	inviterName, err := s.users.DisplayName(r.Context(), requesterID(r))
	if err != nil {
		inviterName = "A collaborator"
	}
	if err := s.mail.SendPlaylistInvitation(r.Context(), email, snap.Playlist.Name, inviterName, deepLink); err != nil {
		s.log.Warnw("invitation mail failed", "email", email, "error", err)
	}
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
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
		s.fail(w, r, errAccessDenied("you cannot view invitations for this playlist"))
		return
	}

	invitations, err := s.store.ListInvitations(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invitations)
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	inv, err := s.store.ResolveInvitation(r.Context(), id, uid, InviteStatusAccepted)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.store.GetPlaylist(r.Context(), inv.PlaylistID)
	if err == nil {
		s.publish(r.Context(), events.Event{
			Name:       events.CollaboratorAdded,
			PlaylistID: inv.PlaylistID,
			Public:     p.IsPublic(),
			Payload: map[string]string{
				"userId":  uid,
				"addedBy": inv.InviterID,
			},
		})
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeclineInvitation(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	inv, err := s.store.ResolveInvitation(r.Context(), id, uid, InviteStatusDeclined)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
