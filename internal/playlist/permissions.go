package playlist

// Snapshot is the already-loaded state the permission functions decide over.
// Members holds every user with an accepted grant: collaborators plus
// accepted invitees. The creator is implicitly a member. The functions below
// are pure and never perform I/O.
type Snapshot struct {
	Playlist Playlist
	Members  map[string]bool
}

func (s Snapshot) isMember(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == s.Playlist.CreatorID || s.Members[userID]
}

// CanView reports whether the requester may read the playlist. Public
// playlists are viewable by anyone, including anonymous requesters.
func CanView(s Snapshot, requesterID string) bool {
	if s.Playlist.IsPublic() {
		return true
	}
	return s.isMember(requesterID)
}

// CanEdit reports whether the requester may mutate tracks or metadata.
// Editing always requires an identity; under the open license any viewer may
// edit, under the invited license only the creator and accepted invitees.
func CanEdit(s Snapshot, requesterID string) bool {
	if requesterID == "" {
		return false
	}
	if requesterID == s.Playlist.CreatorID {
		return true
	}
	if s.Playlist.License == LicenseOpen {
		return CanView(s, requesterID)
	}
	return s.Members[requesterID]
}

// CanManageCollaborators reports whether the requester may add collaborators
// or send invitations. Collaboration rights do not cascade beyond one
// invitation hop: only the creator and accepted invitees qualify.
func CanManageCollaborators(s Snapshot, requesterID string) bool {
	return s.isMember(requesterID)
}

// CanRemoveCollaborator reports whether the requester may remove targetID
// from the collaborator relation. The creator may remove anyone except
// themself; any collaborator may remove themself.
func CanRemoveCollaborator(s Snapshot, targetID, requesterID string) bool {
	if requesterID == "" || targetID == "" {
		return false
	}
	if targetID == s.Playlist.CreatorID {
		return false
	}
	if requesterID == s.Playlist.CreatorID {
		return true
	}
	return requesterID == targetID && s.Members[targetID]
}
