package playlist

import (
	"time"

	"trackroom/internal/catalog"
)

// Playlist is the aggregate root. TrackCount and TotalDuration are caches,
// always rebuildable from the playlist_tracks rows.
type Playlist struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Visibility    string    `json:"visibility"` // "public" | "private"
	License       string    `json:"license"`    // "open" | "invited"
	CreatorID     string    `json:"creatorId"`
	CoverURL      string    `json:"coverUrl,omitempty"`
	TrackCount    int       `json:"trackCount"`
	TotalDuration int       `json:"totalDuration"` // seconds
	EventID       *string   `json:"eventId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	LicenseOpen    = "open"
	LicenseInvited = "invited"
)

func (p Playlist) IsPublic() bool { return p.Visibility == VisibilityPublic }

// PlaylistTrack is the join row tying a catalog track into one playlist at a
// 1-based contiguous position.
type PlaylistTrack struct {
	ID         string        `json:"id"`
	PlaylistID string        `json:"playlistId"`
	AddedBy    string        `json:"addedBy"`
	Position   int           `json:"position"`
	AddedAt    time.Time     `json:"addedAt"`
	Track      catalog.Track `json:"track"`
}

// Collaborator is a member of the playlist's collaborator relation.
type Collaborator struct {
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Invitation grants a known account access to a playlist once accepted.
// Pending invitations expire seven days after creation.
type Invitation struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlistId"`
	InviterID  string    `json:"inviterId"`
	InviteeID  string    `json:"inviteeId"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusExpired  = "expired"

	InviteTypePlaylist = "playlist"

	invitationTTL = 7 * 24 * time.Hour
)

// Stats is the derived track-count/duration pair persisted onto the
// playlist after every structural change.
type Stats struct {
	TrackCount    int `json:"trackCount"`
	TotalDuration int `json:"totalDuration"`
}

// View is a playlist annotated relative to a requester.
type View struct {
	Playlist
	CollaboratorCount int  `json:"collaboratorCount"`
	IsOwner           bool `json:"isOwner"`
	IsCollaborator    bool `json:"isCollaborator"`
}

// Export is the portable snapshot of a playlist. It deliberately excludes
// internal ids and collaborator identities.
type Export struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Visibility    string        `json:"visibility"`
	License       string        `json:"license"`
	CoverURL      string        `json:"coverUrl,omitempty"`
	TrackCount    int           `json:"trackCount"`
	TotalDuration int           `json:"totalDuration"`
	ExportedAt    time.Time     `json:"exportedAt"`
	Tracks        []ExportTrack `json:"tracks"`
}

type ExportTrack struct {
	Position   int       `json:"position"`
	AddedAt    time.Time `json:"addedAt"`
	ExternalID string    `json:"externalId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	Duration   int       `json:"duration"`
	PreviewURL string    `json:"previewUrl,omitempty"`
	CoverURL   string    `json:"coverUrl,omitempty"`
}

// Page is the pagination envelope for list endpoints.
type Page struct {
	Items   any  `json:"items"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// ListOptions narrows and pages the directory listing.
type ListOptions struct {
	Page        int
	Limit       int
	RequesterID string
	Owner       string
	Visibility  string
}
