package playlist

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"trackroom/internal/catalog"
	"trackroom/internal/events"
)

// MockStore implements Store for handler tests. Unset funcs return zero
// values.
type MockStore struct {
	CreatePlaylistFunc     func(ctx context.Context, p *Playlist) error
	GetPlaylistFunc        func(ctx context.Context, id string) (*Playlist, error)
	GetSnapshotFunc        func(ctx context.Context, id string) (*Snapshot, error)
	UpdatePlaylistFunc     func(ctx context.Context, p *Playlist) error
	DeletePlaylistFunc     func(ctx context.Context, id string) error
	ListPlaylistsFunc      func(ctx context.Context, opts ListOptions) ([]Playlist, int, error)
	ListMineFunc           func(ctx context.Context, userID string) ([]Playlist, error)
	SearchPlaylistsFunc    func(ctx context.Context, query string, limit int) ([]Playlist, error)
	RecommendPlaylistsFunc func(ctx context.Context, limit int) ([]Playlist, error)
	ListTracksFunc         func(ctx context.Context, playlistID string) ([]PlaylistTrack, error)
	AddTrackFunc           func(ctx context.Context, playlistID string, track catalog.Track, addedBy string, position *int) (*PlaylistTrack, Stats, error)
	RemoveTrackFunc        func(ctx context.Context, playlistID, trackID string) (Stats, error)
	ReorderTracksFunc      func(ctx context.Context, playlistID string, orderedIDs []string) ([]PlaylistTrack, error)
	ListCollaboratorsFunc  func(ctx context.Context, playlistID string) ([]Collaborator, error)
	AddCollaboratorFunc    func(ctx context.Context, playlistID, userID string) error
	RemoveCollaboratorFunc func(ctx context.Context, playlistID, userID string) error
	CreateInvitationFunc   func(ctx context.Context, inv *Invitation) error
	ListInvitationsFunc    func(ctx context.Context, playlistID string) ([]Invitation, error)
	ResolveInvitationFunc  func(ctx context.Context, id, inviteeID, status string) (*Invitation, error)
	ExpireInvitationsFunc  func(ctx context.Context) (int, error)
	DuplicatePlaylistFunc  func(ctx context.Context, srcID string, dst *Playlist) error
	ExportPlaylistFunc     func(ctx context.Context, id string) (*Export, error)
}

func (m *MockStore) CreatePlaylist(ctx context.Context, p *Playlist) error {
	if m.CreatePlaylistFunc != nil {
		return m.CreatePlaylistFunc(ctx, p)
	}
	return nil
}

func (m *MockStore) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	if m.GetPlaylistFunc != nil {
		return m.GetPlaylistFunc(ctx, id)
	}
	return &Playlist{ID: id}, nil
}

func (m *MockStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	if m.GetSnapshotFunc != nil {
		return m.GetSnapshotFunc(ctx, id)
	}
	return &Snapshot{Playlist: Playlist{ID: id}, Members: map[string]bool{}}, nil
}

func (m *MockStore) UpdatePlaylist(ctx context.Context, p *Playlist) error {
	if m.UpdatePlaylistFunc != nil {
		return m.UpdatePlaylistFunc(ctx, p)
	}
	return nil
}

func (m *MockStore) DeletePlaylist(ctx context.Context, id string) error {
	if m.DeletePlaylistFunc != nil {
		return m.DeletePlaylistFunc(ctx, id)
	}
	return nil
}

func (m *MockStore) ListPlaylists(ctx context.Context, opts ListOptions) ([]Playlist, int, error) {
	if m.ListPlaylistsFunc != nil {
		return m.ListPlaylistsFunc(ctx, opts)
	}
	return nil, 0, nil
}

func (m *MockStore) ListMine(ctx context.Context, userID string) ([]Playlist, error) {
	if m.ListMineFunc != nil {
		return m.ListMineFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockStore) SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error) {
	if m.SearchPlaylistsFunc != nil {
		return m.SearchPlaylistsFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockStore) RecommendPlaylists(ctx context.Context, limit int) ([]Playlist, error) {
	if m.RecommendPlaylistsFunc != nil {
		return m.RecommendPlaylistsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockStore) ListTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error) {
	if m.ListTracksFunc != nil {
		return m.ListTracksFunc(ctx, playlistID)
	}
	return nil, nil
}

func (m *MockStore) AddTrack(ctx context.Context, playlistID string, track catalog.Track, addedBy string, position *int) (*PlaylistTrack, Stats, error) {
	if m.AddTrackFunc != nil {
		return m.AddTrackFunc(ctx, playlistID, track, addedBy, position)
	}
	return &PlaylistTrack{PlaylistID: playlistID, Track: track, Position: 1}, Stats{TrackCount: 1}, nil
}

func (m *MockStore) RemoveTrack(ctx context.Context, playlistID, trackID string) (Stats, error) {
	if m.RemoveTrackFunc != nil {
		return m.RemoveTrackFunc(ctx, playlistID, trackID)
	}
	return Stats{}, nil
}

func (m *MockStore) ReorderTracks(ctx context.Context, playlistID string, orderedIDs []string) ([]PlaylistTrack, error) {
	if m.ReorderTracksFunc != nil {
		return m.ReorderTracksFunc(ctx, playlistID, orderedIDs)
	}
	return nil, nil
}

func (m *MockStore) ListCollaborators(ctx context.Context, playlistID string) ([]Collaborator, error) {
	if m.ListCollaboratorsFunc != nil {
		return m.ListCollaboratorsFunc(ctx, playlistID)
	}
	return nil, nil
}

func (m *MockStore) AddCollaborator(ctx context.Context, playlistID, userID string) error {
	if m.AddCollaboratorFunc != nil {
		return m.AddCollaboratorFunc(ctx, playlistID, userID)
	}
	return nil
}

func (m *MockStore) RemoveCollaborator(ctx context.Context, playlistID, userID string) error {
	if m.RemoveCollaboratorFunc != nil {
		return m.RemoveCollaboratorFunc(ctx, playlistID, userID)
	}
	return nil
}

func (m *MockStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if m.CreateInvitationFunc != nil {
		return m.CreateInvitationFunc(ctx, inv)
	}
	inv.ID = "inv-1"
	inv.Status = InviteStatusPending
	return nil
}

func (m *MockStore) ListInvitations(ctx context.Context, playlistID string) ([]Invitation, error) {
	if m.ListInvitationsFunc != nil {
		return m.ListInvitationsFunc(ctx, playlistID)
	}
	return nil, nil
}

func (m *MockStore) ResolveInvitation(ctx context.Context, id, inviteeID, status string) (*Invitation, error) {
	if m.ResolveInvitationFunc != nil {
		return m.ResolveInvitationFunc(ctx, id, inviteeID, status)
	}
	return &Invitation{ID: id, InviteeID: inviteeID, Status: status}, nil
}

func (m *MockStore) ExpireInvitations(ctx context.Context) (int, error) {
	if m.ExpireInvitationsFunc != nil {
		return m.ExpireInvitationsFunc(ctx)
	}
	return 0, nil
}

func (m *MockStore) DuplicatePlaylist(ctx context.Context, srcID string, dst *Playlist) error {
	if m.DuplicatePlaylistFunc != nil {
		return m.DuplicatePlaylistFunc(ctx, srcID, dst)
	}
	dst.ID = "pl-copy"
	return nil
}

func (m *MockStore) ExportPlaylist(ctx context.Context, id string) (*Export, error) {
	if m.ExportPlaylistFunc != nil {
		return m.ExportPlaylistFunc(ctx, id)
	}
	return &Export{}, nil
}

var _ Store = (*MockStore)(nil)

// MockResolver implements catalog.Resolver without a database.
type MockResolver struct {
	ResolveFunc func(ctx context.Context, spec catalog.TrackSpec) (*catalog.Track, error)
}

func (m *MockResolver) ResolveOrCreate(ctx context.Context, spec catalog.TrackSpec) (*catalog.Track, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, spec)
	}
	return &catalog.Track{
		ID:         "track-" + spec.ExternalID,
		ExternalID: spec.ExternalID,
		Title:      spec.Title,
		Artist:     spec.Artist,
		Album:      spec.Album,
		Duration:   spec.Duration,
	}, nil
}

// CapturePublisher records every published event.
type CapturePublisher struct {
	mu     sync.Mutex
	Events []events.Event
}

func (p *CapturePublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
	return nil
}

func (p *CapturePublisher) Published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.Events))
	copy(out, p.Events)
	return out
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
