package playlist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"trackroom/internal/catalog"
)

// DB is the slice of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// Store owns all playlist persistence, including the contiguous-position
// invariant for playlist_tracks.
type Store interface {
	CreatePlaylist(ctx context.Context, p *Playlist) error
	GetPlaylist(ctx context.Context, id string) (*Playlist, error)
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	UpdatePlaylist(ctx context.Context, p *Playlist) error
	DeletePlaylist(ctx context.Context, id string) error
	ListPlaylists(ctx context.Context, opts ListOptions) ([]Playlist, int, error)
	ListMine(ctx context.Context, userID string) ([]Playlist, error)
	SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error)
	RecommendPlaylists(ctx context.Context, limit int) ([]Playlist, error)

	ListTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error)
	AddTrack(ctx context.Context, playlistID string, track catalog.Track, addedBy string, position *int) (*PlaylistTrack, Stats, error)
	RemoveTrack(ctx context.Context, playlistID, trackID string) (Stats, error)
	ReorderTracks(ctx context.Context, playlistID string, orderedIDs []string) ([]PlaylistTrack, error)

	ListCollaborators(ctx context.Context, playlistID string) ([]Collaborator, error)
	AddCollaborator(ctx context.Context, playlistID, userID string) error
	RemoveCollaborator(ctx context.Context, playlistID, userID string) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	ListInvitations(ctx context.Context, playlistID string) ([]Invitation, error)
	ResolveInvitation(ctx context.Context, id, inviteeID, status string) (*Invitation, error)
	ExpireInvitations(ctx context.Context) (int, error)

	DuplicatePlaylist(ctx context.Context, srcID string, dst *Playlist) error
	ExportPlaylist(ctx context.Context, id string) (*Export, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// inTx runs fn inside a transaction. A transient serialization conflict is
// retried exactly once; a second failure surfaces as ConflictException.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			if isSerializationFailure(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			if isSerializationFailure(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil && isSerializationFailure(err) {
		return errConflict("concurrent modification, please retry")
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// lockPlaylist takes the per-playlist row lock every structural mutation
// serializes on. Different playlists never contend with each other.
func lockPlaylist(ctx context.Context, tx pgx.Tx, playlistID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM playlists WHERE id = $1 FOR UPDATE`, playlistID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound("playlist not found")
	}
	return err
}

const playlistColumns = `p.id, p.name, p.description, p.visibility, p.license, p.creator_id,
	p.cover_url, p.track_count, p.total_duration, p.event_id, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(rs rowScanner) (*Playlist, error) {
	var p Playlist
	err := rs.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Visibility,
		&p.License,
		&p.CreatorID,
		&p.CoverURL,
		&p.TrackCount,
		&p.TotalDuration,
		&p.EventID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreatePlaylist(ctx context.Context, p *Playlist) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO playlists (name, description, visibility, license, creator_id, cover_url, event_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`, p.Name, p.Description, p.Visibility, p.License, p.CreatorID, p.CoverURL, p.EventID).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}

		// The creator is always the first collaborator.
		_, err = tx.Exec(ctx, `
			INSERT INTO playlist_collaborators (playlist_id, user_id)
			VALUES ($1, $2)
		`, p.ID, p.CreatorID)
		return err
	})
}

func (s *PostgresStore) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	p, err := scanPlaylist(s.db.QueryRow(ctx, `
		SELECT `+playlistColumns+` FROM playlists p WHERE p.id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound("playlist not found")
	}
	return p, err
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	p, err := s.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT user_id FROM playlist_collaborators WHERE playlist_id = $1
		UNION
		SELECT invitee_id FROM invitations WHERE playlist_id = $1 AND status = 'accepted'
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := map[string]bool{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		members[uid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Snapshot{Playlist: *p, Members: members}, nil
}

func (s *PostgresStore) UpdatePlaylist(ctx context.Context, p *Playlist) error {
	err := s.db.QueryRow(ctx, `
		UPDATE playlists
		SET name = $2,
			description = $3,
			visibility = $4,
			license = $5,
			cover_url = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, p.Description, p.Visibility, p.License, p.CoverURL).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound("playlist not found")
	}
	return err
}

func (s *PostgresStore) DeletePlaylist(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNotFound("playlist not found")
	}
	return nil
}

// listPredicate is the single discovery predicate: event-owned playlists are
// excluded everywhere, and private playlists only surface for requesters who
// own them or were accepted into them.
const listPredicate = `
	p.event_id IS NULL
	AND ($1 = '' OR p.creator_id = $1)
	AND ($2 = '' OR p.visibility = $2)
	AND (p.visibility = 'public' OR ($3 <> '' AND (
		p.creator_id = $3
		OR EXISTS (SELECT 1 FROM playlist_collaborators pc WHERE pc.playlist_id = p.id AND pc.user_id = $3)
		OR EXISTS (SELECT 1 FROM invitations i WHERE i.playlist_id = p.id AND i.invitee_id = $3 AND i.status = 'accepted')
	)))`

func (s *PostgresStore) ListPlaylists(ctx context.Context, opts ListOptions) ([]Playlist, int, error) {
	var total int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM playlists p WHERE `+listPredicate,
		opts.Owner, opts.Visibility, opts.RequesterID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	offset := (opts.Page - 1) * opts.Limit
	rows, err := s.db.Query(ctx,
		`SELECT `+playlistColumns+` FROM playlists p
		 WHERE `+listPredicate+`
		 ORDER BY p.updated_at DESC
		 LIMIT $4 OFFSET $5`,
		opts.Owner, opts.Visibility, opts.RequesterID, opts.Limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	playlists, err := collectPlaylists(rows)
	return playlists, total, err
}

func (s *PostgresStore) ListMine(ctx context.Context, userID string) ([]Playlist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+playlistColumns+` FROM playlists p
		WHERE p.event_id IS NULL
		  AND (p.creator_id = $1
			OR EXISTS (SELECT 1 FROM playlist_collaborators pc WHERE pc.playlist_id = p.id AND pc.user_id = $1)
			OR EXISTS (SELECT 1 FROM invitations i WHERE i.playlist_id = p.id AND i.invitee_id = $1 AND i.status = 'accepted'))
		ORDER BY p.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPlaylists(rows)
}

func (s *PostgresStore) SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+playlistColumns+` FROM playlists p
		WHERE p.event_id IS NULL
		  AND p.visibility = 'public'
		  AND (p.name ILIKE '%' || $1 || '%' OR p.description ILIKE '%' || $1 || '%')
		ORDER BY p.updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPlaylists(rows)
}

func (s *PostgresStore) RecommendPlaylists(ctx context.Context, limit int) ([]Playlist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+playlistColumns+` FROM playlists p
		WHERE p.event_id IS NULL AND p.visibility = 'public'
		ORDER BY p.track_count DESC, p.updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPlaylists(rows)
}

func collectPlaylists(rows pgx.Rows) ([]Playlist, error) {
	playlists := []Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *p)
	}
	return playlists, rows.Err()
}

const playlistTrackColumns = `pt.id, pt.playlist_id, pt.added_by, pt.position, pt.added_at,
	t.id, t.external_id, t.title, t.artist, t.album, t.duration, t.preview_url, t.cover_url, t.created_at`

func scanPlaylistTrack(rs rowScanner) (*PlaylistTrack, error) {
	var pt PlaylistTrack
	err := rs.Scan(
		&pt.ID,
		&pt.PlaylistID,
		&pt.AddedBy,
		&pt.Position,
		&pt.AddedAt,
		&pt.Track.ID,
		&pt.Track.ExternalID,
		&pt.Track.Title,
		&pt.Track.Artist,
		&pt.Track.Album,
		&pt.Track.Duration,
		&pt.Track.PreviewURL,
		&pt.Track.CoverURL,
		&pt.Track.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listTracks(ctx context.Context, q querier, playlistID string) ([]PlaylistTrack, error) {
	rows, err := q.Query(ctx, `
		SELECT `+playlistTrackColumns+`
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = $1
		ORDER BY pt.position ASC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := []PlaylistTrack{}
	for rows.Next() {
		pt, err := scanPlaylistTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *pt)
	}
	return tracks, rows.Err()
}

func (s *PostgresStore) ListTracks(ctx context.Context, playlistID string) ([]PlaylistTrack, error) {
	return listTracks(ctx, s.db, playlistID)
}

// shiftUp makes room at position from. Rows are walked highest position
// first so the eager unique index never sees a transient collision.
func shiftUp(ctx context.Context, tx pgx.Tx, playlistID string, from int) error {
	rows, err := tx.Query(ctx, `
		SELECT id FROM playlist_tracks
		WHERE playlist_id = $1 AND position >= $2
		ORDER BY position DESC
	`, playlistID, from)
	if err != nil {
		return err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			UPDATE playlist_tracks SET position = position + 1 WHERE id = $1
		`, id); err != nil {
			return err
		}
	}
	return nil
}

// compactAfter closes the gap left at removed. Rows are walked lowest
// position first, the mirror of shiftUp.
func compactAfter(ctx context.Context, tx pgx.Tx, playlistID string, removed int) error {
	rows, err := tx.Query(ctx, `
		SELECT id FROM playlist_tracks
		WHERE playlist_id = $1 AND position > $2
		ORDER BY position ASC
	`, playlistID, removed)
	if err != nil {
		return err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			UPDATE playlist_tracks SET position = position - 1 WHERE id = $1
		`, id); err != nil {
			return err
		}
	}
	return nil
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// recomputeStats rebuilds the cached track count and duration from the join
// rows and persists them onto the playlist.
func recomputeStats(ctx context.Context, tx pgx.Tx, playlistID string) (Stats, error) {
	var st Stats
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(t.duration), 0)
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = $1
	`, playlistID).Scan(&st.TrackCount, &st.TotalDuration); err != nil {
		return st, err
	}
	_, err := tx.Exec(ctx, `
		UPDATE playlists
		SET track_count = $2, total_duration = $3, updated_at = now()
		WHERE id = $1
	`, playlistID, st.TrackCount, st.TotalDuration)
	return st, err
}

func (s *PostgresStore) AddTrack(ctx context.Context, playlistID string, track catalog.Track, addedBy string, position *int) (*PlaylistTrack, Stats, error) {
	var pt PlaylistTrack
	var stats Stats

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM playlist_tracks WHERE playlist_id = $1 AND track_id = $2)
		`, playlistID, track.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return errDuplicateTrack("track is already in this playlist")
		}

		var last int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(position), 0) FROM playlist_tracks WHERE playlist_id = $1
		`, playlistID).Scan(&last); err != nil {
			return err
		}

		pos := last + 1
		if position != nil {
			requested := *position
			if requested < 1 {
				requested = 1
			}
			if requested <= last {
				pos = requested
				if err := shiftUp(ctx, tx, playlistID, requested); err != nil {
					return err
				}
			}
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO playlist_tracks (playlist_id, track_id, added_by, position)
			VALUES ($1, $2, $3, $4)
			RETURNING id, added_at
		`, playlistID, track.ID, addedBy, pos).Scan(&pt.ID, &pt.AddedAt); err != nil {
			return err
		}
		pt.PlaylistID = playlistID
		pt.AddedBy = addedBy
		pt.Position = pos
		pt.Track = track

		var err error
		stats, err = recomputeStats(ctx, tx, playlistID)
		return err
	})
	if err != nil {
		return nil, Stats{}, err
	}
	return &pt, stats, nil
}

func (s *PostgresStore) RemoveTrack(ctx context.Context, playlistID, trackID string) (Stats, error) {
	var stats Stats

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		var pos int
		err := tx.QueryRow(ctx, `
			SELECT position FROM playlist_tracks
			WHERE playlist_id = $1 AND track_id = $2
		`, playlistID, trackID).Scan(&pos)
		if errors.Is(err, pgx.ErrNoRows) {
			return errNotFound("track is not in this playlist")
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM playlist_tracks WHERE playlist_id = $1 AND track_id = $2
		`, playlistID, trackID); err != nil {
			return err
		}

		if err := compactAfter(ctx, tx, playlistID, pos); err != nil {
			return err
		}

		stats, err = recomputeStats(ctx, tx, playlistID)
		return err
	})
	return stats, err
}

func (s *PostgresStore) ReorderTracks(ctx context.Context, playlistID string, orderedIDs []string) ([]PlaylistTrack, error) {
	var out []PlaylistTrack

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockPlaylist(ctx, tx, playlistID); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT track_id FROM playlist_tracks WHERE playlist_id = $1
		`, playlistID)
		if err != nil {
			return err
		}
		current, err := collectIDs(rows)
		if err != nil {
			return err
		}

		// The input must be exactly the current membership: a full replace,
		// not a delta.
		if len(orderedIDs) != len(current) {
			return errInvalidReorderSet("track ids do not match playlist contents")
		}
		currentSet := map[string]bool{}
		for _, id := range current {
			currentSet[id] = true
		}
		seen := map[string]bool{}
		for _, id := range orderedIDs {
			if !currentSet[id] || seen[id] {
				return errInvalidReorderSet("track ids do not match playlist contents")
			}
			seen[id] = true
		}

		// Park every row above the live range first so assigning the final
		// 1..N order never collides with a not-yet-moved row.
		if _, err := tx.Exec(ctx, `
			UPDATE playlist_tracks SET position = position + $2 WHERE playlist_id = $1
		`, playlistID, len(orderedIDs)); err != nil {
			return err
		}
		for i, id := range orderedIDs {
			if _, err := tx.Exec(ctx, `
				UPDATE playlist_tracks SET position = $3
				WHERE playlist_id = $1 AND track_id = $2
			`, playlistID, id, i+1); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE playlists SET updated_at = now() WHERE id = $1
		`, playlistID); err != nil {
			return err
		}

		out, err = listTracks(ctx, tx, playlistID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListCollaborators(ctx context.Context, playlistID string) ([]Collaborator, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, created_at
		FROM playlist_collaborators
		WHERE playlist_id = $1
		ORDER BY created_at ASC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collaborators := []Collaborator{}
	for rows.Next() {
		var c Collaborator
		if err := rows.Scan(&c.UserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		collaborators = append(collaborators, c)
	}
	return collaborators, rows.Err()
}

func (s *PostgresStore) AddCollaborator(ctx context.Context, playlistID, userID string) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO playlist_collaborators (playlist_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (playlist_id, user_id) DO NOTHING
	`, playlistID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errDuplicateCollaborator("user is already a collaborator")
	}
	return nil
}

func (s *PostgresStore) RemoveCollaborator(ctx context.Context, playlistID, userID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM playlist_collaborators
		WHERE playlist_id = $1 AND user_id = $2
	`, playlistID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNotFound("collaborator not found")
	}
	return nil
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO invitations (playlist_id, inviter_id, invitee_id, invite_type, status, expires_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		RETURNING id, status, expires_at, created_at
	`, inv.PlaylistID, inv.InviterID, inv.InviteeID, InviteTypePlaylist, time.Now().UTC().Add(invitationTTL)).
		Scan(&inv.ID, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
}

func (s *PostgresStore) ListInvitations(ctx context.Context, playlistID string) ([]Invitation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, playlist_id, inviter_id, invitee_id, invite_type, status, expires_at, created_at
		FROM invitations
		WHERE playlist_id = $1
		ORDER BY created_at DESC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invitations := []Invitation{}
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.PlaylistID, &inv.InviterID, &inv.InviteeID,
			&inv.Type, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// ResolveInvitation transitions a pending invitation to accepted or
// declined on behalf of its invitee. Acceptance also inserts the invitee
// into the collaborator relation.
func (s *PostgresStore) ResolveInvitation(ctx context.Context, id, inviteeID, status string) (*Invitation, error) {
	var inv Invitation

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, playlist_id, inviter_id, invitee_id, invite_type, status, expires_at, created_at
			FROM invitations
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(&inv.ID, &inv.PlaylistID, &inv.InviterID, &inv.InviteeID,
			&inv.Type, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return errNotFound("invitation not found")
		}
		if err != nil {
			return err
		}

		if inv.InviteeID != inviteeID {
			return errAccessDenied("invitation belongs to another user")
		}
		if inv.Status != InviteStatusPending {
			return errConflict("invitation already resolved")
		}
		// The sweeper owns the status flip to expired; here it is enough to
		// refuse the resolution.
		if time.Now().After(inv.ExpiresAt) {
			return errConflict("invitation has expired")
		}

		if _, err := tx.Exec(ctx, `
			UPDATE invitations SET status = $2 WHERE id = $1
		`, id, status); err != nil {
			return err
		}
		inv.Status = status

		if status == InviteStatusAccepted {
			if _, err := tx.Exec(ctx, `
				INSERT INTO playlist_collaborators (playlist_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (playlist_id, user_id) DO NOTHING
			`, inv.PlaylistID, inv.InviteeID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *PostgresStore) ExpireInvitations(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE invitations SET status = 'expired'
		WHERE status = 'pending' AND expires_at < now()
	`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DuplicatePlaylist creates dst and copies the source's rows preserving
// their relative order. Collaborators are not copied.
func (s *PostgresStore) DuplicatePlaylist(ctx context.Context, srcID string, dst *Playlist) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockPlaylist(ctx, tx, srcID); err != nil {
			return err
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO playlists (name, description, visibility, license, creator_id, cover_url)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`, dst.Name, dst.Description, dst.Visibility, dst.License, dst.CreatorID, dst.CoverURL).
			Scan(&dst.ID, &dst.CreatedAt, &dst.UpdatedAt); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO playlist_collaborators (playlist_id, user_id)
			VALUES ($1, $2)
		`, dst.ID, dst.CreatorID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO playlist_tracks (playlist_id, track_id, added_by, position)
			SELECT $2, track_id, $3, position
			FROM playlist_tracks
			WHERE playlist_id = $1
		`, srcID, dst.ID, dst.CreatorID); err != nil {
			return err
		}

		stats, err := recomputeStats(ctx, tx, dst.ID)
		if err != nil {
			return err
		}
		dst.TrackCount = stats.TrackCount
		dst.TotalDuration = stats.TotalDuration
		return nil
	})
}

func (s *PostgresStore) ExportPlaylist(ctx context.Context, id string) (*Export, error) {
	p, err := s.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}

	tracks, err := s.ListTracks(ctx, id)
	if err != nil {
		return nil, err
	}

	exp := &Export{
		Name:          p.Name,
		Description:   p.Description,
		Visibility:    p.Visibility,
		License:       p.License,
		CoverURL:      p.CoverURL,
		TrackCount:    p.TrackCount,
		TotalDuration: p.TotalDuration,
		ExportedAt:    time.Now().UTC(),
		Tracks:        make([]ExportTrack, 0, len(tracks)),
	}
	for _, pt := range tracks {
		exp.Tracks = append(exp.Tracks, ExportTrack{
			Position:   pt.Position,
			AddedAt:    pt.AddedAt,
			ExternalID: pt.Track.ExternalID,
			Title:      pt.Track.Title,
			Artist:     pt.Track.Artist,
			Album:      pt.Track.Album,
			Duration:   pt.Track.Duration,
			PreviewURL: pt.Track.PreviewURL,
			CoverURL:   pt.Track.CoverURL,
		})
	}
	return exp, nil
}
