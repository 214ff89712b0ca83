package playlist

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackroom/internal/catalog"
)

func TestAddTrack_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM playlists").
		WithArgs("pl-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("pl-1"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("pl-1", "t-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("pl-1").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO playlist_tracks").
		WithArgs("pl-1", "t-1", "user-1", 4).
		WillReturnRows(pgxmock.NewRows([]string{"id", "added_at"}).AddRow("pt-1", now))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("pl-1").
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum"}).AddRow(4, 860))
	mock.ExpectExec("UPDATE playlists").
		WithArgs("pl-1", 4, 860).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	store := NewPostgresStore(mock)
	pt, stats, err := store.AddTrack(context.Background(), "pl-1", catalog.Track{ID: "t-1", Duration: 180}, "user-1", nil)
	require.NoError(t, err)

	assert.Equal(t, 4, pt.Position)
	assert.Equal(t, "pt-1", pt.ID)
	assert.Equal(t, Stats{TrackCount: 4, TotalDuration: 860}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddTrack_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM playlists").
		WithArgs("pl-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("pl-1"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("pl-1", "t-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	_, _, err = store.AddTrack(context.Background(), "pl-1", catalog.Track{ID: "t-1"}, "user-1", nil)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "DuplicateTrack", apiErr.code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddTrack_UnknownPlaylist(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM playlists").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	_, _, err = store.AddTrack(context.Background(), "nope", catalog.Track{ID: "t-1"}, "user-1", nil)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NotFound", apiErr.code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveTrack_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM playlists").
		WithArgs("pl-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("pl-1"))
	mock.ExpectQuery("SELECT position FROM playlist_tracks").
		WithArgs("pl-1", "t-404").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	store := NewPostgresStore(mock)
	_, err = store.RemoveTrack(context.Background(), "pl-1", "t-404")

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NotFound", apiErr.code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderTracks_InvalidSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	cases := []struct {
		name    string
		current []string
		input   []string
	}{
		{"missing track", []string{"a", "b", "c"}, []string{"a", "b"}},
		{"unknown track", []string{"a", "b"}, []string{"a", "x"}},
		{"duplicated track", []string{"a", "b"}, []string{"a", "a"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := pgxmock.NewRows([]string{"track_id"})
			for _, id := range tc.current {
				rows.AddRow(id)
			}

			mock.ExpectBegin()
			mock.ExpectQuery("SELECT id FROM playlists").
				WithArgs("pl-1").
				WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("pl-1"))
			mock.ExpectQuery("SELECT track_id FROM playlist_tracks").
				WithArgs("pl-1").
				WillReturnRows(rows)
			mock.ExpectRollback()

			_, err := store.ReorderTracks(context.Background(), "pl-1", tc.input)

			var apiErr *apiError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "InvalidReorderSet", apiErr.code)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateInvitation_SevenDayExpiry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO invitations").
		WithArgs("pl-1", "owner", "friend", InviteTypePlaylist, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "expires_at", "created_at"}).
			AddRow("inv-1", InviteStatusPending, now.Add(invitationTTL), now))

	store := NewPostgresStore(mock)
	inv := &Invitation{PlaylistID: "pl-1", InviterID: "owner", InviteeID: "friend"}
	require.NoError(t, store.CreateInvitation(context.Background(), inv))

	assert.WithinDuration(t, now.Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveInvitation_Guards(t *testing.T) {
	cols := []string{"id", "playlist_id", "inviter_id", "invitee_id", "invite_type", "status", "expires_at", "created_at"}
	now := time.Now()

	t.Run("wrong invitee is denied", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, playlist_id").
			WithArgs("inv-1").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("inv-1", "pl-1", "owner", "friend", InviteTypePlaylist, InviteStatusPending, now.Add(time.Hour), now))
		mock.ExpectRollback()

		store := NewPostgresStore(mock)
		_, err = store.ResolveInvitation(context.Background(), "inv-1", "impostor", InviteStatusAccepted)

		var apiErr *apiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "AccessDenied", apiErr.code)
	})

	t.Run("expired invitation is refused", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, playlist_id").
			WithArgs("inv-1").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("inv-1", "pl-1", "owner", "friend", InviteTypePlaylist, InviteStatusPending, now.Add(-time.Hour), now))
		mock.ExpectRollback()

		store := NewPostgresStore(mock)
		_, err = store.ResolveInvitation(context.Background(), "inv-1", "friend", InviteStatusAccepted)

		var apiErr *apiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "ConflictException", apiErr.code)
	})

	t.Run("acceptance inserts the collaborator", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, playlist_id").
			WithArgs("inv-1").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("inv-1", "pl-1", "owner", "friend", InviteTypePlaylist, InviteStatusPending, now.Add(time.Hour), now))
		mock.ExpectExec("UPDATE invitations").
			WithArgs("inv-1", InviteStatusAccepted).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO playlist_collaborators").
			WithArgs("pl-1", "friend").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		store := NewPostgresStore(mock)
		inv, err := store.ResolveInvitation(context.Background(), "inv-1", "friend", InviteStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, InviteStatusAccepted, inv.Status)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInTx_SerializationConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Both attempts fail with a serialization error, so the caller sees a
	// conflict rather than a raw SQLSTATE.
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE playlists").
			WithArgs("pl-1").
			WillReturnError(&pgconn.PgError{Code: "40001"})
		mock.ExpectRollback()
	}

	store := NewPostgresStore(mock)
	err = store.inTx(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `UPDATE playlists SET updated_at = now() WHERE id = $1`, "pl-1")
		return err
	})

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ConflictException", apiErr.code)
	require.NoError(t, mock.ExpectationsWereMet())
}
