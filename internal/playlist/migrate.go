package playlist

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AutoMigrate creates the schema on startup. Statements are idempotent so a
// restarting instance never fights an already-migrated database.
func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          name           TEXT NOT NULL,
          description    TEXT NOT NULL DEFAULT '',
          visibility     TEXT NOT NULL DEFAULT 'public',
          license        TEXT NOT NULL DEFAULT 'open',
          creator_id     TEXT NOT NULL,
          cover_url      TEXT NOT NULL DEFAULT '',
          track_count    INT NOT NULL DEFAULT 0,
          total_duration INT NOT NULL DEFAULT 0,
          event_id       uuid,
          created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS tracks (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          external_id TEXT NOT NULL UNIQUE,
          title       TEXT NOT NULL,
          artist      TEXT NOT NULL DEFAULT '',
          album       TEXT NOT NULL DEFAULT '',
          duration    INT NOT NULL DEFAULT 0,
          preview_url TEXT NOT NULL DEFAULT '',
          cover_url   TEXT NOT NULL DEFAULT '',
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_tracks (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          track_id    uuid NOT NULL REFERENCES tracks(id),
          added_by    TEXT NOT NULL,
          position    INT NOT NULL,
          added_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
          UNIQUE (playlist_id, track_id)
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_playlist_tracks_position
      ON playlist_tracks(playlist_id, position)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_collaborators (
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          user_id     TEXT NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (playlist_id, user_id)
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS invitations (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          inviter_id  TEXT NOT NULL,
          invitee_id  TEXT NOT NULL,
          invite_type TEXT NOT NULL DEFAULT 'playlist',
          status      TEXT NOT NULL DEFAULT 'pending',
          expires_at  TIMESTAMPTZ NOT NULL,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_invitations_playlist_status
      ON invitations(playlist_id, status)
    `); err != nil {
		return err
	}

	return nil
}
