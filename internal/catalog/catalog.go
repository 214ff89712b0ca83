// Package catalog resolves canonical track records from external catalog
// identifiers. Tracks are created lazily on first reference and are
// immutable and shared across playlists afterwards.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Track is a canonical catalog record.
type Track struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	Duration   int       `json:"duration"` // seconds
	PreviewURL string    `json:"previewUrl,omitempty"`
	CoverURL   string    `json:"coverUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TrackSpec carries the metadata a client submits alongside an external id.
type TrackSpec struct {
	ExternalID string `json:"externalId"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Duration   int    `json:"duration"`
	PreviewURL string `json:"previewUrl"`
	CoverURL   string `json:"coverUrl"`
}

func (s *TrackSpec) Normalize() {
	s.ExternalID = strings.TrimSpace(s.ExternalID)
	s.Title = strings.TrimSpace(s.Title)
	s.Artist = strings.TrimSpace(s.Artist)
	s.Album = strings.TrimSpace(s.Album)
	if s.Duration < 0 {
		s.Duration = 0
	}
}

// Resolver is the track catalog contract consumed by the playlist engine.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, spec TrackSpec) (*Track, error)
}

// DB is the slice of pgxpool.Pool the catalog store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresCatalog backs the resolver with the tracks table.
type PostgresCatalog struct {
	db DB
}

func NewPostgresCatalog(db DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// ResolveOrCreate inserts the track on first reference. On conflict the
// existing row wins untouched; the no-op update only makes RETURNING yield
// the existing row.
func (c *PostgresCatalog) ResolveOrCreate(ctx context.Context, spec TrackSpec) (*Track, error) {
	var tr Track
	err := c.db.QueryRow(ctx, `
		INSERT INTO tracks (external_id, title, artist, album, duration, preview_url, cover_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id, external_id, title, artist, album, duration, preview_url, cover_url, created_at
	`,
		spec.ExternalID,
		spec.Title,
		spec.Artist,
		spec.Album,
		spec.Duration,
		spec.PreviewURL,
		spec.CoverURL,
	).Scan(
		&tr.ID,
		&tr.ExternalID,
		&tr.Title,
		&tr.Artist,
		&tr.Album,
		&tr.Duration,
		&tr.PreviewURL,
		&tr.CoverURL,
		&tr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}
