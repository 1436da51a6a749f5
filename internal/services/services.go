// package services defines interface Catalog for interacting with upstream music catalog APIs
package services

import (
	"context"
	"fmt"

	"github.com/soundscope/soundscope/internal/models"
	"github.com/soundscope/soundscope/internal/shared"
)

// Catalog defines the operations the ingestion pipeline needs from an
// upstream music catalog provider.
type Catalog interface {
	// SearchArtist queries the catalog by free-text name and returns the
	// first-ranked match, or an error wrapping [shared.ErrArtistNotFound]
	// when nothing matches.
	SearchArtist(ctx context.Context, name string) (*models.Artist, error)

	// Discography returns every album, single and compilation for the
	// artist, across all upstream pages.
	Discography(ctx context.Context, artistID string) ([]models.Album, error)

	// AlbumTracks returns the track listing for an album, across all
	// upstream pages.
	AlbumTracks(ctx context.Context, albumID string) ([]TrackSummary, error)

	// AudioFeatures returns one feature set per track id, aligned by
	// position with the input. Tracks the upstream has not analyzed yield
	// nil entries.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]*models.FeatureSet, error)

	// Name returns the name of the provider (e.g., "Spotify")
	Name() string
}

// TrackSummary is a track's identity as listed on an album, before its
// audio features are merged in.
type TrackSummary struct {
	ID         string
	Name       string
	Number     int
	DurationMS int
}

// UpstreamError carries the status code and response body of a failed
// upstream API call for diagnostics.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", shared.ErrUpstream, e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", shared.ErrUpstream, e.Status, e.Body)
}

// Unwrap lets callers branch with errors.Is(err, shared.ErrUpstream).
func (e *UpstreamError) Unwrap() error {
	return shared.ErrUpstream
}
