package models

import (
	"fmt"
	"strconv"
)

// Decimal is a decimal string representation of a numeric audio feature.
//
// Feature values are stored as text rather than REAL so the value read back
// from the store is exactly the value the upstream API returned.
type Decimal string

// NewDecimal converts a float into its shortest exact decimal representation.
func NewDecimal(f float64) Decimal {
	return Decimal(strconv.FormatFloat(f, 'f', -1, 64))
}

// Float parses the decimal back into a float64.
func (d Decimal) Float() (float64, error) {
	f, err := strconv.ParseFloat(string(d), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal value %q: %w", string(d), err)
	}
	return f, nil
}

// Artist represents an artist as returned by the upstream catalog.
type Artist struct {
	ID         string   `json:"artist_id"`
	Name       string   `json:"name"`
	Followers  *int     `json:"followers"`
	Popularity *int     `json:"popularity"`
	Genres     []string `json:"genres"`
}

// Validate checks that the artist carries the fields required for persistence.
func (a Artist) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("artist id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("artist name is required")
	}
	return nil
}

// Image represents an artwork resource.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Album represents an album, single or compilation.
type Album struct {
	ID               string   `json:"album_id"`
	Type             string   `json:"album_type"` // album, single, compilation
	Name             string   `json:"album_name"`
	TotalTracks      int      `json:"total_tracks"`
	AvailableMarkets []string `json:"available_markets"`
	Images           []Image  `json:"images"`
}

// Validate checks that the album carries the fields required for persistence.
func (a Album) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("album id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("album name is required")
	}
	if a.TotalTracks < 0 {
		return fmt.Errorf("total_tracks must be >= 0")
	}
	return nil
}

// FeatureSet holds the audio analysis attributes of a track.
//
// Every field is nullable: the upstream analysis endpoint returns null for
// tracks it has not analyzed, and that absence is preserved end to end.
type FeatureSet struct {
	Key              *int     `json:"key"`
	TimeSignature    *int     `json:"time_signature"`
	DurationMS       *int     `json:"duration_ms"`
	Loudness         *Decimal `json:"loudness"`
	Tempo            *Decimal `json:"tempo"`
	Instrumentalness *Decimal `json:"instrumentalness"`
	Acousticness     *Decimal `json:"acousticness"`
	Danceability     *Decimal `json:"danceability"`
	Energy           *Decimal `json:"energy"`
	Liveness         *Decimal `json:"liveness"`
	Speechiness      *Decimal `json:"speechiness"`
	Valence          *Decimal `json:"valence"`
}

// Track represents a track's identity merged with its audio features.
type Track struct {
	ID       string     `json:"track_id"`
	Name     string     `json:"track_name"`
	Number   int        `json:"track_number"`
	Features FeatureSet `json:"features"`
}

// Validate checks that the track carries the fields required for persistence.
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("track name is required")
	}
	if t.Number <= 0 {
		return fmt.Errorf("track number must be positive")
	}
	return nil
}

// ArtistAlbum associates an artist with an album.
type ArtistAlbum struct {
	ArtistID string
	AlbumID  string
}

// TrackArtist associates a track with an artist.
type TrackArtist struct {
	TrackID  string
	ArtistID string
}

// TrackAlbum associates a track with an album.
type TrackAlbum struct {
	TrackID string
	AlbumID string
}

// CatalogBundle is everything one ingestion run collects for an artist.
//
// The repository persists the whole bundle in a single transaction so the
// artist row is never visible without its albums, tracks and associations.
type CatalogBundle struct {
	Artist       Artist
	Albums       []Album
	Tracks       []Track
	ArtistAlbums []ArtistAlbum
	TrackArtists []TrackArtist
	TrackAlbums  []TrackAlbum
}

// Validate checks every record in the bundle before persistence.
func (b *CatalogBundle) Validate() error {
	if err := b.Artist.Validate(); err != nil {
		return fmt.Errorf("artist: %w", err)
	}
	for _, album := range b.Albums {
		if err := album.Validate(); err != nil {
			return fmt.Errorf("album %s: %w", album.ID, err)
		}
	}
	for _, track := range b.Tracks {
		if err := track.Validate(); err != nil {
			return fmt.Errorf("track %s: %w", track.ID, err)
		}
	}
	return nil
}

// TrackRow is one row of the flat analytics table returned by extraction.
//
// Feature values are typed as numbers here; nil marks features the upstream
// analysis never supplied.
type TrackRow struct {
	TrackID          string   `json:"track_id"`
	TrackName        string   `json:"track_name"`
	TrackNumber      int      `json:"track_number"`
	AlbumName        string   `json:"album_name"`
	Key              *int     `json:"key"`
	DurationMS       *int     `json:"duration_ms"`
	TimeSignature    *int     `json:"time_signature"`
	Loudness         *float64 `json:"loudness"`
	Tempo            *float64 `json:"tempo"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Acousticness     *float64 `json:"acousticness"`
	Danceability     *float64 `json:"danceability"`
	Energy           *float64 `json:"energy"`
	Liveness         *float64 `json:"liveness"`
	Speechiness      *float64 `json:"speechiness"`
	Valence          *float64 `json:"valence"`
}
