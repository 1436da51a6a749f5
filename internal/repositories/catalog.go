package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soundscope/soundscope/internal/models"
	"github.com/soundscope/soundscope/internal/shared"
)

// writeBatchSize bounds the number of rows per INSERT statement.
const writeBatchSize = 25

// CatalogRepository persists and reads back artist catalogs.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new CatalogRepository with the given database connection
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ArtistExists reports whether the artist's catalog has been durably written.
//
// Returns false for an unknown artist; errors only on store failure. Because
// SaveCatalog writes the artist row in the same transaction as the rest of
// the catalog, a true result implies the albums, tracks and associations are
// present too.
func (r *CatalogRepository) ArtistExists(artistID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM artists WHERE artist_id = ?)", artistID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: existence check failed: %v", shared.ErrStore, err)
	}
	return exists, nil
}

// SaveCatalog writes a full ingestion bundle in one transaction.
//
// Every insert is OR IGNORE keyed on the upstream identifier, so a
// concurrent duplicate ingestion of the same artist is a no-op rather than
// a constraint violation.
func (r *CatalogRepository) SaveCatalog(bundle *models.CatalogBundle) error {
	if err := bundle.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrStore, err)
	}
	defer tx.Rollback()

	if err := insertArtist(tx, bundle.Artist); err != nil {
		return err
	}
	if err := insertAlbums(tx, bundle.Albums); err != nil {
		return err
	}
	if err := insertTracks(tx, bundle.Tracks); err != nil {
		return err
	}
	if err := insertPairs(tx, "artist_albums", "artist_id", "album_id", artistAlbumPairs(bundle.ArtistAlbums)); err != nil {
		return err
	}
	if err := insertPairs(tx, "track_artists", "track_id", "artist_id", trackArtistPairs(bundle.TrackArtists)); err != nil {
		return err
	}
	if err := insertPairs(tx, "track_albums", "track_id", "album_id", trackAlbumPairs(bundle.TrackAlbums)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit catalog: %v", shared.ErrStore, err)
	}

	return nil
}

// TrackRows reads every track associated with the artist back out as the
// flat analytics table. An unknown artist yields an empty slice, not an error.
func (r *CatalogRepository) TrackRows(artistID string) ([]models.TrackRow, error) {
	query := `
		SELECT t.track_id, t.track_name, t.track_number,
			(SELECT al.album_name
			 FROM track_albums tal
			 JOIN albums al ON al.album_id = tal.album_id
			 WHERE tal.track_id = t.track_id
			 LIMIT 1) AS album_name,
			t.key, t.duration_ms, t.time_signature,
			t.loudness, t.tempo,
			t.instrumentalness, t.acousticness, t.danceability,
			t.energy, t.liveness, t.speechiness, t.valence
		FROM track_artists ta
		JOIN tracks t ON t.track_id = ta.track_id
		WHERE ta.artist_id = ?
	`

	rows, err := r.db.Query(query, artistID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query track rows: %v", shared.ErrStore, err)
	}
	defer rows.Close()

	table := []models.TrackRow{}
	for rows.Next() {
		row, err := scanTrackRow(rows)
		if err != nil {
			return nil, err
		}
		table = append(table, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStore, err)
	}

	return table, nil
}

func insertArtist(tx *sql.Tx, artist models.Artist) error {
	genres, err := json.Marshal(artist.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO artists (artist_id, name, followers, popularity, genres)
		VALUES (?, ?, ?, ?, ?)
	`, artist.ID, artist.Name, artist.Followers, artist.Popularity, string(genres))
	if err != nil {
		return fmt.Errorf("%w: failed to insert artist: %v", shared.ErrStore, err)
	}

	return nil
}

func insertAlbums(tx *sql.Tx, albums []models.Album) error {
	for _, batch := range chunk(albums, writeBatchSize) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*6)

		for _, album := range batch {
			markets, err := json.Marshal(album.AvailableMarkets)
			if err != nil {
				return fmt.Errorf("failed to encode available markets: %w", err)
			}
			images, err := json.Marshal(album.Images)
			if err != nil {
				return fmt.Errorf("failed to encode images: %w", err)
			}

			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?)")
			args = append(args, album.ID, album.Type, album.Name, album.TotalTracks, string(markets), string(images))
		}

		query := `
			INSERT OR IGNORE INTO albums (album_id, album_type, album_name, total_tracks, available_markets, images)
			VALUES ` + strings.Join(placeholders, ", ")

		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("%w: failed to insert albums: %v", shared.ErrStore, err)
		}
	}

	return nil
}

func insertTracks(tx *sql.Tx, tracks []models.Track) error {
	for _, batch := range chunk(tracks, writeBatchSize) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*15)

		for _, track := range batch {
			f := track.Features
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				track.ID, track.Name, track.Number,
				f.DurationMS, f.Key, f.TimeSignature,
				f.Loudness, f.Tempo,
				f.Instrumentalness, f.Acousticness, f.Danceability,
				f.Energy, f.Liveness, f.Speechiness, f.Valence,
			)
		}

		query := `
			INSERT OR IGNORE INTO tracks (
				track_id, track_name, track_number,
				duration_ms, key, time_signature,
				loudness, tempo,
				instrumentalness, acousticness, danceability,
				energy, liveness, speechiness, valence
			) VALUES ` + strings.Join(placeholders, ", ")

		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("%w: failed to insert tracks: %v", shared.ErrStore, err)
		}
	}

	return nil
}

func insertPairs(tx *sql.Tx, table, leftCol, rightCol string, pairs [][2]string) error {
	for _, batch := range chunk(pairs, writeBatchSize) {
		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*2)

		for _, pair := range batch {
			placeholders = append(placeholders, "(?, ?)")
			args = append(args, pair[0], pair[1])
		}

		query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, %s) VALUES %s",
			table, leftCol, rightCol, strings.Join(placeholders, ", "))

		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("%w: failed to insert into %s: %v", shared.ErrStore, table, err)
		}
	}

	return nil
}

func artistAlbumPairs(assocs []models.ArtistAlbum) [][2]string {
	pairs := make([][2]string, 0, len(assocs))
	for _, a := range assocs {
		pairs = append(pairs, [2]string{a.ArtistID, a.AlbumID})
	}
	return pairs
}

func trackArtistPairs(assocs []models.TrackArtist) [][2]string {
	pairs := make([][2]string, 0, len(assocs))
	for _, a := range assocs {
		pairs = append(pairs, [2]string{a.TrackID, a.ArtistID})
	}
	return pairs
}

func trackAlbumPairs(assocs []models.TrackAlbum) [][2]string {
	pairs := make([][2]string, 0, len(assocs))
	for _, a := range assocs {
		pairs = append(pairs, [2]string{a.TrackID, a.AlbumID})
	}
	return pairs
}

// chunk splits items into slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}

	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

func scanTrackRow(rows *sql.Rows) (models.TrackRow, error) {
	var (
		row           models.TrackRow
		albumName     sql.NullString
		key           sql.NullInt64
		durationMS    sql.NullInt64
		timeSignature sql.NullInt64
		decimals      [9]sql.NullString
	)

	err := rows.Scan(
		&row.TrackID, &row.TrackName, &row.TrackNumber, &albumName,
		&key, &durationMS, &timeSignature,
		&decimals[0], &decimals[1],
		&decimals[2], &decimals[3], &decimals[4],
		&decimals[5], &decimals[6], &decimals[7], &decimals[8],
	)
	if err != nil {
		return row, fmt.Errorf("%w: failed to scan track row: %v", shared.ErrStore, err)
	}

	if albumName.Valid {
		row.AlbumName = albumName.String
	}
	row.Key = nullableInt(key)
	row.DurationMS = nullableInt(durationMS)
	row.TimeSignature = nullableInt(timeSignature)

	targets := []**float64{
		&row.Loudness, &row.Tempo,
		&row.Instrumentalness, &row.Acousticness, &row.Danceability,
		&row.Energy, &row.Liveness, &row.Speechiness, &row.Valence,
	}
	for i, target := range targets {
		value, err := nullableFloat(decimals[i])
		if err != nil {
			return row, fmt.Errorf("%w: track %s: %v", shared.ErrStore, row.TrackID, err)
		}
		*target = value
	}

	return row, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableFloat(v sql.NullString) (*float64, error) {
	if !v.Valid {
		return nil, nil
	}
	f, err := models.Decimal(v.String).Float()
	if err != nil {
		return nil, err
	}
	return &f, nil
}
