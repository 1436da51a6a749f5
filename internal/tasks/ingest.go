package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundscope/soundscope/internal/models"
	"github.com/soundscope/soundscope/internal/shared"
)

// albumJob is one album handed to the fetch workers.
type albumJob struct {
	index int
	album models.Album
}

// albumResult is the outcome of fetching one album's tracks and features.
type albumResult struct {
	album  models.Album
	tracks []models.Track
	err    error
}

// ingest fetches the artist's full discography and assembles it into a
// CatalogBundle ready for one transactional write.
//
// Per-album track and feature fetches run on a bounded worker pool. All
// fetches must succeed before the bundle is returned; any album failure
// aborts the whole ingestion with an error wrapping
// [shared.ErrPartialIngestion], leaving the store untouched.
func (e *CatalogEngine) ingest(ctx context.Context, progress chan<- ProgressUpdate, artist *models.Artist) (*models.CatalogBundle, error) {
	runID := shared.GenerateID()
	logger := shared.WithLogger(e.logger, "run_id", runID, "artist_id", artist.ID)

	e.sendProgress(progress, fetchDiscographyUpdate(artist.Name))
	logger.Info("fetching discography", "artist", artist.Name)

	albums, err := e.catalog.Discography(ctx, artist.ID)
	if err != nil {
		return nil, err
	}

	logger.Info("discography fetched", "albums", len(albums))

	results, err := e.fetchAlbums(ctx, progress, albums)
	if err != nil {
		return nil, err
	}

	bundle := &models.CatalogBundle{
		Artist: *artist,
		Albums: albums,
	}

	for _, res := range results {
		bundle.ArtistAlbums = append(bundle.ArtistAlbums, models.ArtistAlbum{
			ArtistID: artist.ID,
			AlbumID:  res.album.ID,
		})

		for _, track := range res.tracks {
			bundle.Tracks = append(bundle.Tracks, track)
			bundle.TrackArtists = append(bundle.TrackArtists, models.TrackArtist{
				TrackID:  track.ID,
				ArtistID: artist.ID,
			})
			bundle.TrackAlbums = append(bundle.TrackAlbums, models.TrackAlbum{
				TrackID: track.ID,
				AlbumID: res.album.ID,
			})
		}
	}

	logger.Info("ingestion assembled", "albums", len(bundle.Albums), "tracks", len(bundle.Tracks))
	return bundle, nil
}

// fetchAlbums fans per-album fetches out over the worker pool and joins them.
//
// The returned slice preserves discography order. The first album failure is
// reported after all workers drain; nothing is returned on failure.
func (e *CatalogEngine) fetchAlbums(ctx context.Context, progress chan<- ProgressUpdate, albums []models.Album) ([]albumResult, error) {
	if len(albums) == 0 {
		return nil, nil
	}

	jobs := make(chan albumJob, len(albums))
	results := make([]albumResult, len(albums))

	workers := e.workers
	if workers > len(albums) {
		workers = len(albums)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					results[job.index] = albumResult{album: job.album, err: ctx.Err()}
					continue
				default:
				}

				tracks, err := e.fetchAlbumTracks(ctx, job.album)
				results[job.index] = albumResult{album: job.album, tracks: tracks, err: err}
			}
		}()
	}

	for i, album := range albums {
		e.sendProgress(progress, fetchAlbumUpdate(i+1, len(albums), album.Name))
		jobs <- albumJob{index: i, album: album}
	}
	close(jobs)

	// Join barrier: every fetch completes before any write can begin.
	wg.Wait()

	for _, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("%w: album %s (%s): %v",
				shared.ErrPartialIngestion, res.album.Name, res.album.ID, res.err)
		}
	}

	return results, nil
}

// fetchAlbumTracks retrieves an album's track listing and its audio features,
// merging identity fields with each track's feature set.
func (e *CatalogEngine) fetchAlbumTracks(ctx context.Context, album models.Album) ([]models.Track, error) {
	summaries, err := e.catalog.AlbumTracks(ctx, album.ID)
	if err != nil {
		return nil, err
	}

	if len(summaries) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.ID)
	}

	features, err := e.catalog.AudioFeatures(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(features) != len(summaries) {
		return nil, fmt.Errorf("%w: feature count %d does not match track count %d",
			shared.ErrUpstream, len(features), len(summaries))
	}

	tracks := make([]models.Track, 0, len(summaries))
	for i, summary := range summaries {
		track := models.Track{
			ID:     summary.ID,
			Name:   summary.Name,
			Number: summary.Number,
		}

		if features[i] != nil {
			track.Features = *features[i]
		} else {
			// No upstream analysis for this track; keep identity fields
			// and the duration from the album listing.
			duration := summary.DurationMS
			track.Features = models.FeatureSet{DurationMS: &duration}
		}

		tracks = append(tracks, track)
	}

	return tracks, nil
}
