package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/soundscope/soundscope/internal/models"
	"github.com/soundscope/soundscope/internal/services"
	"github.com/soundscope/soundscope/internal/shared"
)

// SearchResult contains all data from one artist search.
type SearchResult struct {
	Artist   *models.Artist    // Resolved artist metadata from upstream
	Rows     []models.TrackRow // Flat analytics table, one row per track
	Ingested bool              // True when this search performed the ingestion
}

// Store defines the persistence operations the engine needs.
//
// This abstraction allows for easier testing and decoupling from the
// concrete repository.
type Store interface {
	ArtistExists(artistID string) (bool, error)
	SaveCatalog(bundle *models.CatalogBundle) error
	TrackRows(artistID string) ([]models.TrackRow, error)
}

// SearchEngine defines the artist search pipeline.
type SearchEngine interface {
	// Search resolves an artist name upstream, ingests the discography on
	// first sight, and returns the flat analytics table.
	Search(ctx context.Context, progress chan<- ProgressUpdate, name string) (*SearchResult, error)
}

// EngineOpts contains configuration for a CatalogEngine.
type EngineOpts struct {
	Workers int // Concurrent per-album fetchers (default: 5, capped at 10)
	Logger  *log.Logger
}

// CatalogEngine implements SearchEngine.
// Contains dependencies on the upstream catalog and the store.
type CatalogEngine struct {
	catalog services.Catalog
	store   Store
	workers int
	logger  *log.Logger
}

// NewCatalogEngine creates a new CatalogEngine with the provided dependencies.
func NewCatalogEngine(catalog services.Catalog, store Store, opts *EngineOpts) *CatalogEngine {
	if opts == nil {
		opts = &EngineOpts{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Workers > 10 {
		opts.Workers = 10
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &CatalogEngine{
		catalog: catalog,
		store:   store,
		workers: opts.Workers,
		logger:  opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *CatalogEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Search performs a full artist search: resolve the name upstream, check the
// store, ingest the discography when absent, and read back the flat table.
//
// A name with no upstream match returns an error wrapping
// [shared.ErrArtistNotFound] and never touches the store. A previously
// ingested artist triggers zero additional discography calls.
func (e *CatalogEngine) Search(ctx context.Context, progress chan<- ProgressUpdate, name string) (*SearchResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if e.store == nil {
		return nil, fmt.Errorf("%w: catalog store not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, searchArtistUpdate(name))

	artist, err := e.catalog.SearchArtist(ctx, name)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, foundArtistUpdate(artist))
	e.sendProgress(progress, checkStoreUpdate(artist.ID))

	exists, err := e.store.ArtistExists(artist.ID)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Artist: artist}

	if !exists {
		bundle, err := e.ingest(ctx, progress, artist)
		if err != nil {
			return nil, err
		}

		e.sendProgress(progress, persistUpdate(len(bundle.Albums), len(bundle.Tracks)))
		if err := e.store.SaveCatalog(bundle); err != nil {
			return nil, err
		}
		result.Ingested = true
	} else {
		e.logger.Debug("artist already ingested", "artist_id", artist.ID)
	}

	e.sendProgress(progress, extractUpdate(artist.ID))

	rows, err := e.store.TrackRows(artist.ID)
	if err != nil {
		return nil, err
	}
	result.Rows = rows

	return result, nil
}
