package tasks

import (
	"fmt"

	"github.com/soundscope/soundscope/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced consumers
}

// Operation phase enumeration
type Phase int

const (
	SearchArtist Phase = iota
	CheckStore
	FetchDiscography
	FetchAlbum
	Persist
	Extract
)

func (p Phase) String() string {
	switch p {
	case SearchArtist:
		return "search_artist"
	case CheckStore:
		return "check_store"
	case FetchDiscography:
		return "fetch_discography"
	case FetchAlbum:
		return "fetch_album"
	case Persist:
		return "persist"
	case Extract:
		return "extract"
	default:
		return ""
	}
}

func searchArtistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchArtist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching for artist %q...", name),
	}
}

func foundArtistUpdate(artist *models.Artist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchArtist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found artist: %s (ID: %s)", artist.Name, artist.ID),
		Data:    artist,
	}
}

func checkStoreUpdate(artistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckStore,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking catalog store for %s...", artistID),
	}
}

func fetchDiscographyUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDiscography,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching discography for %s...", name),
	}
}

func fetchAlbumUpdate(step, total int, albumName string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAlbum,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, albumName),
	}
}

func persistUpdate(albums, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Persist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Persisting %d albums / %d tracks...", albums, tracks),
	}
}

func extractUpdate(artistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Extract,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Extracting track table for %s...", artistID),
	}
}
