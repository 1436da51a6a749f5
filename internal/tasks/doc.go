// Package tasks implements the artist search and ingestion pipeline.
//
// The core abstraction is [SearchEngine], implemented by [CatalogEngine],
// which orchestrates one search request end to end:
//
//	search upstream → existence check → (ingest if absent) → extract
//
// Ingestion lists the artist's discography, fans per-album track and
// audio-feature fetches out over a bounded worker pool, joins all fetches,
// and only then hands the assembled [models.CatalogBundle] to the store in
// a single transaction. A failure in any album's fetch aborts the whole
// ingestion before anything is written, so the store never holds an artist
// marked present with a partial catalog.
//
// Operations emit progress updates via channels for non-blocking status
// reporting to the CLI layer.
package tasks
