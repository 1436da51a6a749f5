// Package repositories provides the persistence layer for the artist catalog.
//
// [CatalogRepository] owns the three concerns at the storage boundary:
//
//   - the existence check gating ingestion (ArtistExists)
//   - transactional bulk persistence of a full ingestion run (SaveCatalog)
//   - the flat analytics projection read back on every search (TrackRows)
//
// Writes use chunked multi-row INSERT OR IGNORE statements keyed on the
// upstream identifiers, so concurrent duplicate ingestions of the same
// artist converge on a single row set instead of failing.
package repositories
