// Package models defines domain entities for the soundscope catalog pipeline.
//
// The package contains three categories of types:
//
// 1. Catalog entities mirroring the upstream music service:
//   - [Artist] : Artist metadata with followers, popularity and genres
//   - [Album] : Album metadata with type, track count, markets and artwork
//   - [Track] : Track identity merged with its [FeatureSet]
//
// 2. Association records linking entities for persistence:
//   - [ArtistAlbum], [TrackArtist], [TrackAlbum] : many-to-many pairs
//   - [CatalogBundle] : everything collected by one ingestion run, written
//     to the store in a single transaction
//
// 3. Read-side projections:
//   - [TrackRow] : one flat analytics row per track, joined with its album
//
// Audio feature values persist through [Decimal], a decimal string
// representation that round-trips exactly through the store.
package models
