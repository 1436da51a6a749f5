// Package services defines the [Catalog] interface for upstream music catalog
// providers and implements it for the Spotify Web API.
//
// # Catalog Interface
//
// The ingestion pipeline talks to the upstream through a single abstraction
// covering artist search, discography listing and batch audio-feature lookup.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with an application-level client-credentials
// token via [clientcredentials.Config]. The token source caches the bearer
// token in memory for the life of the service and refreshes it lazily on
// expiry.
//
// Every request passes through a [rate.Limiter] gate and carries a per-call
// timeout. Transient failures (transport errors, 429, 5xx) are retried with
// bounded exponential backoff, honoring Retry-After; 4xx responses are not
// retried and surface as [UpstreamError] with status and body.
//
// Paginated endpoints (discography, album tracks) follow the `next` cursor to
// exhaustion. Batch audio-feature lookups are chunked at the upstream cap of
// 100 ids and reassembled in input order; null feature sets propagate as nil
// entries, never as errors.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrAuthFailed] : token exchange failed
//   - [shared.ErrArtistNotFound] : search matched nothing
//   - [shared.ErrUpstream] : non-auth API failure (see [UpstreamError])
package services
