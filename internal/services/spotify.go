// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soundscope/soundscope/internal/models"
	"github.com/soundscope/soundscope/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Upstream cap on ids per audio-features request.
	featureBatchSize = 100
	// Upstream cap on items per page for album and track listings.
	pageLimit = 50

	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultTimeout    = 15 * time.Second
	defaultRateLimit  = 5.0
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Followers  followers `json:"followers"`
	Popularity int       `json:"popularity"`
	Genres     []string  `json:"genres"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyAlbum represents a simplified album object as returned by the
// artist-albums listing.
type SpotifyAlbum struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	AlbumType        string          `json:"album_type"`
	TotalTracks      int             `json:"total_tracks"`
	AvailableMarkets []string        `json:"available_markets"`
	Images           []SpotifyImage  `json:"images"`
	Artists          []SpotifyArtist `json:"artists"`
}

// SpotifyAlbumTrack represents a simplified track object within an album listing.
type SpotifyAlbumTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TrackNumber int             `json:"track_number"`
	DurationMS  int             `json:"duration_ms"`
	Artists     []SpotifyArtist `json:"artists"`
}

// SpotifyAudioFeatures represents the audio analysis attributes of one track.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Key              int     `json:"key"`
	TimeSignature    int     `json:"time_signature"`
	DurationMS       int     `json:"duration_ms"`
	Loudness         float64 `json:"loudness"`
	Tempo            float64 `json:"tempo"`
	Instrumentalness float64 `json:"instrumentalness"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Liveness         float64 `json:"liveness"`
	Speechiness      float64 `json:"speechiness"`
	Valence          float64 `json:"valence"`
}

type searchResponse struct {
	Artists struct {
		Items []SpotifyArtist `json:"items"`
	} `json:"artists"`
}

type albumPage struct {
	Items  []SpotifyAlbum `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Next   *string        `json:"next"`
}

type trackPage struct {
	Items  []SpotifyAlbumTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Next   *string             `json:"next"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
}

// SpotifyOpts contains optional tuning for a SpotifyService.
type SpotifyOpts struct {
	RateLimit  float64       // Requests per second (default: 5)
	Timeout    time.Duration // Per-request timeout (default: 15s)
	MaxRetries int           // Attempts per request (default: 3)
	Backoff    time.Duration // Base retry backoff (default: 500ms)
	HTTPClient *http.Client
}

// SpotifyService implements the Catalog interface for Spotify API interactions.
//
// Authentication uses the client-credentials grant via [clientcredentials.Config];
// the token source caches the bearer token and refreshes it lazily on expiry.
type SpotifyService struct {
	httpClient  *http.Client
	tokens      oauth2.TokenSource
	limiter     *rate.Limiter
	baseURL     string
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
}

// NewSpotifyService creates a new Spotify service with the given application credentials.
func NewSpotifyService(credentials map[string]string, opts *SpotifyOpts) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	if opts == nil {
		opts = &SpotifyOpts{}
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	if tokenURL, ok := credentials["token_url"]; ok && tokenURL != "" {
		conf.TokenURL = tokenURL
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.HTTPClient)

	return &SpotifyService{
		httpClient:  opts.HTTPClient,
		tokens:      conf.TokenSource(ctx),
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		baseURL:     spotifyBaseURL,
		timeout:     opts.Timeout,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.Backoff,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// get performs an authenticated GET against the Spotify API and decodes the
// JSON response into result.
//
// endpoint is either a path relative to the base URL or a full pagination URL.
// The call waits on the rate limiter, carries a per-request timeout, and
// retries transient failures with bounded backoff.
func (s *SpotifyService) get(ctx context.Context, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	token, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		apiURL = s.baseURL + endpoint
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.doWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// doWithRetry executes the request, retrying transport errors, 429 and 5xx
// responses with exponential backoff. Retry-After takes precedence over the
// computed backoff. Other status codes return immediately.
func (s *SpotifyService) doWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request canceled: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			if err != nil {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = &UpstreamError{Status: resp.StatusCode}
			resp.Body.Close()
		}

		if attempt == s.maxRetries-1 {
			break
		}

		backoff := s.baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", s.maxRetries, lastErr)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}

	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// SearchArtist queries the catalog by free-text name and returns the first-ranked match.
func (s *SpotifyService) SearchArtist(ctx context.Context, name string) (*models.Artist, error) {
	query := url.Values{}
	query.Set("q", name)
	query.Set("type", "artist")
	query.Set("limit", "1")

	var response searchResponse
	if err := s.get(ctx, "/search?"+query.Encode(), &response); err != nil {
		return nil, err
	}

	if len(response.Artists.Items) == 0 {
		return nil, fmt.Errorf("%w: %q", shared.ErrArtistNotFound, name)
	}

	return mapArtist(response.Artists.Items[0]), nil
}

// Discography retrieves every album, single and compilation for the artist,
// following pagination to exhaustion.
func (s *SpotifyService) Discography(ctx context.Context, artistID string) ([]models.Album, error) {
	endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album,single,compilation&limit=%d", artistID, pageLimit)

	var albums []models.Album
	for {
		var page albumPage
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, sa := range page.Items {
			albums = append(albums, mapAlbum(sa))
		}

		if page.Next == nil || *page.Next == "" {
			break
		}
		endpoint = *page.Next
	}

	return albums, nil
}

// AlbumTracks retrieves the track listing for an album, following pagination
// to exhaustion.
func (s *SpotifyService) AlbumTracks(ctx context.Context, albumID string) ([]TrackSummary, error) {
	endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d", albumID, pageLimit)

	var tracks []TrackSummary
	for {
		var page trackPage
		if err := s.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, st := range page.Items {
			tracks = append(tracks, TrackSummary{
				ID:         st.ID,
				Name:       st.Name,
				Number:     st.TrackNumber,
				DurationMS: st.DurationMS,
			})
		}

		if page.Next == nil || *page.Next == "" {
			break
		}
		endpoint = *page.Next
	}

	return tracks, nil
}

// AudioFeatures retrieves feature sets for the given track ids, chunking
// requests at the upstream batch cap and reassembling results in input order.
//
// Tracks without upstream analysis yield nil entries; the result length
// always equals len(trackIDs).
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) ([]*models.FeatureSet, error) {
	features := make([]*models.FeatureSet, 0, len(trackIDs))

	for start := 0; start < len(trackIDs); start += featureBatchSize {
		end := start + featureBatchSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}
		chunk := trackIDs[start:end]

		ids := url.QueryEscape(strings.Join(chunk, ","))

		var response audioFeaturesResponse
		if err := s.get(ctx, "/audio-features?ids="+ids, &response); err != nil {
			return nil, err
		}

		if len(response.AudioFeatures) != len(chunk) {
			return nil, fmt.Errorf("%w: audio-features returned %d entries for %d ids",
				shared.ErrUpstream, len(response.AudioFeatures), len(chunk))
		}

		for _, sf := range response.AudioFeatures {
			features = append(features, mapFeatures(sf))
		}
	}

	return features, nil
}

func mapArtist(sa SpotifyArtist) *models.Artist {
	followers := sa.Followers.Total
	popularity := sa.Popularity
	return &models.Artist{
		ID:         sa.ID,
		Name:       sa.Name,
		Followers:  &followers,
		Popularity: &popularity,
		Genres:     sa.Genres,
	}
}

func mapAlbum(sa SpotifyAlbum) models.Album {
	images := make([]models.Image, 0, len(sa.Images))
	for _, img := range sa.Images {
		images = append(images, models.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}
	return models.Album{
		ID:               sa.ID,
		Type:             sa.AlbumType,
		Name:             sa.Name,
		TotalTracks:      sa.TotalTracks,
		AvailableMarkets: sa.AvailableMarkets,
		Images:           images,
	}
}

func mapFeatures(sf *SpotifyAudioFeatures) *models.FeatureSet {
	if sf == nil {
		return nil
	}

	key := sf.Key
	timeSignature := sf.TimeSignature
	durationMS := sf.DurationMS

	return &models.FeatureSet{
		Key:              &key,
		TimeSignature:    &timeSignature,
		DurationMS:       &durationMS,
		Loudness:         decimalPtr(sf.Loudness),
		Tempo:            decimalPtr(sf.Tempo),
		Instrumentalness: decimalPtr(sf.Instrumentalness),
		Acousticness:     decimalPtr(sf.Acousticness),
		Danceability:     decimalPtr(sf.Danceability),
		Energy:           decimalPtr(sf.Energy),
		Liveness:         decimalPtr(sf.Liveness),
		Speechiness:      decimalPtr(sf.Speechiness),
		Valence:          decimalPtr(sf.Valence),
	}
}

func decimalPtr(f float64) *models.Decimal {
	d := models.NewDecimal(f)
	return &d
}
