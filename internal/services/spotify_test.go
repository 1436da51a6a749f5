package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soundscope/soundscope/internal/shared"
)

// newTestService creates a SpotifyService pointed at the given handler,
// serving both the token endpoint (/token) and the API.
func newTestService(t *testing.T, handler http.Handler) (*SpotifyService, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test_token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.Handle("/", handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
		"token_url":     server.URL + "/token",
	}, &SpotifyOpts{
		RateLimit: 1000,
		Backoff:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.baseURL = server.URL

	return srv, server
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv == nil {
				t.Fatal("expected service to be created")
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{
				"client_secret": "test_client_secret",
			}, nil)
			if err == nil {
				t.Error("expected error for missing client_id")
			}
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{
				"client_id": "test_client_id",
			}, nil)
			if err == nil {
				t.Error("expected error for missing client_secret")
			}
		})

		t.Run("Catalog Interface", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}, nil)
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}

			var _ Catalog = srv
		})
	})

	t.Run("Token Exchange", func(t *testing.T) {
		t.Run("failure wraps ErrAuthFailed", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer server.Close()

			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "bad",
				"client_secret": "bad",
				"token_url":     server.URL,
			}, &SpotifyOpts{RateLimit: 1000})
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}
			srv.baseURL = server.URL

			_, err = srv.SearchArtist(context.Background(), "Radiohead")
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
		})

		t.Run("token is cached across requests", func(t *testing.T) {
			var tokenCalls atomic.Int32

			mux := http.NewServeMux()
			mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
				tokenCalls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"test_token","token_type":"Bearer","expires_in":3600}`)
			})
			mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer test_token" {
					t.Errorf("expected bearer token header, got %q", got)
				}
				fmt.Fprint(w, `{"artists":{"items":[{"id":"a1","name":"Radiohead","followers":{"total":1},"popularity":80,"genres":[]}]}}`)
			})

			server := httptest.NewServer(mux)
			defer server.Close()

			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"token_url":     server.URL + "/token",
			}, &SpotifyOpts{RateLimit: 1000})
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}
			srv.baseURL = server.URL

			for i := 0; i < 3; i++ {
				if _, err := srv.SearchArtist(context.Background(), "Radiohead"); err != nil {
					t.Fatalf("search %d failed: %v", i, err)
				}
			}

			if tokenCalls.Load() != 1 {
				t.Errorf("expected 1 token exchange, got %d", tokenCalls.Load())
			}
		})
	})

	t.Run("SearchArtist", func(t *testing.T) {
		t.Run("returns first match", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/search" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("type"); got != "artist" {
					t.Errorf("expected type=artist, got %s", got)
				}
				fmt.Fprint(w, `{"artists":{"items":[
					{"id":"4Z8W4fKeB5YxbusRsdQVPb","name":"Radiohead","followers":{"total":8000000},"popularity":82,"genres":["art rock","melancholia"]}
				]}}`)
			}))

			artist, err := srv.SearchArtist(context.Background(), "Radiohead")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if artist.ID != "4Z8W4fKeB5YxbusRsdQVPb" {
				t.Errorf("expected artist id 4Z8W4fKeB5YxbusRsdQVPb, got %s", artist.ID)
			}
			if artist.Name != "Radiohead" {
				t.Errorf("expected name Radiohead, got %s", artist.Name)
			}
			if artist.Followers == nil || *artist.Followers != 8000000 {
				t.Error("expected followers to be mapped")
			}
			if artist.Popularity == nil || *artist.Popularity != 82 {
				t.Error("expected popularity to be mapped")
			}
			if len(artist.Genres) != 2 {
				t.Errorf("expected 2 genres, got %d", len(artist.Genres))
			}
		})

		t.Run("no match returns ErrArtistNotFound", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"artists":{"items":[]}}`)
			}))

			_, err := srv.SearchArtist(context.Background(), "zzqxxnonexistentartist123")
			if !errors.Is(err, shared.ErrArtistNotFound) {
				t.Errorf("expected ErrArtistNotFound, got %v", err)
			}
		})

		t.Run("4xx surfaces UpstreamError without retry", func(t *testing.T) {
			var calls atomic.Int32
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"status":400,"message":"invalid query"}}`)
			}))

			_, err := srv.SearchArtist(context.Background(), "")
			if !errors.Is(err, shared.ErrUpstream) {
				t.Fatalf("expected ErrUpstream, got %v", err)
			}

			var upstreamErr *UpstreamError
			if !errors.As(err, &upstreamErr) {
				t.Fatal("expected UpstreamError")
			}
			if upstreamErr.Status != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", upstreamErr.Status)
			}
			if !strings.Contains(upstreamErr.Body, "invalid query") {
				t.Errorf("expected body to carry upstream message, got %q", upstreamErr.Body)
			}

			if calls.Load() != 1 {
				t.Errorf("expected no retries on 4xx, got %d calls", calls.Load())
			}
		})

		t.Run("5xx is retried then succeeds", func(t *testing.T) {
			var calls atomic.Int32
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				fmt.Fprint(w, `{"artists":{"items":[{"id":"a1","name":"Radiohead","followers":{"total":1},"popularity":1,"genres":[]}]}}`)
			}))

			artist, err := srv.SearchArtist(context.Background(), "Radiohead")
			if err != nil {
				t.Fatalf("expected retry to recover, got %v", err)
			}
			if artist.ID != "a1" {
				t.Errorf("expected artist a1, got %s", artist.ID)
			}
			if calls.Load() != 3 {
				t.Errorf("expected 3 attempts, got %d", calls.Load())
			}
		})

		t.Run("retries exhausted returns error", func(t *testing.T) {
			var calls atomic.Int32
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))

			_, err := srv.SearchArtist(context.Background(), "Radiohead")
			if err == nil {
				t.Fatal("expected error after exhausted retries")
			}
			if calls.Load() != 3 {
				t.Errorf("expected 3 attempts, got %d", calls.Load())
			}
		})
	})

	t.Run("Discography", func(t *testing.T) {
		t.Run("follows pagination", func(t *testing.T) {
			var server *httptest.Server

			mux := http.NewServeMux()
			mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"test_token","token_type":"Bearer","expires_in":3600}`)
			})
			mux.HandleFunc("/artists/a1/albums", func(w http.ResponseWriter, r *http.Request) {
				next := server.URL + "/artists/a1/albums/page2"
				resp := map[string]any{
					"items": []map[string]any{
						{"id": "al1", "name": "OK Computer", "album_type": "album", "total_tracks": 12,
							"available_markets": []string{"US", "GB"},
							"images":            []map[string]any{{"url": "http://img/1", "width": 640, "height": 640}}},
					},
					"next": next,
				}
				json.NewEncoder(w).Encode(resp)
			})
			mux.HandleFunc("/artists/a1/albums/page2", func(w http.ResponseWriter, r *http.Request) {
				resp := map[string]any{
					"items": []map[string]any{
						{"id": "al2", "name": "Kid A", "album_type": "album", "total_tracks": 10},
					},
					"next": nil,
				}
				json.NewEncoder(w).Encode(resp)
			})

			server = httptest.NewServer(mux)
			defer server.Close()

			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"token_url":     server.URL + "/token",
			}, &SpotifyOpts{RateLimit: 1000})
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}
			srv.baseURL = server.URL

			albums, err := srv.Discography(context.Background(), "a1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(albums) != 2 {
				t.Fatalf("expected 2 albums across pages, got %d", len(albums))
			}
			if albums[0].ID != "al1" || albums[1].ID != "al2" {
				t.Errorf("expected albums in page order, got %s, %s", albums[0].ID, albums[1].ID)
			}
			if albums[0].Type != "album" {
				t.Errorf("expected album_type mapped, got %s", albums[0].Type)
			}
			if len(albums[0].AvailableMarkets) != 2 {
				t.Errorf("expected 2 markets, got %d", len(albums[0].AvailableMarkets))
			}
			if len(albums[0].Images) != 1 || albums[0].Images[0].Width != 640 {
				t.Error("expected image list mapped")
			}
		})
	})

	t.Run("AlbumTracks", func(t *testing.T) {
		t.Run("follows pagination", func(t *testing.T) {
			var server *httptest.Server

			mux := http.NewServeMux()
			mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"test_token","token_type":"Bearer","expires_in":3600}`)
			})
			mux.HandleFunc("/albums/al1/tracks", func(w http.ResponseWriter, r *http.Request) {
				next := server.URL + "/albums/al1/tracks/page2"
				json.NewEncoder(w).Encode(map[string]any{
					"items": []map[string]any{
						{"id": "t1", "name": "Airbag", "track_number": 1, "duration_ms": 284000},
					},
					"next": next,
				})
			})
			mux.HandleFunc("/albums/al1/tracks/page2", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"items": []map[string]any{
						{"id": "t2", "name": "Paranoid Android", "track_number": 2, "duration_ms": 383000},
					},
					"next": nil,
				})
			})

			server = httptest.NewServer(mux)
			defer server.Close()

			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"token_url":     server.URL + "/token",
			}, &SpotifyOpts{RateLimit: 1000})
			if err != nil {
				t.Fatalf("failed to create service: %v", err)
			}
			srv.baseURL = server.URL

			tracks, err := srv.AlbumTracks(context.Background(), "al1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(tracks) != 2 {
				t.Fatalf("expected 2 tracks across pages, got %d", len(tracks))
			}
			if tracks[0].ID != "t1" || tracks[1].ID != "t2" {
				t.Errorf("expected page order preserved, got %s, %s", tracks[0].ID, tracks[1].ID)
			}
			if tracks[0].Number != 1 || tracks[0].DurationMS != 284000 {
				t.Error("expected track fields mapped")
			}
		})
	})

	t.Run("AudioFeatures", func(t *testing.T) {
		t.Run("chunks large batches and preserves order", func(t *testing.T) {
			var batchSizes []int
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ids := strings.Split(r.URL.Query().Get("ids"), ",")
				batchSizes = append(batchSizes, len(ids))

				features := make([]map[string]any, 0, len(ids))
				for _, id := range ids {
					features = append(features, map[string]any{
						"id": id, "key": 5, "time_signature": 4, "duration_ms": 1000,
						"loudness": -7.5, "tempo": 120.0,
						"instrumentalness": 0.1, "acousticness": 0.2, "danceability": 0.3,
						"energy": 0.4, "liveness": 0.5, "speechiness": 0.6, "valence": 0.7,
					})
				}
				json.NewEncoder(w).Encode(map[string]any{"audio_features": features})
			}))

			ids := make([]string, 0, 230)
			for i := 0; i < 230; i++ {
				ids = append(ids, fmt.Sprintf("track%03d", i))
			}

			features, err := srv.AudioFeatures(context.Background(), ids)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if len(features) != len(ids) {
				t.Fatalf("expected %d feature sets, got %d", len(ids), len(features))
			}

			expectedBatches := []int{100, 100, 30}
			if len(batchSizes) != len(expectedBatches) {
				t.Fatalf("expected %d batches, got %d", len(expectedBatches), len(batchSizes))
			}
			for i, want := range expectedBatches {
				if batchSizes[i] != want {
					t.Errorf("batch %d: expected %d ids, got %d", i, want, batchSizes[i])
				}
			}

			for _, fs := range features {
				if fs == nil {
					t.Fatal("expected no nil feature sets")
				}
				if fs.Danceability == nil || string(*fs.Danceability) != "0.3" {
					t.Errorf("expected danceability 0.3, got %v", fs.Danceability)
				}
			}
		})

		t.Run("null feature sets propagate as nil", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"audio_features":[
					{"id":"t1","key":2,"time_signature":4,"duration_ms":1000,"loudness":-5.0,"tempo":100.0,
					 "instrumentalness":0.9,"acousticness":0.1,"danceability":0.2,"energy":0.3,
					 "liveness":0.4,"speechiness":0.5,"valence":0.6},
					null
				]}`)
			}))

			features, err := srv.AudioFeatures(context.Background(), []string{"t1", "t2"})
			if err != nil {
				t.Fatalf("expected no error for null entry, got %v", err)
			}

			if len(features) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(features))
			}
			if features[0] == nil {
				t.Error("expected first entry to be present")
			}
			if features[1] != nil {
				t.Error("expected second entry to be nil")
			}
		})

		t.Run("empty input performs no requests", func(t *testing.T) {
			srv, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("unexpected request for empty id list")
			}))

			features, err := srv.AudioFeatures(context.Background(), nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(features) != 0 {
				t.Errorf("expected empty result, got %d", len(features))
			}
		})
	})
}
