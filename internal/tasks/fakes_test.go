package tasks

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
)

// fakeCatalog is an in-memory [services.Catalog].
type fakeCatalog struct {
	mu sync.Mutex

	tracks      map[string]models.Track
	features    map[string]models.AudioFeatures
	featuresErr error
	recommend   func(q services.RecommendationQuery) ([]models.Track, error)
	search      []models.Track

	queries      []services.RecommendationQuery
	featureCalls int

	userID    string
	created   []services.NewPlaylist
	added     [][]string
	addErr    error
	createErr error
}

func notFound(what string) error {
	return &shared.UpstreamError{Service: "spotify", Status: http.StatusNotFound, Body: what + " not found"}
}

func (f *fakeCatalog) Track(ctx context.Context, trackID string) (*models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := f.tracks[trackID]
	if !ok {
		return nil, notFound(trackID)
	}
	return &t, nil
}

func (f *fakeCatalog) AudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error) {
	f.mu.Lock()
	f.featureCalls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.featuresErr != nil {
		return nil, f.featuresErr
	}
	af, ok := f.features[trackID]
	if !ok {
		return nil, notFound(trackID)
	}
	return &af, nil
}

func (f *fakeCatalog) Recommendations(ctx context.Context, q services.RecommendationQuery) ([]models.Track, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.recommend == nil {
		return nil, nil
	}
	return f.recommend(q)
}

func (f *fakeCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if len(f.search) > limit {
		return f.search[:limit], nil
	}
	return f.search, nil
}

func (f *fakeCatalog) CurrentUserID(ctx context.Context) (string, error) {
	if f.userID == "" {
		return "", &shared.UpstreamError{Service: "spotify", Status: http.StatusUnauthorized}
	}
	return f.userID, nil
}

func (f *fakeCatalog) CreatePlaylist(ctx context.Context, userID string, p services.NewPlaylist) (*models.PlaylistResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, p)
	return &models.PlaylistResult{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"}, nil
}

func (f *fakeCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, append([]string(nil), uris...))
	return nil
}

func (f *fakeCatalog) recordedQueries() []services.RecommendationQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.RecommendationQuery(nil), f.queries...)
}

// fakeLyrics serves lyrics keyed by the search query.
type fakeLyrics struct {
	hits  map[string][]services.LyricsHit
	err   error
	calls atomic.Int32
}

func (f *fakeLyrics) SearchLyrics(ctx context.Context, query string) ([]services.LyricsHit, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[query], nil
}

func (f *fakeLyrics) Name() string { return "fake" }

func track(id, title string, artists ...string) models.Track {
	ids := make([]string, len(artists))
	for i := range artists {
		ids[i] = id + "-artist"
	}
	return models.Track{ID: id, Title: title, Artists: artists, ArtistIDs: ids}
}
