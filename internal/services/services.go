// package services defines clients for the external providers: the Spotify catalog, lyrics sources, and text embeddings
package services

import (
	"context"
	"io"
	"net/http"

	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
)

// Catalog is the subset of the Spotify Web API the recommendation pipeline relies on.
//
// Non-2xx responses surface as [*shared.UpstreamError] carrying the status and body.
type Catalog interface {
	// Track retrieves metadata for a single track.
	Track(ctx context.Context, trackID string) (*models.Track, error)

	// AudioFeatures retrieves perceptual descriptors. Apps created after late 2024 receive 403 here.
	AudioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error)

	// Recommendations returns the provider's candidate pool for the query.
	Recommendations(ctx context.Context, q RecommendationQuery) ([]models.Track, error)

	// SearchTracks runs a free-text track search.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)

	// CurrentUserID returns the id of the authenticated user.
	CurrentUserID(ctx context.Context) (string, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID string, p NewPlaylist) (*models.PlaylistResult, error)

	// AddTracks appends track URIs (at most 100) to a playlist.
	AddTracks(ctx context.Context, playlistID string, uris []string) error
}

// RecommendationQuery parameterizes a /recommendations call.
type RecommendationQuery struct {
	SeedTracks  []string
	SeedArtists []string
	Limit       int
	Market      string
	Targets     map[string]float64 // e.g. "danceability" -> target_danceability
}

// NewPlaylist describes a playlist to create.
type NewPlaylist struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// LyricsHit is one search result from a lyrics provider. Lyrics is empty when the provider only links to a page.
type LyricsHit struct {
	Title  string
	Artist string
	Lyrics string
	URL    string
}

// LyricsProvider searches for lyrics by free text.
type LyricsProvider interface {
	SearchLyrics(ctx context.Context, query string) ([]LyricsHit, error)
	Name() string
}

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (models.EmbeddingVector, error)
}

// upstreamError reads up to 64KiB of a failed response body into a [shared.UpstreamError].
func upstreamError(service string, resp *http.Response) *shared.UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &shared.UpstreamError{Service: service, Status: resp.StatusCode, Body: string(body)}
}
