// package models defines the data model for the recommendation service
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Credential is the OAuth2 session held for a single user.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch milliseconds
}

// Track is catalog metadata for a single recording.
type Track struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	ArtistIDs   []string `json:"artistIds,omitempty"`
	Album       string   `json:"album"`
	AlbumArtURL string   `json:"albumArt,omitempty"`
	PreviewURL  string   `json:"previewUrl,omitempty"`
	ExternalURL string   `json:"externalUrl,omitempty"`
}

// PrimaryArtist returns the first credited artist, or "" for tracks with none.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// PrimaryArtistID returns the first artist id, or "".
func (t Track) PrimaryArtistID() string {
	if len(t.ArtistIDs) == 0 {
		return ""
	}
	return t.ArtistIDs[0]
}

// AudioFeatures is the provider's perceptual descriptor payload for a track.
type AudioFeatures struct {
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
}

// AudioFeatureVector holds, in order: danceability, energy, valence, acousticness,
// instrumentalness, speechiness, liveness.
type AudioFeatureVector [7]float64

// EmbeddingVector is a dense text embedding. Compared vectors must share a length.
type EmbeddingVector []float64

// WeightSet holds per-signal weights. Treat as immutable.
type WeightSet struct {
	Lyrics  float64 `json:"lyrics"`
	Audio   float64 `json:"audio"`
	Spotify float64 `json:"spotify"`
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	return w.Lyrics + w.Audio + w.Spotify
}

// DefaultWeights are applied when a request supplies none.
var DefaultWeights = WeightSet{Lyrics: 0.5, Audio: 0.35, Spotify: 0.15}

// Breakdown holds each signal's contribution (similarity times effective weight).
type Breakdown struct {
	Lyrics  float64 `json:"lyrics"`
	Spotify float64 `json:"spotify"`
	Audio   float64 `json:"audio"`
}

// ScoredCandidate is a candidate track with its combined score.
type ScoredCandidate struct {
	Track
	Score     float64   `json:"similarity"`
	Breakdown Breakdown `json:"breakdown"`
}

// Degradation tags reported in [Analysis.Degradations].
const (
	DegradedNoLyrics        = "no_lyrics"
	DegradedNoAudioFeatures = "no_audio_features"
	DegradedNoCandidates    = "no_candidates"
)

// Analysis describes how a result was produced.
type Analysis struct {
	Method        string         `json:"method"`
	Degradations  []string       `json:"degradations,omitempty"`
	Note          string         `json:"note,omitempty"`
	AudioFeatures *AudioFeatures `json:"audioFeatures,omitempty"`
}

// Degraded reports whether the result was produced with any signal missing.
func (a Analysis) Degraded() bool {
	return len(a.Degradations) > 0
}

// Recommendation is the ranked output for a seed track.
type Recommendation struct {
	SourceTrack      Track             `json:"sourceTrack"`
	SourceTrackID    string            `json:"sourceTrackId"`
	Weights          WeightSet         `json:"weights"`
	EffectiveWeights WeightSet         `json:"effectiveWeights"`
	Recommendations  []ScoredCandidate `json:"recommendations"`
	Analysis         Analysis          `json:"analysis"`
}

// PlaylistResult identifies a playlist created on the provider.
type PlaylistResult struct {
	ID         string `json:"playlistId"`
	URL        string `json:"playlistUrl"`
	TrackCount int    `json:"trackCount"`
}
