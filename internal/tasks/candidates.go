package tasks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/metrics"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
)

const (
	StrategyFeatureConditioned = "feature_conditioned"
	StrategySeedTrackArtist    = "seed_track_artist"
	StrategySeedTrackOnly      = "seed_track_only"

	defaultPoolSize = 50
	defaultMarket   = "US"
)

// AcquireRequest describes the seed for candidate acquisition.
type AcquireRequest struct {
	TrackID  string
	ArtistID string

	// Features are the seed's audio features, nil when unavailable.
	Features *models.AudioFeatures

	// FeaturesForbidden is set when the feature lookup returned 403.
	FeaturesForbidden bool

	PoolSize int
	Market   string
}

// Failure records why a strategy did not produce candidates.
type Failure struct {
	Strategy    string
	Status      int
	Body        string
	Recoverable bool
}

// Strategy is one rung of the acquisition ladder.
type Strategy struct {
	Name string

	// Applies reports whether the rung should run given the previous rung's failure (nil for none).
	Applies func(req AcquireRequest, prior *Failure) bool

	// Query builds the recommendation query for this rung.
	Query func(req AcquireRequest) services.RecommendationQuery

	// Recoverable reports whether a failure with status lets the ladder continue.
	Recoverable func(status int) bool
}

// Acquisition is a successful candidate pool and how it was obtained.
type Acquisition struct {
	Tracks       []models.Track
	Method       string
	Degradations []string
}

// CandidateFetchError is returned when the ladder is exhausted. It carries the last upstream status and body.
type CandidateFetchError struct {
	Strategy string
	Status   int
	Body     string
}

func (e *CandidateFetchError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", shared.ErrCandidateFetchFailed, e.Strategy, e.Status)
}

// Unwrap exposes both [shared.ErrCandidateFetchFailed] and the upstream detail.
func (e *CandidateFetchError) Unwrap() []error {
	return []error{
		shared.ErrCandidateFetchFailed,
		&shared.UpstreamError{Service: "spotify", Status: e.Status, Body: e.Body},
	}
}

func seedQuery(req AcquireRequest) services.RecommendationQuery {
	return services.RecommendationQuery{
		SeedTracks: []string{req.TrackID},
		Limit:      req.PoolSize,
		Market:     req.Market,
	}
}

// DefaultStrategies returns the ladder: feature-conditioned, then seed track and artist, then seed track alone.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: StrategyFeatureConditioned,
			Applies: func(req AcquireRequest, prior *Failure) bool {
				return prior == nil && req.Features != nil && !req.FeaturesForbidden
			},
			Query: func(req AcquireRequest) services.RecommendationQuery {
				q := seedQuery(req)
				q.Targets = map[string]float64{
					"danceability": req.Features.Danceability,
					"energy":       req.Features.Energy,
					"valence":      req.Features.Valence,
					"tempo":        req.Features.Tempo,
				}
				return q
			},
			Recoverable: func(status int) bool {
				return status != http.StatusUnauthorized
			},
		},
		{
			Name: StrategySeedTrackArtist,
			Applies: func(req AcquireRequest, prior *Failure) bool {
				return req.ArtistID != "" && (prior == nil || prior.Recoverable)
			},
			Query: func(req AcquireRequest) services.RecommendationQuery {
				q := seedQuery(req)
				q.SeedArtists = []string{req.ArtistID}
				return q
			},
			Recoverable: func(status int) bool {
				return status == http.StatusNotFound
			},
		},
		{
			Name: StrategySeedTrackOnly,
			Applies: func(req AcquireRequest, prior *Failure) bool {
				return prior == nil || prior.Recoverable
			},
			Query:       seedQuery,
			Recoverable: func(int) bool { return false },
		},
	}
}

// CandidateAcquirer walks a strategy ladder until one rung returns candidates.
type CandidateAcquirer struct {
	catalog    services.Catalog
	strategies []Strategy
	logger     *log.Logger
}

// NewCandidateAcquirer creates an acquirer. A nil ladder uses [DefaultStrategies].
func NewCandidateAcquirer(catalog services.Catalog, strategies []Strategy, logger *log.Logger) *CandidateAcquirer {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CandidateAcquirer{
		catalog:    catalog,
		strategies: strategies,
		logger:     shared.WithLogger(logger, "component", "candidates"),
	}
}

// Fetch runs the ladder. A 2xx with no tracks is a successful, empty pool.
//
// Errors that carry no upstream status (transport failures, expired credentials) end the ladder immediately.
func (a *CandidateAcquirer) Fetch(ctx context.Context, req AcquireRequest) (Acquisition, error) {
	if req.PoolSize <= 0 {
		req.PoolSize = defaultPoolSize
	}
	if req.Market == "" {
		req.Market = defaultMarket
	}

	var degradations []string
	if req.FeaturesForbidden {
		degradations = append(degradations, models.DegradedNoAudioFeatures)
	}

	var prior *Failure
	for _, s := range a.strategies {
		if !s.Applies(req, prior) {
			continue
		}

		if prior != nil {
			a.logger.Info("falling back", "from", prior.Strategy, "to", s.Name, "status", prior.Status)
		}

		tracks, err := a.catalog.Recommendations(ctx, s.Query(req))
		if err == nil {
			metrics.CandidateStrategies.WithLabelValues(s.Name, "ok").Inc()
			return Acquisition{Tracks: tracks, Method: s.Name, Degradations: degradations}, nil
		}

		metrics.CandidateStrategies.WithLabelValues(s.Name, "error").Inc()
		if shared.IsCancellation(err) {
			return Acquisition{}, shared.Cancelled(err)
		}

		upErr, ok := shared.Upstream(err)
		if !ok {
			return Acquisition{}, fmt.Errorf("%s: %w", s.Name, err)
		}

		prior = &Failure{
			Strategy:    s.Name,
			Status:      upErr.Status,
			Body:        upErr.Body,
			Recoverable: s.Recoverable(upErr.Status),
		}
		if !prior.Recoverable {
			break
		}
	}

	if prior == nil {
		return Acquisition{}, fmt.Errorf("%w: no strategy applied to %s", shared.ErrCandidateFetchFailed, req.TrackID)
	}
	return Acquisition{}, &CandidateFetchError{Strategy: prior.Strategy, Status: prior.Status, Body: prior.Body}
}
