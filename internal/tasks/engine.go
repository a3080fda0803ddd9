package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/cache"
	"github.com/desertthunder/echoes/internal/metrics"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMinResults = 30
	defaultLimit      = 20
	defaultCacheTTL   = 24 * time.Hour
	searchLimit       = 10
)

// TokenSource supplies a valid bearer token or fails with [shared.ErrUnauthorized].
type TokenSource interface {
	ValidToken(ctx context.Context) (string, error)
}

// RecommendationRecorder persists finished recommendations. Failures are logged, never returned to the caller.
type RecommendationRecorder interface {
	Record(ctx context.Context, rec *models.Recommendation) error
}

// EngineOpts configures an [Engine]. Zero values select defaults.
type EngineOpts struct {
	Tokens  TokenSource
	Catalog services.Catalog

	// Lyrics and Embedder back the lyric signal. Either being nil disables it.
	Lyrics   services.LyricsProvider
	Embedder services.Embedder

	LyricsCache    cache.Store[string]
	EmbeddingCache cache.Store[models.EmbeddingVector]
	FeatureCache   cache.Store[models.AudioFeatures]
	CacheTTL       time.Duration // default 24h

	Strategies []Strategy // default [DefaultStrategies]
	Recorder   RecommendationRecorder
	Logger     *log.Logger

	MinResults   int              // default 30
	DefaultLimit int              // default 20
	PoolSize     int              // default 50
	Market       string           // default US
	Weights      models.WeightSet // default [models.DefaultWeights]
	Now          func() time.Time
}

// Engine runs the recommendation pipeline.
type Engine struct {
	tokens     TokenSource
	catalog    services.Catalog
	lyrics     *LyricsResolver
	embeddings *EmbeddingResolver
	features   *cache.TTL[models.AudioFeatures]
	acquirer   *CandidateAcquirer
	recorder   RecommendationRecorder
	logger     *log.Logger
	now        func() time.Time

	minResults   int
	defaultLimit int
	poolSize     int
	market       string
	weights      models.WeightSet
}

// NewEngine wires the resolvers, caches and acquisition ladder.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.LyricsCache == nil {
		opts.LyricsCache = cache.NewMemory[string]()
	}
	if opts.EmbeddingCache == nil {
		opts.EmbeddingCache = cache.NewMemory[models.EmbeddingVector]()
	}
	if opts.FeatureCache == nil {
		opts.FeatureCache = cache.NewMemory[models.AudioFeatures]()
	}
	if opts.MinResults <= 0 {
		opts.MinResults = defaultMinResults
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultLimit
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaultPoolSize
	}
	if opts.Market == "" {
		opts.Market = defaultMarket
	}
	if opts.Weights == (models.WeightSet{}) {
		opts.Weights = models.DefaultWeights
	}

	e := &Engine{
		tokens:       opts.Tokens,
		catalog:      opts.Catalog,
		features:     cache.NewTTL("features", opts.FeatureCache, opts.CacheTTL, opts.Now),
		acquirer:     NewCandidateAcquirer(opts.Catalog, opts.Strategies, opts.Logger),
		recorder:     opts.Recorder,
		logger:       shared.WithLogger(opts.Logger, "component", "engine"),
		now:          opts.Now,
		minResults:   opts.MinResults,
		defaultLimit: opts.DefaultLimit,
		poolSize:     opts.PoolSize,
		market:       opts.Market,
		weights:      opts.Weights,
	}
	if opts.Lyrics != nil && opts.Embedder != nil {
		e.lyrics = NewLyricsResolver(opts.Lyrics, opts.LyricsCache, opts.CacheTTL, opts.Now, opts.Logger)
		e.embeddings = NewEmbeddingResolver(opts.Embedder, opts.EmbeddingCache, opts.CacheTTL, opts.Now, opts.Logger)
	}
	return e
}

// RecommendRequest is the input to [Engine.Recommend]. A nil Weights uses the configured defaults.
type RecommendRequest struct {
	TrackID string
	Weights *models.WeightSet
	Limit   int
}

// sourceSignals holds what was resolved for the seed track. Nil fields are unavailable signals.
type sourceSignals struct {
	embedding models.EmbeddingVector
	features  *models.AudioFeatureVector
}

// Recommend ranks candidates similar to the requested track.
//
// Missing lyrics or audio features degrade the result instead of failing it. On cancellation no partial
// ranking is returned.
func (e *Engine) Recommend(ctx context.Context, req RecommendRequest, progress chan<- ProgressUpdate) (*models.Recommendation, error) {
	start := e.now()
	rec, err := e.recommend(ctx, req, progress)

	metrics.RecommendationDuration.Observe(e.now().Sub(start).Seconds())
	metrics.Recommendations.WithLabelValues(outcome(rec, err)).Inc()

	if err != nil {
		return nil, err
	}

	if e.recorder != nil {
		if rerr := e.recorder.Record(ctx, rec); rerr != nil {
			e.logger.Warn("failed to record recommendation", "track", rec.SourceTrackID, "error", rerr)
		}
	}
	return rec, nil
}

func (e *Engine) recommend(ctx context.Context, req RecommendRequest, progress chan<- ProgressUpdate) (*models.Recommendation, error) {
	raw := e.weights
	if req.Weights != nil {
		raw = *req.Weights
	}
	if err := validateRequest(req.TrackID, raw); err != nil {
		return nil, err
	}

	weights := NormalizeWeights(raw)
	limit := req.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}

	source, err := e.fetchSource(ctx, req.TrackID, progress)
	if err != nil {
		return nil, err
	}

	effective := weights
	var src sourceSignals
	var degradations []string
	var features *models.AudioFeatures
	forbidden := false

	if weights.Lyrics > 0 {
		sendProgress(progress, resolveSignalUpdate(1, 2, "lyrics"))

		vec, err := e.trackEmbedding(ctx, *source)
		switch {
		case shared.IsCancellation(err):
			return nil, shared.Cancelled(err)
		case err != nil:
			e.logger.Warn("lyric signal unavailable", "track", source.ID, "error", err)
			sendProgress(progress, signalDegradedUpdate(1, 2, "lyrics", err))
			effective.Lyrics = 0
			degradations = addDegradation(degradations, models.DegradedNoLyrics)
		default:
			src.embedding = vec
		}
	}

	if weights.Spotify > 0 {
		sendProgress(progress, resolveSignalUpdate(2, 2, "audio features"))

		f, err := e.audioFeatures(ctx, source.ID)
		switch {
		case shared.IsCancellation(err):
			return nil, shared.Cancelled(err)
		case err != nil:
			forbidden = isForbidden(err)
			e.logger.Warn("audio feature signal unavailable", "track", source.ID, "forbidden", forbidden, "error", err)
			sendProgress(progress, signalDegradedUpdate(2, 2, "audio features", err))
			effective.Spotify = 0
			degradations = addDegradation(degradations, models.DegradedNoAudioFeatures)
		default:
			features = f
			vec := NormalizeFeatures(*f)
			src.features = &vec
		}
	}

	candidates, acq, err := e.acquire(ctx, source, features, forbidden, progress)
	if err != nil {
		if shared.IsCancellation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrRecommendationFailed, err)
	}
	for _, d := range acq.Degradations {
		degradations = addDegradation(degradations, d)
	}

	rec := &models.Recommendation{
		SourceTrack:      *source,
		SourceTrackID:    source.ID,
		Weights:          weights,
		EffectiveWeights: effective,
		Recommendations:  []models.ScoredCandidate{},
	}

	if len(candidates) == 0 {
		degradations = addDegradation(degradations, models.DegradedNoCandidates)
		rec.Analysis = analysis(acq.Method, degradations, features)
		return rec, nil
	}

	scored, err := e.scoreAll(ctx, src, candidates, effective, progress)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if n := max(limit, e.minResults); len(scored) > n {
		scored = scored[:n]
	}
	sendProgress(progress, rankUpdate(len(scored)))

	rec.Recommendations = scored
	rec.Analysis = analysis(acq.Method, degradations, features)
	return rec, nil
}

// scoreAll scores every candidate concurrently. One candidate failing never affects the others.
func (e *Engine) scoreAll(ctx context.Context, src sourceSignals, candidates []models.Track, w models.WeightSet, progress chan<- ProgressUpdate) ([]models.ScoredCandidate, error) {
	scored := make([]models.ScoredCandidate, len(candidates))
	var done atomic.Int32

	var g errgroup.Group
	g.SetLimit(len(candidates))
	for i, c := range candidates {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			scored[i] = e.score(ctx, src, c, w)
			sendProgress(progress, scoreCandidateUpdate(int(done.Add(1)), len(candidates), c))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, shared.Cancelled(err)
	}
	return scored, nil
}

func (e *Engine) score(ctx context.Context, src sourceSignals, c models.Track, w models.WeightSet) models.ScoredCandidate {
	var lyricsSim, spotifySim float64

	if w.Lyrics > 0 && src.embedding != nil {
		vec, err := e.trackEmbedding(ctx, c)
		if err == nil {
			lyricsSim = e.similarity(src.embedding, vec, c.ID, "lyrics")
		} else if !errors.Is(err, shared.ErrLyricsNotFound) {
			e.logger.Debug("candidate lyric signal unavailable", "track", c.ID, "error", err)
		}
	}

	if w.Spotify > 0 && src.features != nil {
		f, err := e.audioFeatures(ctx, c.ID)
		if err == nil {
			vec := NormalizeFeatures(*f)
			spotifySim = e.similarity(src.features[:], vec[:], c.ID, "audio features")
		} else {
			e.logger.Debug("candidate audio features unavailable", "track", c.ID, "error", err)
		}
	}

	score, b := breakdown(lyricsSim, spotifySim, w)
	return models.ScoredCandidate{Track: c, Score: score, Breakdown: b}
}

// similarity treats a dimension mismatch as a defect: it is logged loudly and scored as no signal.
func (e *Engine) similarity(a, b []float64, trackID, signal string) float64 {
	sim, err := Cosine(a, b)
	if err != nil {
		e.logger.Error("similarity computation failed", "track", trackID, "signal", signal, "error", err)
		return 0
	}
	return sim
}

// Analyze returns the candidate pool for a track without scoring it.
func (e *Engine) Analyze(ctx context.Context, trackID string, progress chan<- ProgressUpdate) (*models.Analysis, []models.Track, error) {
	if err := validateRequest(trackID, models.DefaultWeights); err != nil {
		return nil, nil, err
	}

	source, err := e.fetchSource(ctx, trackID, progress)
	if err != nil {
		return nil, nil, err
	}

	var degradations []string
	features, err := e.audioFeatures(ctx, source.ID)
	forbidden := false
	if err != nil {
		if shared.IsCancellation(err) {
			return nil, nil, shared.Cancelled(err)
		}
		forbidden = isForbidden(err)
		e.logger.Warn("audio features unavailable", "track", source.ID, "forbidden", forbidden, "error", err)
		degradations = addDegradation(degradations, models.DegradedNoAudioFeatures)
	}

	candidates, acq, err := e.acquire(ctx, source, features, forbidden, progress)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range acq.Degradations {
		degradations = addDegradation(degradations, d)
	}
	if len(candidates) == 0 {
		degradations = addDegradation(degradations, models.DegradedNoCandidates)
	}

	a := analysis(acq.Method, degradations, features)
	return &a, candidates, nil
}

// Search runs a catalog track search and removes duplicate recordings.
func (e *Engine) Search(ctx context.Context, query string, progress chan<- ProgressUpdate) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", shared.ErrInvalidInput)
	}
	if err := e.authorize(ctx); err != nil {
		return nil, err
	}

	sendProgress(progress, searchUpdate(query))
	tracks, err := e.catalog.SearchTracks(ctx, query, searchLimit)
	if err != nil {
		if shared.IsCancellation(err) {
			return nil, shared.Cancelled(err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return Dedupe(tracks), nil
}

func (e *Engine) authorize(ctx context.Context) error {
	if e.tokens == nil {
		return nil
	}
	if _, err := e.tokens.ValidToken(ctx); err != nil {
		if shared.IsCancellation(err) {
			return shared.Cancelled(err)
		}
		if errors.Is(err, shared.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %w", shared.ErrUnauthorized, err)
	}
	return nil
}

func (e *Engine) fetchSource(ctx context.Context, trackID string, progress chan<- ProgressUpdate) (*models.Track, error) {
	if err := e.authorize(ctx); err != nil {
		return nil, err
	}

	sendProgress(progress, fetchSourceUpdate(trackID))
	source, err := e.catalog.Track(ctx, trackID)
	if err != nil {
		if shared.IsCancellation(err) {
			return nil, shared.Cancelled(err)
		}
		return nil, fmt.Errorf("failed to fetch source track %s: %w", trackID, err)
	}
	sendProgress(progress, foundSourceUpdate(source))
	return source, nil
}

func (e *Engine) acquire(ctx context.Context, source *models.Track, features *models.AudioFeatures, forbidden bool, progress chan<- ProgressUpdate) ([]models.Track, Acquisition, error) {
	sendProgress(progress, acquireCandidatesUpdate())

	acq, err := e.acquirer.Fetch(ctx, AcquireRequest{
		TrackID:           source.ID,
		ArtistID:          source.PrimaryArtistID(),
		Features:          features,
		FeaturesForbidden: forbidden,
		PoolSize:          e.poolSize,
		Market:            e.market,
	})
	if err != nil {
		return nil, acq, err
	}

	candidates := Dedupe(exclude(acq.Tracks, source.ID))
	sendProgress(progress, acquiredCandidatesUpdate(acq, len(candidates)))
	return candidates, acq, nil
}

// trackEmbedding resolves lyrics then their embedding for a track.
func (e *Engine) trackEmbedding(ctx context.Context, t models.Track) (models.EmbeddingVector, error) {
	if e.lyrics == nil || e.embeddings == nil {
		return nil, fmt.Errorf("%w: no lyrics provider configured", shared.ErrLyricsNotFound)
	}

	text, err := e.lyrics.Resolve(ctx, t.ID, t.Title, t.PrimaryArtist())
	if err != nil {
		return nil, err
	}
	return e.embeddings.Resolve(ctx, t.ID, text)
}

func (e *Engine) audioFeatures(ctx context.Context, trackID string) (*models.AudioFeatures, error) {
	if f, ok, err := e.features.Get(ctx, trackID); err != nil {
		e.logger.Warn("feature cache read failed", "track", trackID, "error", err)
	} else if ok {
		return &f, nil
	}

	f, err := e.catalog.AudioFeatures(ctx, trackID)
	if err != nil {
		return nil, err
	}

	if err := e.features.Put(ctx, trackID, *f); err != nil {
		e.logger.Warn("feature cache write failed", "track", trackID, "error", err)
	}
	return f, nil
}

func validateRequest(trackID string, w models.WeightSet) error {
	if strings.TrimSpace(trackID) == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}
	if w.Lyrics < 0 || w.Audio < 0 || w.Spotify < 0 {
		return fmt.Errorf("%w: weights cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

func isForbidden(err error) bool {
	upErr, ok := shared.Upstream(err)
	return ok && upErr.Status == http.StatusForbidden
}

func addDegradation(list []string, d string) []string {
	if slices.Contains(list, d) {
		return list
	}
	return append(list, d)
}

func analysis(method string, degradations []string, features *models.AudioFeatures) models.Analysis {
	a := models.Analysis{Method: method, Degradations: degradations, AudioFeatures: features}
	if len(degradations) > 0 {
		a.Note = "degraded: " + strings.ReplaceAll(strings.Join(degradations, ", "), "_", " ")
	}
	return a
}

func outcome(rec *models.Recommendation, err error) string {
	switch {
	case shared.IsCancellation(err):
		return "cancelled"
	case err != nil:
		return "failed"
	case len(rec.Recommendations) == 0:
		return "empty"
	case rec.Analysis.Degraded():
		return "degraded"
	default:
		return "ok"
	}
}
