package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/cache"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
)

// EmbeddingResolver turns lyric text into a vector, caching by track id.
type EmbeddingResolver struct {
	embedder services.Embedder
	cache    *cache.TTL[models.EmbeddingVector]
	logger   *log.Logger
}

// NewEmbeddingResolver wraps embedder with a TTL cache over store.
func NewEmbeddingResolver(embedder services.Embedder, store cache.Store[models.EmbeddingVector], ttl time.Duration, now func() time.Time, logger *log.Logger) *EmbeddingResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &EmbeddingResolver{
		embedder: embedder,
		cache:    cache.NewTTL("embeddings", store, ttl, now),
		logger:   shared.WithLogger(logger, "component", "embeddings"),
	}
}

// Resolve returns the embedding of text for trackID. A cache hit skips the provider.
func (r *EmbeddingResolver) Resolve(ctx context.Context, trackID, text string) (models.EmbeddingVector, error) {
	if vec, ok, err := r.cache.Get(ctx, trackID); err != nil {
		r.logger.Warn("embedding cache read failed", "track", trackID, "error", err)
	} else if ok {
		r.logger.Debug("embedding cache hit", "track", trackID)
		return vec, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: no text to embed for %s", shared.ErrInvalidInput, trackID)
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		if shared.IsCancellation(err) {
			return nil, shared.Cancelled(err)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrEmbeddingProvider, err)
	}

	if err := r.cache.Put(ctx, trackID, vec); err != nil {
		r.logger.Warn("embedding cache write failed", "track", trackID, "error", err)
	}
	return vec, nil
}
