package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/cache"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
)

var (
	sectionMarkers = regexp.MustCompile(`\[.*?\]`)
	asides         = regexp.MustCompile(`\(.*?\)`)
	timestamps     = regexp.MustCompile(`\d{1,2}:\d{2}`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// CleanLyrics strips section markers, parenthetical asides and m:ss timestamps, then collapses
// runs of blank lines to a single blank line.
func CleanLyrics(text string) string {
	text = sectionMarkers.ReplaceAllString(text, "")
	text = asides.ReplaceAllString(text, "")
	text = timestamps.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// LyricsResolver finds and caches cleaned lyric text for a track.
type LyricsResolver struct {
	provider services.LyricsProvider
	cache    *cache.TTL[string]
	logger   *log.Logger
}

// NewLyricsResolver wraps provider with a TTL cache over store.
func NewLyricsResolver(provider services.LyricsProvider, store cache.Store[string], ttl time.Duration, now func() time.Time, logger *log.Logger) *LyricsResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LyricsResolver{
		provider: provider,
		cache:    cache.NewTTL("lyrics", store, ttl, now),
		logger:   shared.WithLogger(logger, "component", "lyrics"),
	}
}

func lyricsKey(trackID, title, artist string) string {
	if trackID != "" {
		return trackID
	}
	return title + "|" + artist
}

// Resolve returns lyrics for the track, or [shared.ErrLyricsNotFound] when the provider has no text.
func (r *LyricsResolver) Resolve(ctx context.Context, trackID, title, artist string) (string, error) {
	key := lyricsKey(trackID, title, artist)

	if text, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("lyrics cache read failed", "key", key, "error", err)
	} else if ok {
		r.logger.Debug("lyrics cache hit", "key", key)
		return text, nil
	}

	query := strings.TrimSpace(title + " " + artist)
	hits, err := r.provider.SearchLyrics(ctx, query)
	if err != nil {
		if shared.IsCancellation(err) {
			return "", shared.Cancelled(err)
		}
		return "", fmt.Errorf("lyrics search for %q failed: %w", query, err)
	}

	if len(hits) == 0 {
		return "", fmt.Errorf("%w: %s", shared.ErrLyricsNotFound, query)
	}

	hit := hits[0]
	if hit.Lyrics == "" {
		r.logger.Debug("lyrics hit has no text", "provider", r.provider.Name(), "query", query, "url", hit.URL)
		return "", fmt.Errorf("%w: %s returned a page reference only", shared.ErrLyricsNotFound, r.provider.Name())
	}

	text := CleanLyrics(hit.Lyrics)
	if text == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrLyricsNotFound, query)
	}

	if err := r.cache.Put(ctx, key, text); err != nil {
		r.logger.Warn("lyrics cache write failed", "key", key, "error", err)
	}
	return text, nil
}
