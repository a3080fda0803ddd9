package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/metrics"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

const (
	lrclibBaseURL = "https://lrclib.net"
	geniusBaseURL = "https://api.genius.com"
	userAgent     = "echoes/1.0 (+https://github.com/desertthunder/echoes)"
)

// LyricsOpts configures a lyrics provider.
type LyricsOpts struct {
	BaseURL     string
	AccessToken string // Genius only
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      *log.Logger
}

func (o *LyricsOpts) defaults(baseURL string) {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.HTTPClient == nil {
		timeout := o.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		o.HTTPClient = &http.Client{Timeout: timeout}
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
}

// NewLyricsProvider returns the provider named by kind ("lrclib" or "genius").
func NewLyricsProvider(kind string, opts LyricsOpts) (LyricsProvider, error) {
	switch strings.ToLower(kind) {
	case "", "lrclib":
		return NewLRCLibProvider(opts), nil
	case "genius":
		if opts.AccessToken == "" {
			return nil, fmt.Errorf("%w: genius access token", shared.ErrMissingCredentials)
		}
		return NewGeniusProvider(opts), nil
	default:
		return nil, fmt.Errorf("%w: unknown lyrics provider %q", shared.ErrInvalidConfig, kind)
	}
}

// LRCLibProvider searches lrclib.net, which returns lyric text directly.
type LRCLibProvider struct {
	opts    LyricsOpts
	breaker *gobreaker.CircuitBreaker[[]LyricsHit]
}

// NewLRCLibProvider creates an LRCLib client.
func NewLRCLibProvider(opts LyricsOpts) *LRCLibProvider {
	opts.defaults(lrclibBaseURL)
	logger := shared.WithLogger(opts.Logger, "service", "lrclib")
	return &LRCLibProvider{opts: opts, breaker: newBreaker[[]LyricsHit]("lrclib", logger)}
}

func (p *LRCLibProvider) Name() string { return "lrclib" }

type lrclibRecord struct {
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
	Instrumental bool   `json:"instrumental"`
}

// SearchLyrics queries /api/search. A 404 is an empty result, not an error.
func (p *LRCLibProvider) SearchLyrics(ctx context.Context, query string) ([]LyricsHit, error) {
	hits, err := p.breaker.Execute(func() ([]LyricsHit, error) {
		reqURL := fmt.Sprintf("%s/api/search?%s", p.opts.BaseURL, url.Values{"q": {query}}.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create lrclib request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := p.opts.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("lrclib request failed: %w", err)
		}
		defer resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues("lrclib", strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, upstreamError("lrclib", resp)
		}

		var records []lrclibRecord
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode lrclib response: %w", err)
		}

		hits := make([]LyricsHit, 0, len(records))
		for _, r := range records {
			text := r.PlainLyrics
			if text == "" {
				text = r.SyncedLyrics
			}
			hits = append(hits, LyricsHit{Title: r.TrackName, Artist: r.ArtistName, Lyrics: text})
		}
		return hits, nil
	})
	return hits, breakerError("lrclib", err)
}

// GeniusProvider searches the Genius API. Hits reference a lyrics page and never carry text.
type GeniusProvider struct {
	opts    LyricsOpts
	breaker *gobreaker.CircuitBreaker[[]LyricsHit]
}

// NewGeniusProvider creates a Genius client.
func NewGeniusProvider(opts LyricsOpts) *GeniusProvider {
	opts.defaults(geniusBaseURL)
	logger := shared.WithLogger(opts.Logger, "service", "genius")
	return &GeniusProvider{opts: opts, breaker: newBreaker[[]LyricsHit]("genius", logger)}
}

func (p *GeniusProvider) Name() string { return "genius" }

type geniusSearch struct {
	Response struct {
		Hits []struct {
			Result struct {
				Title         string `json:"title"`
				URL           string `json:"url"`
				PrimaryArtist struct {
					Name string `json:"name"`
				} `json:"primary_artist"`
			} `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

// SearchLyrics queries /search with the bearer token.
func (p *GeniusProvider) SearchLyrics(ctx context.Context, query string) ([]LyricsHit, error) {
	hits, err := p.breaker.Execute(func() ([]LyricsHit, error) {
		reqURL := fmt.Sprintf("%s/search?%s", p.opts.BaseURL, url.Values{"q": {query}}.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create genius request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+p.opts.AccessToken)
		req.Header.Set("User-Agent", userAgent)

		resp, err := p.opts.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("genius request failed: %w", err)
		}
		defer resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues("genius", strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			return nil, upstreamError("genius", resp)
		}

		var search geniusSearch
		if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
			return nil, fmt.Errorf("failed to decode genius response: %w", err)
		}

		hits := make([]LyricsHit, 0, len(search.Response.Hits))
		for _, h := range search.Response.Hits {
			hits = append(hits, LyricsHit{
				Title:  h.Result.Title,
				Artist: h.Result.PrimaryArtist.Name,
				URL:    h.Result.URL,
			})
		}
		return hits, nil
	})
	return hits, breakerError("genius", err)
}
