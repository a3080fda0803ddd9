package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/metrics"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	embeddingModel = "text-embedding-3-large"
)

// EmbeddingOpts configures an [OpenAIEmbedder].
type EmbeddingOpts struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *log.Logger
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[models.EmbeddingVector]
}

// NewOpenAIEmbedder creates an embedding client.
func NewOpenAIEmbedder(opts EmbeddingOpts) *OpenAIEmbedder {
	if opts.BaseURL == "" {
		opts.BaseURL = openAIBaseURL
	}
	if opts.Model == "" {
		opts.Model = embeddingModel
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &OpenAIEmbedder{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		httpClient: opts.HTTPClient,
		breaker:    newBreaker[models.EmbeddingVector]("embeddings", shared.WithLogger(opts.Logger, "service", "embeddings")),
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding for text. Blank text is rejected before any network call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text to embed cannot be empty", shared.ErrInvalidInput)
	}

	vec, err := e.breaker.Execute(func() (models.EmbeddingVector, error) {
		payload, err := json.Marshal(embeddingRequest{Model: e.model, Input: text})
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if e.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+e.apiKey)
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		defer resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues("embeddings", strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			return nil, upstreamError("embeddings", resp)
		}

		var out embeddingResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode embedding response: %w", err)
		}
		if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
			return nil, fmt.Errorf("embedding response contained no vectors")
		}
		return models.EmbeddingVector(out.Data[0].Embedding), nil
	})
	if err != nil {
		if shared.IsCancellation(err) {
			return nil, shared.Cancelled(err)
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrEmbeddingProvider, breakerError("embeddings", err))
	}
	return vec, nil
}
