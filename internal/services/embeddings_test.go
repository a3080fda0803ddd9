package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/echoes/internal/shared"
	"github.com/goccy/go-json"
)

func TestOpenAIEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("posts model and trimmed input", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/embeddings" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer key" {
				t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
			}

			var req embeddingRequest
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &req); err != nil {
				t.Fatalf("bad body: %v", err)
			}
			if req.Model != "text-embedding-3-large" || req.Input != "hello" {
				t.Errorf("unexpected request %+v", req)
			}

			fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
		}))
		defer srv.Close()

		e := NewOpenAIEmbedder(EmbeddingOpts{BaseURL: srv.URL, APIKey: "key", HTTPClient: srv.Client()})
		vec, err := e.Embed(ctx, "  hello \n")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vec) != 3 || vec[2] != 0.3 {
			t.Errorf("unexpected vector %v", vec)
		}
	})

	t.Run("blank input is rejected without a request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected no request")
		}))
		defer srv.Close()

		e := NewOpenAIEmbedder(EmbeddingOpts{BaseURL: srv.URL, HTTPClient: srv.Client()})
		_, err := e.Embed(ctx, "   ")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("provider errors are wrapped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limited"}`)
		}))
		defer srv.Close()

		e := NewOpenAIEmbedder(EmbeddingOpts{BaseURL: srv.URL, HTTPClient: srv.Client()})
		_, err := e.Embed(ctx, "hello")
		if !errors.Is(err, shared.ErrEmbeddingProvider) {
			t.Errorf("expected ErrEmbeddingProvider, got %v", err)
		}
		if upErr, ok := shared.Upstream(err); !ok || upErr.Status != http.StatusTooManyRequests {
			t.Errorf("expected 429 UpstreamError, got %v", err)
		}
	})

	t.Run("empty data is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		}))
		defer srv.Close()

		e := NewOpenAIEmbedder(EmbeddingOpts{BaseURL: srv.URL, HTTPClient: srv.Client()})
		if _, err := e.Embed(ctx, "hello"); !errors.Is(err, shared.ErrEmbeddingProvider) {
			t.Errorf("expected ErrEmbeddingProvider, got %v", err)
		}
	})
}
