package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/echoes/internal/cache"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
	th "github.com/desertthunder/echoes/internal/testing"
)

func TestCleanLyrics(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "section markers", in: "[Verse 1]\nhello\n[Chorus]\nworld", want: "hello\n\nworld"},
		{name: "asides", in: "hello (hello)\nworld (ooh)", want: "hello \nworld"},
		{name: "timestamps", in: "[00:12.34] first line\n1:05 second line", want: "first line\n second line"},
		{name: "blank runs collapse", in: "one\n\n\n\n\ntwo", want: "one\n\ntwo"},
		{name: "trims", in: "\n\n  lyrics  \n\n", want: "lyrics"},
		{name: "only markers", in: "[Instrumental]", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanLyrics(tc.in); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLyricsResolver(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	t.Run("caches cleaned text by track id", func(t *testing.T) {
		provider := &fakeLyrics{hits: map[string][]services.LyricsHit{
			"Holocene Bon Iver": {{Lyrics: "[Verse]\nsomeway baby"}},
		}}
		clk := th.NewClock(start)
		r := NewLyricsResolver(provider, cache.NewMemory[string](), 24*time.Hour, clk.Now, nil)

		for range 3 {
			text, err := r.Resolve(ctx, "t1", "Holocene", "Bon Iver")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != "someway baby" {
				t.Errorf("expected cleaned text, got %q", text)
			}
		}
		if provider.calls.Load() != 1 {
			t.Errorf("expected one provider call, got %d", provider.calls.Load())
		}

		clk.Advance(24 * time.Hour)
		if _, err := r.Resolve(ctx, "t1", "Holocene", "Bon Iver"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if provider.calls.Load() != 2 {
			t.Errorf("expected expired entry to be refetched, got %d calls", provider.calls.Load())
		}
	})

	t.Run("falls back to title and artist key", func(t *testing.T) {
		store := cache.NewMemory[string]()
		provider := &fakeLyrics{hits: map[string][]services.LyricsHit{
			"Song Artist": {{Lyrics: "words"}},
		}}
		r := NewLyricsResolver(provider, store, time.Hour, nil, nil)

		if _, err := r.Resolve(ctx, "", "Song", "Artist"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok, _ := store.Get(ctx, "Song|Artist"); !ok {
			t.Error("expected entry under title|artist key")
		}
	})

	t.Run("no hits", func(t *testing.T) {
		r := NewLyricsResolver(&fakeLyrics{}, cache.NewMemory[string](), time.Hour, nil, nil)

		_, err := r.Resolve(ctx, "t1", "Unknown", "Nobody")
		if !errors.Is(err, shared.ErrLyricsNotFound) {
			t.Errorf("expected ErrLyricsNotFound, got %v", err)
		}
	})

	t.Run("page reference without text", func(t *testing.T) {
		provider := &fakeLyrics{hits: map[string][]services.LyricsHit{
			"Holocene Bon Iver": {{Title: "Holocene", URL: "https://genius.com/holocene"}},
		}}
		store := cache.NewMemory[string]()
		r := NewLyricsResolver(provider, store, time.Hour, nil, nil)

		_, err := r.Resolve(ctx, "t1", "Holocene", "Bon Iver")
		if !errors.Is(err, shared.ErrLyricsNotFound) {
			t.Errorf("expected ErrLyricsNotFound, got %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("expected nothing cached, got %d entries", store.Len())
		}
	})

	t.Run("provider error", func(t *testing.T) {
		provider := &fakeLyrics{err: shared.ErrServiceUnavailable}
		r := NewLyricsResolver(provider, cache.NewMemory[string](), time.Hour, nil, nil)

		_, err := r.Resolve(ctx, "t1", "Holocene", "Bon Iver")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
