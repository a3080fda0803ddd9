package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/services"
	th "github.com/desertthunder/echoes/internal/testing"
)

func TestBatchRecommend(t *testing.T) {
	catalog := &fakeCatalog{
		tracks: map[string]models.Track{
			"src": track("src", "Source", "S"),
		},
		recommend: func(services.RecommendationQuery) ([]models.Track, error) {
			return []models.Track{track("c1", "One", "A"), track("c2", "Two", "B")}, nil
		},
	}
	engine := NewEngine(EngineOpts{Catalog: catalog})

	t.Run("records successes and failures", func(t *testing.T) {
		dir := t.TempDir()
		progress := make(chan ProgressUpdate, 20)

		result, err := engine.BatchRecommend(context.Background(), progress, []string{"src", "missing"}, BatchOpts{
			Format:    "json",
			OutputDir: dir,
			RateLimit: 100,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.TotalTracks != 2 || result.Successful != 1 || result.Failed != 1 {
			t.Errorf("unexpected totals %+v", result)
		}
		th.AssertFileExists(t, filepath.Join(dir, "src.json"))
		th.AssertFileExists(t, filepath.Join(dir, "batch_manifest.json"))
		if result.ManifestPath != filepath.Join(dir, "batch_manifest.json") {
			t.Errorf("unexpected manifest path %s", result.ManifestPath)
		}

		for _, r := range result.Results {
			switch r.TrackID {
			case "src":
				if !r.Success || r.TrackTitle != "Source" || len(r.Files) != 1 {
					t.Errorf("unexpected success entry %+v", r)
				}
			case "missing":
				if r.Success || r.Error == nil {
					t.Errorf("unexpected failure entry %+v", r)
				}
			}
		}
	})

	t.Run("csv format writes tracks and metadata", func(t *testing.T) {
		dir := t.TempDir()

		result, err := engine.BatchRecommend(context.Background(), nil, []string{"src"}, BatchOpts{
			Format:    "csv",
			OutputDir: dir,
			RateLimit: 100,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Results) != 1 || len(result.Results[0].Files) != 2 {
			t.Fatalf("expected two files, got %+v", result.Results)
		}
		for _, f := range result.Results[0].Files {
			th.AssertFileExists(t, f)
		}
	})

	t.Run("cancelled batch", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.BatchRecommend(ctx, nil, []string{"src"}, BatchOpts{OutputDir: dir})
		if err == nil {
			t.Error("expected cancellation error")
		}
	})

	t.Run("unwritable output directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := engine.BatchRecommend(context.Background(), nil, []string{"src"}, BatchOpts{OutputDir: filepath.Join(file, "out")})
		if err == nil {
			t.Error("expected directory creation error")
		}
	})
}
