package formatter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
	th "github.com/desertthunder/echoes/internal/testing"
	"github.com/goccy/go-json"
)

func sampleRecommendation() *models.Recommendation {
	source := models.Track{ID: "src", Title: "Holocene", Artists: []string{"Bon Iver"}}
	return &models.Recommendation{
		SourceTrack:      source,
		SourceTrackID:    "src",
		Weights:          models.DefaultWeights,
		EffectiveWeights: models.WeightSet{Audio: 0.35, Spotify: 0.15},
		Recommendations: []models.ScoredCandidate{
			{
				Track:     models.Track{ID: "t1", Title: "Re: Stacks", Artists: []string{"Bon Iver"}, Album: "For Emma", ExternalURL: "https://open.spotify.com/track/t1"},
				Score:     0.123456,
				Breakdown: models.Breakdown{Spotify: 0.123456},
			},
			{
				Track: models.Track{ID: "t2", Title: "Flume, Reprise", Artists: []string{"A", "B"}, Album: "Other"},
				Score: 0.05,
			},
		},
		Analysis: models.Analysis{
			Method:       "seed_track_artist",
			Degradations: []string{models.DegradedNoLyrics},
			Note:         "degraded: no lyrics",
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleRecommendation())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("failed to parse CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(records))
		}

		header := strings.Join(records[0], ",")
		if header != "Rank,ID,Title,Artists,Album,Similarity,Lyrics,Spotify,Audio,URL" {
			t.Errorf("unexpected headers: %s", header)
		}

		row := records[1]
		if row[0] != "1" || row[1] != "t1" || row[5] != "0.1235" || row[7] != "0.1235" || row[9] != "https://open.spotify.com/track/t1" {
			t.Errorf("unexpected first row: %v", row)
		}
		if records[2][2] != "Flume, Reprise" || records[2][3] != "A, B" {
			t.Errorf("expected quoted title and joined artists, got %v", records[2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("without cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleRecommendation(), "")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}

			output := string(data)
			for _, want := range []string{
				"# Songs like Holocene",
				"**Method**: seed_track_artist",
				"**Note**: degraded: no lyrics",
				"**Weights**: lyrics 0.00, spotify 0.15, audio 0.35",
				"| 1 | [Re: Stacks](https://open.spotify.com/track/t1) | Bon Iver | 0.1235 |",
				"| 2 | Flume, Reprise | A, B | 0.0500 |",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
			if strings.Contains(output, "![Cover]") {
				t.Errorf("expected no cover image")
			}
		})

		t.Run("with cover image", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleRecommendation(), "cover.jpg")
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "![Cover](cover.jpg)") {
				t.Errorf("Markdown missing cover image")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleRecommendation())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Source: Bon Iver - Holocene",
			"Note: degraded: no lyrics",
			"Recommendations: 2",
			"1. Bon Iver - Re: Stacks (0.1235)",
			"2. A, B - Flume, Reprise (0.0500)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(sampleRecommendation())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		var m Metadata
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("invalid metadata JSON: %v", err)
		}
		if m.Count != 2 || m.SourceTrack.ID != "src" || m.Analysis.Method != "seed_track_artist" {
			t.Errorf("unexpected metadata %+v", m)
		}
		if strings.Contains(string(data), "Re: Stacks") {
			t.Errorf("metadata should not include recommendations")
		}
	})
}

func TestDownloadImage(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("fake image data"))
		}))
		defer server.Close()

		data, err := DownloadImage(server.URL)
		if err != nil {
			t.Fatalf("DownloadImage failed: %v", err)
		}
		if string(data) != "fake image data" {
			t.Errorf("expected fake image data, got %q", data)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		if _, err := DownloadImage(server.URL); err == nil {
			t.Error("expected error for 404 response")
		}
	})

	t.Run("EmptyURL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("expected error for empty URL")
		}
	})
}

func TestFileWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(sampleRecommendation(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != "src_recommendations.csv" || result.MetadataFile != "src_metadata.json" {
				t.Errorf("unexpected file names %+v", result)
			}
			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)

			if content := th.MustReadFile(t, result.TracksFile); !strings.Contains(content, "Re: Stacks") {
				t.Errorf("CSV file missing track")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom")

			result, err := WriteCSVExport(sampleRecommendation(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			th.AssertFileExists(t, base+"_recommendations.csv")
			th.AssertFileExists(t, result.MetadataFile)
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithDefaultDirectory", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteMarkdownExport(sampleRecommendation(), "", "")
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			th.AssertDirExists(t, result.Directory)
			readme := filepath.Join(result.Directory, "README.md")
			th.AssertFileExists(t, readme)
			if result.CoverImage != "" || len(result.Files) != 1 {
				t.Errorf("expected only README, got %+v", result)
			}
		})

		t.Run("WithCoverImage", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("jpeg"))
			}))
			defer server.Close()

			dir := filepath.Join(t.TempDir(), "out")
			result, err := WriteMarkdownExport(sampleRecommendation(), dir, server.URL)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			th.AssertFileExists(t, filepath.Join(dir, "cover.jpg"))
			if len(result.Files) != 2 {
				t.Errorf("expected cover and README, got %v", result.Files)
			}
			if content := th.MustReadFile(t, filepath.Join(dir, "README.md")); !strings.Contains(content, "![Cover](cover.jpg)") {
				t.Errorf("README missing cover reference")
			}
		})

		t.Run("WithFailedCoverDownload", func(t *testing.T) {
			server := httptest.NewServer(http.NotFoundHandler())
			defer server.Close()

			dir := filepath.Join(t.TempDir(), "out")
			result, err := WriteMarkdownExport(sampleRecommendation(), dir, server.URL)
			if err != nil {
				t.Fatalf("cover failure should not fail export: %v", err)
			}
			if result.CoverImage != "" {
				t.Errorf("expected no cover, got %s", result.CoverImage)
			}
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		path, err := WriteTextExport(sampleRecommendation(), "")
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if path != "src_recommendations.txt" {
			t.Errorf("unexpected path %s", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteJSONExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rec.json")

		if _, err := WriteJSONExport(sampleRecommendation(), path); err != nil {
			t.Fatalf("WriteJSONExport failed: %v", err)
		}

		var rec models.Recommendation
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &rec); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(rec.Recommendations) != 2 || rec.Recommendations[0].Score != 0.123456 {
			t.Errorf("unexpected round trip %+v", rec.Recommendations)
		}
	})
}

func TestWriteBatchManifest(t *testing.T) {
	t.Run("SuccessAndFailure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "batch_manifest.json")
		result := &BatchResult{
			TotalTracks: 3,
			Successful:  1,
			Failed:      2,
			Results: []TrackBatchResult{
				{TrackID: "a", TrackTitle: "Song A", Success: true, Files: []string{"a.json"}},
				{TrackID: "b", Error: fmt.Errorf("%w: no session", shared.ErrUnauthorized)},
				{TrackID: "c", Error: errors.New("disk full")},
			},
		}

		if err := WriteBatchManifest(result, "json", path); err != nil {
			t.Fatalf("WriteBatchManifest failed: %v", err)
		}

		var m struct {
			Format      string `json:"format"`
			TotalTracks int    `json:"total_tracks"`
			Failed      int    `json:"failed"`
			Tracks      []struct {
				TrackID string `json:"track_id"`
				Status  string `json:"status"`
				Error   string `json:"error"`
				Kind    string `json:"kind"`
			} `json:"tracks"`
		}
		if err := json.Unmarshal([]byte(th.MustReadFile(t, path)), &m); err != nil {
			t.Fatalf("invalid manifest: %v", err)
		}

		if m.Format != "json" || m.TotalTracks != 3 || m.Failed != 2 || len(m.Tracks) != 3 {
			t.Errorf("unexpected manifest %+v", m)
		}

		tests := []struct {
			status string
			kind   string
		}{
			{"success", ""},
			{"failed", "unauthorized"},
			{"failed", "internal"},
		}
		for i, tc := range tests {
			if m.Tracks[i].Status != tc.status || m.Tracks[i].Kind != tc.kind {
				t.Errorf("track %d: expected %s/%s, got %s/%s", i, tc.status, tc.kind, m.Tracks[i].Status, m.Tracks[i].Kind)
			}
		}
	})

	t.Run("NilResult", func(t *testing.T) {
		if err := WriteBatchManifest(nil, "json", filepath.Join(t.TempDir(), "m.json")); err == nil {
			t.Error("expected error for nil result")
		}
	})
}

func TestRender(t *testing.T) {
	t.Run("RenderRecommendation", func(t *testing.T) {
		out := RenderRecommendation(sampleRecommendation())
		for _, want := range []string{"Songs like Bon Iver - Holocene", "seed_track_artist", "degraded: no lyrics", "Re: Stacks"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("RenderRecommendation empty", func(t *testing.T) {
		rec := sampleRecommendation()
		rec.Recommendations = nil
		if out := RenderRecommendation(rec); !strings.Contains(out, "No recommendations") {
			t.Errorf("expected empty message, got %s", out)
		}
	})

	t.Run("RenderTracks", func(t *testing.T) {
		if out := RenderTracks(nil); !strings.Contains(out, "No tracks found") {
			t.Errorf("expected empty message, got %s", out)
		}
		out := RenderTracks([]models.Track{{ID: "t1", Title: "Song", Artists: []string{"Band"}}})
		if !strings.Contains(out, "Band - Song") || !strings.Contains(out, "t1") {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("RenderPlaylist", func(t *testing.T) {
		out := RenderPlaylist(&models.PlaylistResult{ID: "pl", URL: "https://example.com/pl", TrackCount: 4})
		if !strings.Contains(out, "(4 tracks)") || !strings.Contains(out, "https://example.com/pl") {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("RenderError", func(t *testing.T) {
		if out := RenderError(errors.New("boom")); !strings.Contains(out, "boom") {
			t.Errorf("unexpected output %s", out)
		}
	})
}
