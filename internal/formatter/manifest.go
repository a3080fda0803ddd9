package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/echoes/internal/shared"
)

// TrackBatchResult is the outcome of one track in a batch run.
type TrackBatchResult struct {
	TrackID    string
	TrackTitle string
	Success    bool
	Files      []string
	Error      error
}

// BatchResult summarizes a batch recommendation run.
type BatchResult struct {
	TotalTracks     int
	Successful      int
	Failed          int
	Results         []TrackBatchResult
	OutputDirectory string
	ManifestPath    string
}

type manifestEntry struct {
	TrackID string   `json:"track_id"`
	Title   string   `json:"title,omitempty"`
	Status  string   `json:"status"`
	Files   []string `json:"files,omitempty"`
	Error   string   `json:"error,omitempty"`
	Kind    string   `json:"kind,omitempty"`
}

type manifest struct {
	GeneratedAt string          `json:"generated_at"`
	Format      string          `json:"format"`
	TotalTracks int             `json:"total_tracks"`
	Successful  int             `json:"successful"`
	Failed      int             `json:"failed"`
	Tracks      []manifestEntry `json:"tracks"`
}

// WriteBatchManifest writes a JSON summary of a batch run to path.
func WriteBatchManifest(result *BatchResult, format, path string) error {
	if result == nil {
		return fmt.Errorf("batch result is nil")
	}

	m := manifest{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Format:      format,
		TotalTracks: result.TotalTracks,
		Successful:  result.Successful,
		Failed:      result.Failed,
		Tracks:      make([]manifestEntry, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		entry := manifestEntry{TrackID: r.TrackID, Title: r.TrackTitle, Files: r.Files, Status: "success"}
		if !r.Success {
			entry.Status = "failed"
			if r.Error != nil {
				entry.Error = r.Error.Error()
				entry.Kind = string(shared.Kind(r.Error))
			}
		}
		m.Tracks = append(m.Tracks, entry)
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
