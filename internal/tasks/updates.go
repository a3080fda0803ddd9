package tasks

import (
	"fmt"

	"github.com/desertthunder/echoes/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	ResolveSignals
	AcquireCandidates
	ScoreCandidates
	Rank
	SearchTracks
	CreatePlaylist
	AddTracks
	BatchRecommend
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case ResolveSignals:
		return "resolve_signals"
	case AcquireCandidates:
		return "acquire_candidates"
	case ScoreCandidates:
		return "score_candidates"
	case Rank:
		return "rank"
	case SearchTracks:
		return "search_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case BatchRecommend:
		return "batch_recommend"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func fetchSourceUpdate(trackID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching source track %s...", trackID),
	}
}

func foundSourceUpdate(track *models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found: %s - %s", track.PrimaryArtist(), track.Title),
		Data:    track,
	}
}

func resolveSignalUpdate(step, total int, signal string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveSignals,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Resolving %s for source track...", signal),
	}
}

func signalDegradedUpdate(step, total int, signal string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveSignals,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s unavailable: %v", signal, err),
	}
}

func acquireCandidatesUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   AcquireCandidates,
		Step:    1,
		Total:   1,
		Message: "Fetching candidate tracks...",
	}
}

func acquiredCandidatesUpdate(acq Acquisition, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AcquireCandidates,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d candidates via %s", count, acq.Method),
		Data:    acq,
	}
}

func scoreCandidateUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScoreCandidates,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, track.PrimaryArtist(), track.Title),
	}
}

func rankUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Rank,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Ranked %d recommendations", count),
	}
}

func searchUpdate(query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching for %q...", query),
	}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func addTracksUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, count),
	}
}

func batchStartedUpdate(step, total int, trackID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchRecommend,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Recommending for %s...", step, total, trackID),
	}
}

func batchCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchRecommend,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func batchFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchRecommend,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
