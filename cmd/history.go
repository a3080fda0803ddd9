package main

import (
	"context"
	"strings"
	"time"

	"github.com/desertthunder/echoes/internal/repositories"
	"github.com/urfave/cli/v3"
)

type historyEntry struct {
	ID           string    `json:"id"`
	Sequence     int       `json:"sequence"`
	SourceTrack  string    `json:"sourceTrackId"`
	Tracks       []string  `json:"recommendedTrackIds"`
	Method       string    `json:"method"`
	Degradations []string  `json:"degradations,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HistoryList prints recorded recommendations, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if !r.config.Engine.RecordHistory {
		r.logger.Warn("engine.record_history is off, new recommendations are not recorded")
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	logs, err := repositories.NewRecommendationLogRepository(db).List(map[string]any{
		"source_track_id": cmd.String("source"),
		"method":          cmd.String("method"),
		"limit":           cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, historyEntry{
			ID:           l.ID(),
			Sequence:     l.Sequence(),
			SourceTrack:  l.SourceTrackID,
			Tracks:       l.RecommendedTrackIDs,
			Method:       l.Method,
			Degradations: l.Degradations,
			CreatedAt:    l.CreatedAt(),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	if len(entries) == 0 {
		return r.writePlain("No recorded recommendations\n")
	}
	for _, e := range entries {
		r.writePlain("#%d %s  %s  %s  %d tracks", e.Sequence, e.CreatedAt.Local().Format(time.DateTime), e.SourceTrack, e.Method, len(e.Tracks))
		if len(e.Degradations) > 0 {
			r.writePlain("  (degraded: %s)", strings.Join(e.Degradations, ", "))
		}
		r.writePlain("\n")
	}
	return nil
}
