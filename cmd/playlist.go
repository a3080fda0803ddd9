package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/echoes/internal/formatter"
	"github.com/desertthunder/echoes/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistCreate publishes the source track and its recommendations as a private playlist.
//
// Without --tracks a recommendation is run first and its results are used.
func (r *Runner) PlaylistCreate(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := ParseTrackID(cmd.StringArg("track"))
	if err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	trackIDs := make([]string, 0, len(cmd.StringSlice("tracks")))
	for _, t := range cmd.StringSlice("tracks") {
		id, err := ParseTrackID(t)
		if err != nil {
			return err
		}
		trackIDs = append(trackIDs, id)
	}

	if len(trackIDs) == 0 {
		engine, err := r.pipeline()
		if err != nil {
			return err
		}

		progress, stop := r.track(useJSON)
		rec, err := engine.Recommend(ctx, tasks.RecommendRequest{TrackID: sourceID, Limit: cmd.Int("limit")}, progress)
		stop()
		if err != nil {
			return fmt.Errorf("failed to recommend tracks for playlist: %w", err)
		}
		for _, c := range rec.Recommendations {
			trackIDs = append(trackIDs, c.ID)
		}
	}

	progress, stop := r.track(useJSON)
	result, err := r.publisher.Publish(ctx, tasks.PublishRequest{
		SourceTrackID: sourceID,
		TrackIDs:      trackIDs,
		Name:          cmd.String("name"),
	}, progress)
	stop()
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}
	return r.writePlainln("%s", formatter.RenderPlaylist(result))
}
