package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/desertthunder/echoes/internal/formatter"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/desertthunder/echoes/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ParseTrackID accepts a bare id, a spotify:track: URI, or an open.spotify.com track URL.
func ParseTrackID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	if id, ok := strings.CutPrefix(s, "spotify:track:"); ok {
		s = id
	} else if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 || parts[len(parts)-2] != "track" {
			return "", fmt.Errorf("%w: %s is not a track URL", shared.ErrInvalidArgument, s)
		}
		s = parts[len(parts)-1]
	}

	if s == "" || strings.ContainsAny(s, ":/?# ") {
		return "", fmt.Errorf("%w: invalid track id %q", shared.ErrInvalidArgument, s)
	}
	return s, nil
}

// weightsFrom returns the weight override when any weight flag is set.
func weightsFrom(cmd *cli.Command) *models.WeightSet {
	if !cmd.IsSet("lyrics") && !cmd.IsSet("audio") && !cmd.IsSet("spotify") {
		return nil
	}
	return &models.WeightSet{
		Lyrics:  cmd.Float("lyrics"),
		Audio:   cmd.Float("audio"),
		Spotify: cmd.Float("spotify"),
	}
}

// Search looks up tracks by free text.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	engine, err := r.pipeline()
	if err != nil {
		return err
	}

	tracks, err := engine.Search(ctx, query, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.RenderTracks(tracks))
}

// Recommend ranks tracks similar to the given one and prints or exports the result.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	trackID, err := ParseTrackID(cmd.StringArg("track"))
	if err != nil {
		return err
	}

	engine, err := r.pipeline()
	if err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	progress, stop := r.track(useJSON)
	rec, err := engine.Recommend(ctx, tasks.RecommendRequest{
		TrackID: trackID,
		Weights: weightsFrom(cmd),
		Limit:   cmd.Int("limit"),
	}, progress)
	stop()
	if err != nil {
		return err
	}

	if format := cmd.String("format"); format != "" {
		files, err := tasks.ExportRecommendation(rec, format, cmd.String("output"), cmd.Bool("covers"))
		if err != nil {
			return err
		}
		for _, f := range files {
			r.writePlain("✓ %s\n", f)
		}
		return nil
	}

	if useJSON {
		return r.writeJSON(rec, cmd.Bool("pretty"))
	}
	return r.writePlainln("%s", formatter.RenderRecommendation(rec))
}

// Analyze shows how candidates would be acquired for a track without scoring them.
func (r *Runner) Analyze(ctx context.Context, cmd *cli.Command) error {
	trackID, err := ParseTrackID(cmd.StringArg("track"))
	if err != nil {
		return err
	}

	engine, err := r.pipeline()
	if err != nil {
		return err
	}

	useJSON := cmd.Bool("json")
	progress, stop := r.track(useJSON)
	analysis, tracks, err := engine.Analyze(ctx, trackID, progress)
	stop()
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(map[string]any{"analysis": analysis, "similarTracks": tracks}, cmd.Bool("pretty"))
	}
	r.writePlainln("%s", formatter.RenderAnalysis(*analysis))
	return r.writePlain("%s", formatter.RenderTracks(tracks))
}

// Batch recommends for every track given as an argument or listed in --file.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	inputs := cmd.Args().Slice()
	if path := cmd.String("file"); path != "" {
		lines, err := readTrackList(path)
		if err != nil {
			return err
		}
		inputs = append(inputs, lines...)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: provide track ids or --file", shared.ErrMissingArgument)
	}

	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		id, err := ParseTrackID(in)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	engine, err := r.pipeline()
	if err != nil {
		return err
	}

	r.writePlain("Recommending for %d tracks...\n", len(ids))
	progress, stop := r.track(false)
	result, err := engine.BatchRecommend(ctx, progress, ids, tasks.BatchOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		Limit:      cmd.Int("limit"),
		Weights:    weightsFrom(cmd),
		WithCovers: cmd.Bool("covers"),
	})
	stop()
	if err != nil {
		return err
	}

	r.writePlain("\n═══════════════════════════════════════\n")
	r.writePlain("Batch Complete!\n")
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("Successful: %d/%d\n", result.Successful, result.TotalTracks)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.Failed > 0 {
		r.writePlain("\nFailed %d tracks:\n", result.Failed)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  %s\n", formatter.RenderError(fmt.Errorf("%s: %w", res.TrackID, res.Error)))
			}
		}
	}
	return nil
}

// readTrackList reads one entry per line, skipping blanks and # comments.
func readTrackList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track list: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read track list: %w", err)
	}
	return lines, nil
}
