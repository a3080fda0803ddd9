package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/echoes/internal/formatter"
	"github.com/desertthunder/echoes/internal/models"
	"golang.org/x/time/rate"
)

// BatchOpts contains configuration for batch recommendations.
type BatchOpts struct {
	Format     string            // Output format: json, csv, markdown, txt
	OutputDir  string            // Base output directory (default: echoes_batch_{epoch})
	NumWorkers int               // Concurrent workers (default: 3, max: 10)
	RateLimit  float64           // Recommendations started per second (default: 1)
	Limit      int               // Results per track
	Weights    *models.WeightSet // Optional weight override
	WithCovers bool              // Download album art for markdown output
}

type batchJob struct {
	step    int
	trackID string
}

// BatchRecommend runs Recommend for every track id with a bounded worker pool and writes one export per track.
//
// Individual failures are recorded in the result and the manifest. The batch only fails as a whole when the
// output directory or manifest cannot be written.
func (e *Engine) BatchRecommend(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BatchOpts) (*formatter.BatchResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("echoes_batch_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &formatter.BatchResult{
		TotalTracks:     len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.TrackBatchResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan batchJob, len(ids))
	results := make(chan formatter.TrackBatchResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.batchWorker(ctx, &wg, jobs, results, prog, len(ids), opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- batchJob{step: i + 1, trackID: id}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		name := res.TrackTitle
		if name == "" {
			name = res.TrackID
		}

		if res.Success {
			result.Successful++
			sendProgress(prog, batchCompletedUpdate(completed, len(ids), name, len(res.Files)))
		} else {
			result.Failed++
			sendProgress(prog, batchFailedUpdate(completed, len(ids), name, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "batch_manifest.json")
	if err := formatter.WriteBatchManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("batch completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// batchWorker recommends and exports tracks from the jobs channel.
func (e *Engine) batchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan batchJob,
	results chan<- formatter.TrackBatchResult,
	prog chan<- ProgressUpdate,
	total int,
	opts BatchOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sendProgress(prog, batchStartedUpdate(job.step, total, job.trackID))
		results <- e.recommendAndExport(ctx, job.trackID, opts)
	}
}

func (e *Engine) recommendAndExport(ctx context.Context, trackID string, opts BatchOpts) formatter.TrackBatchResult {
	result := formatter.TrackBatchResult{TrackID: trackID, Files: []string{}}

	rec, err := e.Recommend(ctx, RecommendRequest{TrackID: trackID, Weights: opts.Weights, Limit: opts.Limit}, nil)
	if err != nil {
		result.Error = err
		return result
	}
	result.TrackTitle = rec.SourceTrack.Title

	files, err := ExportRecommendation(rec, opts.Format, opts.OutputDir, opts.WithCovers)
	if err != nil {
		result.Error = err
		return result
	}

	result.Files = files
	result.Success = true
	return result
}

// ExportRecommendation writes rec into dir in the given format and returns the created files.
func ExportRecommendation(rec *models.Recommendation, format, dir string, withCover bool) ([]string, error) {
	switch format {
	case "csv":
		csvRes, err := formatter.WriteCSVExport(rec, filepath.Join(dir, rec.SourceTrackID))
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{csvRes.TracksFile, csvRes.MetadataFile}, nil

	case "markdown":
		var imageURL string
		if withCover {
			imageURL = rec.SourceTrack.AlbumArtURL
		}
		mdRes, err := formatter.WriteMarkdownExport(rec, filepath.Join(dir, rec.SourceTrackID), imageURL)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return mdRes.Files, nil

	case "txt":
		path, err := formatter.WriteTextExport(rec, filepath.Join(dir, fmt.Sprintf("%s_recommendations.txt", rec.SourceTrackID)))
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{path}, nil

	case "json":
		fallthrough
	default:
		path, err := formatter.WriteJSONExport(rec, filepath.Join(dir, fmt.Sprintf("%s.json", rec.SourceTrackID)))
		if err != nil {
			return nil, fmt.Errorf("JSON export failed: %w", err)
		}
		return []string{path}, nil
	}
}
