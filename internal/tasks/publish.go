package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
)

const (
	DefaultPlaylistName = "Echoes Playlist"
	playlistDescription = "Created with Echoes - Emotion-level song discovery"
	trackURIPrefix      = "spotify:track:"

	// addTracksBatch is the provider's per-request limit for adding tracks.
	addTracksBatch = 100
)

// PublishRequest selects the tracks for a new playlist. The source track is placed first.
type PublishRequest struct {
	SourceTrackID string
	TrackIDs      []string
	Name          string
}

// Publisher turns a selection of recommendations into a private playlist.
type Publisher struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewPublisher creates a publisher over catalog.
func NewPublisher(catalog services.Catalog, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Publisher{catalog: catalog, logger: shared.WithLogger(logger, "component", "publisher")}
}

// TrackURIs converts ids to catalog URIs, dropping blanks and repeats.
func TrackURIs(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	uris := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uris = append(uris, trackURIPrefix+id)
	}
	return uris
}

// Publish creates the playlist for the current user and adds the tracks in chunks of 100.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	if strings.TrimSpace(req.SourceTrackID) == "" {
		return nil, fmt.Errorf("%w: source track id is required", shared.ErrInvalidInput)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultPlaylistName
	}

	userID, err := p.catalog.CurrentUserID(ctx)
	if err != nil {
		return nil, p.wrap("failed to fetch current user", err)
	}

	sendProgress(progress, createPlaylistUpdate(name))
	playlist, err := p.catalog.CreatePlaylist(ctx, userID, services.NewPlaylist{
		Name:        name,
		Description: playlistDescription,
		Public:      false,
	})
	if err != nil {
		return nil, p.wrap("failed to create playlist", err)
	}

	uris := TrackURIs(append([]string{req.SourceTrackID}, req.TrackIDs...)...)
	chunks := (len(uris) + addTracksBatch - 1) / addTracksBatch

	for i := 0; i < len(uris); i += addTracksBatch {
		end := min(i+addTracksBatch, len(uris))
		sendProgress(progress, addTracksUpdate(i/addTracksBatch+1, chunks, end-i))

		if err := p.catalog.AddTracks(ctx, playlist.ID, uris[i:end]); err != nil {
			return nil, p.wrap(fmt.Sprintf("failed to add tracks to playlist %s", playlist.ID), err)
		}
	}

	playlist.TrackCount = len(uris)
	p.logger.Info("playlist created", "playlist", playlist.ID, "tracks", playlist.TrackCount)
	return playlist, nil
}

func (p *Publisher) wrap(msg string, err error) error {
	if shared.IsCancellation(err) {
		return shared.Cancelled(err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
