package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/desertthunder/echoes/internal/tasks"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 20

// Recommender is the engine surface served by [APIHandler].
type Recommender interface {
	Recommend(ctx context.Context, req tasks.RecommendRequest, progress chan<- tasks.ProgressUpdate) (*models.Recommendation, error)
	Analyze(ctx context.Context, trackID string, progress chan<- tasks.ProgressUpdate) (*models.Analysis, []models.Track, error)
	Search(ctx context.Context, query string, progress chan<- tasks.ProgressUpdate) ([]models.Track, error)
}

// PlaylistPublisher creates playlists from selected recommendations.
type PlaylistPublisher interface {
	Publish(ctx context.Context, req tasks.PublishRequest, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// requestValidator returns the shared validator, reporting fields by their JSON names.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

type weightsRequest struct {
	Lyrics  float64 `json:"lyrics" validate:"gte=0"`
	Audio   float64 `json:"audio" validate:"gte=0"`
	Spotify float64 `json:"spotify" validate:"gte=0"`
}

type recommendRequest struct {
	TrackID string          `json:"trackId" validate:"required"`
	Limit   int             `json:"limit" validate:"gte=0,lte=100"`
	Weights *weightsRequest `json:"weights"`
}

type analyzeRequest struct {
	TrackID string `json:"trackId" validate:"required"`
}

type playlistRequest struct {
	TrackID         string   `json:"trackId" validate:"required"`
	SimilarTrackIDs []string `json:"similarTrackIds" validate:"dive,required"`
	Name            string   `json:"name" validate:"omitempty,max=100"`
}

type searchResponse struct {
	Results []models.Track `json:"results"`
}

type analyzeResponse struct {
	SimilarTracks []models.Track  `json:"similarTracks"`
	Analysis      models.Analysis `json:"analysis"`
}

type playlistResponse struct {
	models.PlaylistResult
	Success bool `json:"success"`
}

// APIHandler serves the JSON API.
type APIHandler struct {
	engine    Recommender
	publisher PlaylistPublisher
	logger    *log.Logger
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(engine Recommender, publisher PlaylistPublisher, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &APIHandler{engine: engine, publisher: publisher, logger: shared.WithLogger(logger, "component", "api")}
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/api/search", "/api/recommend", "/api/track/analyze", "/api/playlist/create"}
}

// ServeHTTP dispatches on path and method.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/search" && r.Method == http.MethodGet:
		h.search(w, r)
	case r.URL.Path == "/api/recommend" && r.Method == http.MethodPost:
		h.recommend(w, r)
	case r.URL.Path == "/api/track/analyze" && r.Method == http.MethodPost:
		h.analyze(w, r)
	case r.URL.Path == "/api/playlist/create" && r.Method == http.MethodPost:
		h.createPlaylist(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed", Kind: "method_not_allowed"})
	}
}

func (h *APIHandler) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, h.logger, fmt.Errorf("%w: query parameter q is required", shared.ErrInvalidInput))
		return
	}

	tracks, err := h.engine.Search(r.Context(), q, nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: tracks})
}

func (h *APIHandler) recommend(w http.ResponseWriter, r *http.Request) {
	var body recommendRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	req := tasks.RecommendRequest{TrackID: body.TrackID, Limit: body.Limit}
	if body.Weights != nil {
		req.Weights = &models.WeightSet{Lyrics: body.Weights.Lyrics, Audio: body.Weights.Audio, Spotify: body.Weights.Spotify}
	}

	rec, err := h.engine.Recommend(r.Context(), req, nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *APIHandler) analyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	analysis, tracks, err := h.engine.Analyze(r.Context(), body.TrackID, nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{SimilarTracks: tracks, Analysis: *analysis})
}

func (h *APIHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var body playlistRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.publisher.Publish(r.Context(), tasks.PublishRequest{
		SourceTrackID: body.TrackID,
		TrackIDs:      body.SimilarTrackIDs,
		Name:          body.Name,
	}, nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{PlaylistResult: *result, Success: true})
}

// decode reads a size-limited JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", shared.ErrInvalidInput, err)
	}

	if err := requestValidator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", shared.ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
