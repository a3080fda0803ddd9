package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/repositories"
	"github.com/desertthunder/echoes/internal/services"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/desertthunder/echoes/internal/tasks"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Cache namespaces in the cache_entries table.
const (
	lyricsNamespace     = "lyrics"
	embeddingsNamespace = "embeddings"
	featuresNamespace   = "features"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The recommendation engine and database are built on first use so setup commands work without credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	credentials *services.CredentialManager
	catalog     services.Catalog
	publisher   *tasks.Publisher
	lyrics      services.LyricsProvider
	embedder    services.Embedder

	mu     sync.Mutex
	db     *sql.DB
	engine *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	// Lyrics and Embedder replace the configured providers when set.
	Lyrics   services.LyricsProvider
	Embedder services.Embedder
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		lyrics:     opts.Lyrics,
		embedder:   opts.Embedder,
	}

	spotify := opts.Config.Credentials.Spotify
	catalog := opts.Config.Catalog

	conf := services.OAuthConfig(spotify.ClientID, spotify.ClientSecret, spotify.RedirectURI, catalog.AuthURL, catalog.TokenURL)
	r.credentials = services.NewCredentialManager(conf, services.CredentialOpts{
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
		Credential: models.Credential{
			AccessToken:  spotify.AccessToken,
			RefreshToken: spotify.RefreshToken,
			ExpiresAt:    spotify.ExpiresAt,
		},
	})
	r.credentials.OnRefresh(func(c models.Credential) {
		if err := r.saveTokens(services.Token(c)); err != nil {
			r.logger.Warn("failed to persist spotify session", "error", err)
		}
	})

	r.catalog = services.NewSpotifyService(r.credentials, services.SpotifyOpts{
		BaseURL:           catalog.BaseURL,
		RequestsPerSecond: catalog.RequestsPerSecond,
		Burst:             catalog.Burst,
		Timeout:           seconds(catalog.TimeoutSeconds),
		Logger:            opts.Logger,
	})
	r.publisher = tasks.NewPublisher(r.catalog, opts.Logger)

	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, recommendCommand, analyzeCommand, batchCommand,
		playlistCommand, cacheCommand, historyCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases the database if a command opened it.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// database opens and migrates the configured database once.
func (r *Runner) database() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	r.logger.Debug("opening database", "path", r.config.Database.Path)
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// pipeline builds the recommendation engine on first use.
func (r *Runner) pipeline() (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	cfg := r.config
	opts := tasks.EngineOpts{
		Tokens:       r.credentials,
		Catalog:      r.catalog,
		Lyrics:       r.lyricsProvider(),
		Embedder:     r.embeddingProvider(),
		CacheTTL:     cfg.Cache.TTL(),
		Logger:       r.logger,
		MinResults:   cfg.Engine.MinResults,
		DefaultLimit: cfg.Engine.DefaultLimit,
		PoolSize:     cfg.Catalog.PoolSize,
		Market:       cfg.Catalog.Market,
		Weights: models.WeightSet{
			Lyrics:  cfg.Engine.Weights.Lyrics,
			Audio:   cfg.Engine.Weights.Audio,
			Spotify: cfg.Engine.Weights.Spotify,
		},
	}

	switch cfg.Cache.Backend {
	case "", "memory":
	case "sqlite":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		opts.LyricsCache = repositories.NewCacheStore[string](db, lyricsNamespace)
		opts.EmbeddingCache = repositories.NewCacheStore[models.EmbeddingVector](db, embeddingsNamespace)
		opts.FeatureCache = repositories.NewCacheStore[models.AudioFeatures](db, featuresNamespace)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", shared.ErrInvalidConfig, cfg.Cache.Backend)
	}

	if cfg.Engine.RecordHistory {
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		opts.Recorder = repositories.NewRecommendationLogAdapter(repositories.NewRecommendationLogRepository(db), r.logger)
	}

	r.engine = tasks.NewEngine(opts)
	return r.engine, nil
}

// lyricsProvider returns the configured provider, or nil (lyrics signal off) when it cannot be built.
func (r *Runner) lyricsProvider() services.LyricsProvider {
	if r.lyrics != nil {
		return r.lyrics
	}

	cfg := r.config.Lyrics
	baseURL := cfg.LRCLibURL
	if cfg.Provider == "genius" {
		baseURL = cfg.GeniusURL
	}

	provider, err := services.NewLyricsProvider(cfg.Provider, services.LyricsOpts{
		BaseURL:     baseURL,
		AccessToken: r.config.Credentials.Genius.AccessToken,
		Timeout:     seconds(cfg.TimeoutSeconds),
		Logger:      r.logger,
	})
	if err != nil {
		r.logger.Warn("lyrics provider unavailable, lyric similarity disabled", "provider", cfg.Provider, "error", err)
		return nil
	}
	r.lyrics = provider
	return provider
}

// embeddingProvider returns the embedding client, or nil when no API key is configured.
func (r *Runner) embeddingProvider() services.Embedder {
	if r.embedder != nil {
		return r.embedder
	}

	key := r.config.Credentials.Embeddings.APIKey
	if key == "" {
		r.logger.Warn("embeddings api_key not set, lyric similarity disabled")
		return nil
	}

	cfg := r.config.Embeddings
	r.embedder = services.NewOpenAIEmbedder(services.EmbeddingOpts{
		BaseURL: cfg.BaseURL,
		APIKey:  key,
		Model:   cfg.Model,
		Timeout: seconds(cfg.TimeoutSeconds),
		Logger:  r.logger,
	})
	return r.embedder
}

// saveTokens copies token into the Spotify credentials and writes the config file when one is known.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrInvalidArgument)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}
	return shared.SaveConfig(r.configPath, r.config)
}

// track prints progress updates until the returned stop func is called. Quiet runs get a nil channel.
func (r *Runner) track(quiet bool) (chan<- tasks.ProgressUpdate, func()) {
	if quiet {
		return nil, func() {}
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ScoreCandidates, tasks.AddTracks:
				r.writePlain("   %s\n", update.Message)
			default:
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()

	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
