package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Credentials CredentialsConfig `toml:"credentials"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Lyrics      LyricsConfig      `toml:"lyrics"`
	Embeddings  EmbeddingsConfig  `toml:"embeddings"`
	Cache       CacheConfig       `toml:"cache"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Engine      EngineConfig      `toml:"engine"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify    SpotifyConfig  `toml:"spotify"`
	Genius     GeniusConfig   `toml:"genius"`
	Embeddings EmbeddingsAuth `toml:"embeddings"`
}

// SpotifyConfig contains Spotify API credentials and the persisted session tokens.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	ExpiresAt    int64  `toml:"expires_at"` // epoch milliseconds
}

// GeniusConfig contains the Genius API client token.
type GeniusConfig struct {
	AccessToken string `toml:"access_token"`
}

// EmbeddingsAuth contains the embedding provider API key.
type EmbeddingsAuth struct {
	APIKey string `toml:"api_key"`
}

// CatalogConfig contains Spotify Web API endpoints and pacing.
type CatalogConfig struct {
	BaseURL           string  `toml:"base_url"`
	AuthURL           string  `toml:"auth_url"`
	TokenURL          string  `toml:"token_url"`
	Market            string  `toml:"market"`
	PoolSize          int     `toml:"pool_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// LyricsConfig selects and configures the lyrics provider.
type LyricsConfig struct {
	Provider       string `toml:"provider"`
	LRCLibURL      string `toml:"lrclib_url"`
	GeniusURL      string `toml:"genius_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EmbeddingsConfig configures the OpenAI-compatible embedding endpoint.
type EmbeddingsConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CacheConfig selects the lyrics/embedding cache backend.
type CacheConfig struct {
	Backend  string `toml:"backend"`
	TTLHours int    `toml:"ttl_hours"`
}

// TTL returns the configured cache lifetime, defaulting to 24 hours.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                   string   `toml:"host"`
	Port                   int      `toml:"port"`
	RateLimitRequests      int      `toml:"rate_limit_requests"`
	RateLimitWindowSeconds int      `toml:"rate_limit_window_seconds"`
	AllowedOrigins         []string `toml:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EngineConfig tunes the recommendation pipeline.
type EngineConfig struct {
	MinResults    int           `toml:"min_results"`
	DefaultLimit  int           `toml:"default_limit"`
	RecordHistory bool          `toml:"record_history"`
	Weights       WeightsConfig `toml:"weights"`
}

// WeightsConfig holds the default raw signal weights.
type WeightsConfig struct {
	Lyrics  float64 `toml:"lyrics"`
	Audio   float64 `toml:"audio"`
	Spotify float64 `toml:"spotify"`
}

// Update copies an OAuth2 token into the persisted Spotify session.
//
// A token without a refresh token keeps the existing one, and a zero expiry is stored as one hour from now.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: token cannot be nil", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	if token.Expiry.IsZero() {
		s.ExpiresAt = time.Now().Add(time.Hour).UnixMilli()
	} else {
		s.ExpiresAt = token.Expiry.UnixMilli()
	}
	return nil
}

// HasSession reports whether any token material has been persisted.
func (s SpotifyConfig) HasSession() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path.
//
// The file holds session tokens, so it is written owner-only.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidArgument)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
