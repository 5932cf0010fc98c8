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
	Credentials CredentialsConfig `toml:"credentials"`
	LLM         LLMConfig         `toml:"llm"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	Server      ServerConfig      `toml:"server"`
	Quota       QuotaConfig       `toml:"quota"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Assembler   AssemblerConfig   `toml:"assembler"`
	User        UserConfig        `toml:"user"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify   SpotifyConfig `toml:"spotify"`
	Anthropic APIKeyConfig  `toml:"anthropic"`
	Gemini    APIKeyConfig  `toml:"gemini"`
}

// SpotifyConfig contains Spotify API credentials and the most recent OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenExpiry  time.Time `toml:"token_expiry"`
}

// APIKeyConfig holds a single provider API key.
type APIKeyConfig struct {
	APIKey string `toml:"api_key"`
}

// LLMConfig selects and tunes the text-generation provider.
type LLMConfig struct {
	Provider       string  `toml:"provider"` // claude or gemini
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver"` // sqlite or postgres
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RedisConfig enables the Redis usage counter and search cache when URL is set.
type RedisConfig struct {
	URL                   string `toml:"url"`
	SearchCacheTTLSeconds int    `toml:"search_cache_ttl_seconds"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	JWTSecret             string `toml:"jwt_secret"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// QuotaConfig contains plan limits.
type QuotaConfig struct {
	FreeMonthlyLimit int `toml:"free_monthly_limit"`
}

// ResolverConfig bounds catalog search fan-out.
type ResolverConfig struct {
	Workers              int     `toml:"workers"`
	RateLimit            float64 `toml:"rate_limit"`
	SearchTimeoutSeconds int     `toml:"search_timeout_seconds"`
}

// AssemblerConfig contains playlist hosting settings.
type AssemblerConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxCoverBytes  int `toml:"max_cover_bytes"`
}

// UserConfig identifies the local account used by CLI commands.
type UserConfig struct {
	DefaultID string `toml:"default_id"`
}

// Map returns the credentials in the map form expected by the Spotify service constructor.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Update stores the token returned by an OAuth exchange.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// Token rebuilds the stored [oauth2.Token].
func (s SpotifyConfig) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Expiry:       s.TokenExpiry,
		TokenType:    "Bearer",
	}
}

func (c LLMConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, 60)
}

func (c ResolverConfig) SearchTimeout() time.Duration {
	return seconds(c.SearchTimeoutSeconds, 10)
}

func (c AssemblerConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, 15)
}

func (c ServerConfig) RequestTimeout() time.Duration {
	return seconds(c.RequestTimeoutSeconds, 120)
}

func (c RedisConfig) SearchCacheTTL() time.Duration {
	return seconds(c.SearchCacheTTLSeconds, 7*24*3600)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: database.driver must be sqlite or postgres, got %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required for postgres", ErrInvalidConfig)
	}
	switch c.LLM.Provider {
	case "", "claude", "gemini":
	default:
		return fmt.Errorf("%w: llm.provider must be claude or gemini, got %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.Quota.FreeMonthlyLimit < 0 {
		return fmt.Errorf("%w: quota.free_monthly_limit cannot be negative", ErrInvalidConfig)
	}
	if c.Resolver.Workers < 0 || c.Resolver.RateLimit < 0 {
		return fmt.Errorf("%w: resolver settings cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
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

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
