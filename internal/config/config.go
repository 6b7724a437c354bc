package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Origin  OriginConfig  `yaml:"origin" toml:"origin"`
	Preview PreviewConfig `yaml:"preview" toml:"preview"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" toml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" toml:"port" envconfig:"PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	// PublicBaseURL is the externally visible base URL of this service. When
	// empty it is derived from each request's Host header.
	PublicBaseURL string `yaml:"public_base_url" toml:"public_base_url" envconfig:"PUBLIC_BASE_URL"`
}

// OriginConfig holds settings for the outbound calls to the Bluesky network.
type OriginConfig struct {
	// ServiceURL answers com.atproto.repo.getRecord for post lookups.
	ServiceURL string `yaml:"service_url" toml:"service_url" envconfig:"ORIGIN_SERVICE_URL"`
	// BlobURL answers com.atproto.sync.getBlob and redirects to the CDN.
	BlobURL             string        `yaml:"blob_url" toml:"blob_url" envconfig:"ORIGIN_BLOB_URL"`
	Timeout             time.Duration `yaml:"timeout" toml:"timeout" envconfig:"ORIGIN_TIMEOUT"`
	StreamHeaderTimeout time.Duration `yaml:"stream_header_timeout" toml:"stream_header_timeout" envconfig:"ORIGIN_STREAM_HEADER_TIMEOUT"`
	RetryAttempts       uint          `yaml:"retry_attempts" toml:"retry_attempts" envconfig:"ORIGIN_RETRY_ATTEMPTS"`
	RetryDelay          time.Duration `yaml:"retry_delay" toml:"retry_delay" envconfig:"ORIGIN_RETRY_DELAY"`
	InsecureSkipVerify  bool          `yaml:"insecure_skip_verify" toml:"insecure_skip_verify" envconfig:"ORIGIN_INSECURE_SKIP_VERIFY"`
	UserAgent           string        `yaml:"user_agent" toml:"user_agent" envconfig:"ORIGIN_USER_AGENT"`
}

// PreviewConfig controls the link-preview document.
type PreviewConfig struct {
	// SiteURL is the canonical Bluesky web app; fallbacks redirect here.
	SiteURL          string `yaml:"site_url" toml:"site_url" envconfig:"PREVIEW_SITE_URL"`
	ThumbnailBaseURL string `yaml:"thumbnail_base_url" toml:"thumbnail_base_url" envconfig:"PREVIEW_THUMBNAIL_BASE_URL"`
	TitlePrefix      string `yaml:"title_prefix" toml:"title_prefix" envconfig:"PREVIEW_TITLE_PREFIX"`
	Attribution      string `yaml:"attribution" toml:"attribution" envconfig:"PREVIEW_ATTRIBUTION"`
	ThemeColor       string `yaml:"theme_color" toml:"theme_color" envconfig:"PREVIEW_THEME_COLOR"`
	// ProxyStream points og:video at this server's /stream endpoint instead
	// of the CDN URL.
	ProxyStream bool `yaml:"proxy_stream" toml:"proxy_stream" envconfig:"PREVIEW_PROXY_STREAM"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" envconfig:"LOG_FORMAT"`
	// File enables a rotated log file in addition to stdout.
	File       string `yaml:"file" toml:"file" envconfig:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" envconfig:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" envconfig:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" envconfig:"LOG_MAX_AGE_DAYS"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // streams can run for as long as the client reads
		},
		Origin: OriginConfig{
			ServiceURL:          "https://bsky.social",
			BlobURL:             "https://public.api.bsky.social",
			Timeout:             10 * time.Second,
			StreamHeaderTimeout: 30 * time.Second,
			RetryAttempts:       2,
			RetryDelay:          250 * time.Millisecond,
			UserAgent:           "vidembed/1.0 (+https://github.com/iconidentify/vidembed)",
		},
		Preview: PreviewConfig{
			SiteURL:          "https://bsky.app",
			ThumbnailBaseURL: "https://video.cdn.bsky.app",
			TitlePrefix:      "vidembed | ",
			Attribution:      "Bluesky video via vidembed",
			ThemeColor:       "#0085ff",
			ProxyStream:      true,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads configuration from file and environment variables.
// Precedence is defaults, then the file, then the environment.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeFile(configPath, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func decodeFile(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.PublicBaseURL != "" {
		if err := validateBaseURL("PUBLIC_BASE_URL", c.Server.PublicBaseURL); err != nil {
			return err
		}
	}
	for name, v := range map[string]string{
		"ORIGIN_SERVICE_URL":         c.Origin.ServiceURL,
		"ORIGIN_BLOB_URL":            c.Origin.BlobURL,
		"PREVIEW_SITE_URL":           c.Preview.SiteURL,
		"PREVIEW_THUMBNAIL_BASE_URL": c.Preview.ThumbnailBaseURL,
	} {
		if err := validateBaseURL(name, v); err != nil {
			return err
		}
	}
	if c.Origin.Timeout <= 0 {
		return fmt.Errorf("ORIGIN_TIMEOUT must be positive")
	}
	if c.Origin.RetryAttempts == 0 {
		return fmt.Errorf("ORIGIN_RETRY_ATTEMPTS must be at least 1")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", name)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
