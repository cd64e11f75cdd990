package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is read from the working directory when --config is not given.
	DefaultConfigFile = "upksearch.yaml"

	// EnvPrefix prefixes every environment override, e.g. UPKSEARCH_EMBEDDINGS_MODEL.
	EnvPrefix = "UPKSEARCH"
)

// Config validation errors
var (
	ErrEmptyCatalogPath   = errors.New("catalog_path cannot be empty")
	ErrEmptyIndexPrefix   = errors.New("index_prefix cannot be empty")
	ErrInvalidOverfetch   = errors.New("search.overfetch must be positive")
	ErrInvalidTopK        = errors.New("search.default_top_k must be positive")
	ErrInvalidMinScore    = errors.New("search.min_score must be within [-1, 1]")
	ErrInvalidBatchSize   = errors.New("embeddings.batch_size must be positive")
	ErrInvalidConcurrency = errors.New("embeddings.concurrency must be positive")
	ErrInvalidLogFormat   = errors.New("log.format must be 'json' or 'console'")
	ErrInvalidLogLevel    = errors.New("log.level must be debug, info, warn, or error")
	ErrNoAllowedTypes     = errors.New("ingest.allowed_types cannot be empty")
)

// Embeddings configures the embedding model provider.
type Embeddings struct {
	Provider    string        `yaml:"provider" split_words:"true"`
	Model       string        `yaml:"model" split_words:"true"`
	APIKey      string        `yaml:"api_key,omitempty" split_words:"true"`
	BaseURL     string        `yaml:"base_url" split_words:"true"`
	BatchSize   int           `yaml:"batch_size" split_words:"true"`
	Concurrency int           `yaml:"concurrency" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
}

// Search holds retrieval defaults.
type Search struct {
	Overfetch   int     `yaml:"overfetch" split_words:"true"`
	DefaultTopK int     `yaml:"default_top_k" split_words:"true"`
	MinScore    float64 `yaml:"min_score" split_words:"true"`
}

// Ingest configures the external package lister.
type Ingest struct {
	DecompilerPath string        `yaml:"decompiler_path" split_words:"true"`
	GameDataPath   string        `yaml:"game_data_path" split_words:"true"`
	Encoding       string        `yaml:"encoding" split_words:"true"`
	AllowedTypes   []string      `yaml:"allowed_types" split_words:"true"`
	Timeout        time.Duration `yaml:"timeout" split_words:"true"`
}

// Server configures the HTTP query endpoint.
type Server struct {
	Addr            string        `yaml:"addr" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// Log configures structured logging.
type Log struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"`
}

// Config is the in-memory representation of upksearch.yaml after .env and
// environment overrides have been applied.
type Config struct {
	CatalogPath string     `yaml:"catalog_path" split_words:"true"`
	IndexPrefix string     `yaml:"index_prefix" split_words:"true"`
	Embeddings  Embeddings `yaml:"embeddings" split_words:"true"`
	Search      Search     `yaml:"search" split_words:"true"`
	Ingest      Ingest     `yaml:"ingest" split_words:"true"`
	Server      Server     `yaml:"server" split_words:"true"`
	Log         Log        `yaml:"log" split_words:"true"`

	// Path is the file the config was read from; empty when defaults were used.
	Path string `yaml:"-" ignored:"true"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		CatalogPath: "game_assets.db",
		IndexPrefix: filepath.Join("index", "assets"),
		Embeddings: Embeddings{
			Provider:    "ollama",
			Model:       "paraphrase-multilingual",
			BaseURL:     "http://localhost:11434",
			BatchSize:   32,
			Concurrency: 2,
			Timeout:     60 * time.Second,
		},
		Search: Search{
			Overfetch:   100,
			DefaultTopK: 10,
			MinScore:    0.30,
		},
		Ingest: Ingest{
			DecompilerPath: "umodel",
			Encoding:       "utf-8",
			AllowedTypes:   []string{"StaticMesh", "Material", "MaterialInstanceConstant", "Texture2D"},
			Timeout:        2 * time.Minute,
		},
		Server: Server{
			Addr:            "127.0.0.1:8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// Load resolves the effective configuration: defaults, then the YAML file at
// path (DefaultConfigFile when path is empty, where a missing file is not an
// error), then a .env file next to it, then UPKSEARCH_* environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
		cfg.Path = path
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	if err := ApplyDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("invalid %s_* environment override: %w", EnvPrefix, err)
	}

	for _, p := range []*string{&cfg.CatalogPath, &cfg.IndexPrefix, &cfg.Ingest.DecompilerPath, &cfg.Ingest.GameDataPath} {
		if *p, err = ExpandPath(*p); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns the first invalid setting found.
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return ErrEmptyCatalogPath
	}
	if c.IndexPrefix == "" {
		return ErrEmptyIndexPrefix
	}
	if c.Search.Overfetch <= 0 {
		return ErrInvalidOverfetch
	}
	if c.Search.DefaultTopK <= 0 {
		return ErrInvalidTopK
	}
	if c.Search.MinScore < -1 || c.Search.MinScore > 1 {
		return ErrInvalidMinScore
	}
	if c.Embeddings.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Embeddings.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if len(c.Ingest.AllowedTypes) == 0 {
		return ErrNoAllowedTypes
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return ErrInvalidLogFormat
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// Save marshals cfg and writes it to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
