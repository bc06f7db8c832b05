// Package config provides configuration management for incidentd.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tunables. Every observed deployment variant stays reachable by
// overriding these in the config file; none of them is baked into the
// algorithm.
const (
	DefaultPollInterval   = 15 * time.Second
	DefaultErrorBackoff   = 5 * time.Second
	DefaultMatchThreshold = 0.1
	DefaultSemanticWeight = 0.7
	DefaultEps            = 0.1
	DefaultMinClusterSize = 2
	DefaultAnchorK        = 10
	DefaultEmbeddingDim   = 1024
	DefaultKeywordLimit   = 10
)

// Config is the full incidentd configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Titles     TitlesConfig     `yaml:"titles"`
	Ops        OpsConfig        `yaml:"ops"`
}

// DatabaseConfig holds connection settings. Driver is "postgres" in
// production; "sqlite" is supported for local deployments and tests.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`
	MaxConns int    `yaml:"max_conns"`
}

// SchedulerConfig holds polling loop settings.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
}

// ClusteringConfig holds the matching and clustering tunables.
type ClusteringConfig struct {
	MatchThreshold float64 `yaml:"match_threshold"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	Eps            float64 `yaml:"eps"`
	MinClusterSize int     `yaml:"min_cluster_size"`
	AnchorK        int     `yaml:"anchor_k"`
	EmbeddingDim   int     `yaml:"embedding_dim"`
	KeywordMinLen  int     `yaml:"keyword_min_len"`
	KeywordLimit   int     `yaml:"keyword_limit"`
	HangulOnly     bool    `yaml:"hangul_only"`
}

// TitlesConfig holds title derivation settings.
type TitlesConfig struct {
	MinLen      int      `yaml:"min_len"`
	MaxLen      int      `yaml:"max_len"`
	Suffix      string   `yaml:"suffix"`
	Placeholder string   `yaml:"placeholder"`
	StopWords   []string `yaml:"stop_words"`
}

// OpsConfig holds the optional operational HTTP endpoint settings. The
// server is disabled when Listen is empty.
type OpsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			User:     "incidentd",
			DBName:   "complaints",
			SSLMode:  "disable",
			MaxConns: 4,
		},
		Scheduler: SchedulerConfig{
			PollInterval: DefaultPollInterval,
			ErrorBackoff: DefaultErrorBackoff,
		},
		Clustering: ClusteringConfig{
			MatchThreshold: DefaultMatchThreshold,
			SemanticWeight: DefaultSemanticWeight,
			Eps:            DefaultEps,
			MinClusterSize: DefaultMinClusterSize,
			AnchorK:        DefaultAnchorK,
			EmbeddingDim:   DefaultEmbeddingDim,
			KeywordMinLen:  2,
			KeywordLimit:   DefaultKeywordLimit,
		},
		Titles: TitlesConfig{
			MinLen:      4,
			MaxLen:      50,
			Suffix:      "complaints",
			Placeholder: "Mixed complaints",
			StopWords:   []string{"complaint", "complaints", "request", "inquiry", "report", "general"},
		},
	}
}

// Load reads the config file at path on top of the defaults and validates
// the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration. A failed validation is fatal at
// startup; the process must not begin polling with a broken config.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("postgres driver requires host, user, and dbname")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite driver requires path")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Scheduler.ErrorBackoff <= 0 {
		return fmt.Errorf("error_backoff must be positive")
	}

	cl := c.Clustering
	if cl.MatchThreshold <= 0 {
		return fmt.Errorf("match_threshold must be positive")
	}
	if cl.SemanticWeight <= 0 || cl.SemanticWeight >= 1 {
		return fmt.Errorf("semantic_weight must be in (0, 1)")
	}
	if cl.Eps <= 0 {
		return fmt.Errorf("eps must be positive")
	}
	if cl.MinClusterSize < 1 {
		return fmt.Errorf("min_cluster_size must be at least 1")
	}
	if cl.AnchorK < 1 {
		return fmt.Errorf("anchor_k must be at least 1")
	}
	if cl.EmbeddingDim < 1 {
		return fmt.Errorf("embedding_dim must be at least 1")
	}

	if c.Titles.MinLen < 1 || c.Titles.MaxLen <= c.Titles.MinLen {
		return fmt.Errorf("title length bounds must satisfy 1 <= min_len < max_len")
	}
	return nil
}
