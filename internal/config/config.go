package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Store   StoreConfig             `yaml:"store"`
	Sources map[string]SourceConfig `yaml:"sources"`
	Quality QualityConfig           `yaml:"quality"`
	Jobs    JobsConfig              `yaml:"jobs"`
	TMDB    TMDBConfig              `yaml:"tmdb"`
}

type StoreConfig struct {
	URL string `yaml:"url"`
}

// SourceConfig holds the politeness settings for one external source.
// RPS is the request-per-second ceiling, TTL the response cache lifetime.
type SourceConfig struct {
	URL     string        `yaml:"url"`
	RPS     float64       `yaml:"rps"`
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

type QualityConfig struct {
	Bands map[string]SizeBand `yaml:"bands"`
}

// SizeBand is the plausible byte range for one quality tier, in GiB.
// A torrent is accepted only when its size is strictly inside the band.
type SizeBand struct {
	MinGiB float64 `yaml:"min_gib"`
	MaxGiB float64 `yaml:"max_gib"`
}

type JobsConfig struct {
	Timezone     string            `yaml:"timezone"`
	ItemDelay    time.Duration     `yaml:"item_delay"`
	Schedules    map[string]string `yaml:"schedules"`
	Healthchecks map[string]string `yaml:"healthchecks"`
}

type TMDBConfig struct {
	APIKey string `yaml:"api_key"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional; real deployments pass secrets via the environment
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if key := os.Getenv("TMDB_API_KEY"); key != "" {
		cfg.TMDB.APIKey = key
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Store.URL = url
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	if c.TMDB.APIKey == "" {
		return fmt.Errorf("tmdb.api_key is required")
	}
	if c.Jobs.Timezone == "" {
		c.Jobs.Timezone = "Asia/Almaty"
	}
	if c.Jobs.ItemDelay == 0 {
		c.Jobs.ItemDelay = 4 * time.Second
	}
	for name, src := range c.Sources {
		if src.URL == "" {
			return fmt.Errorf("sources.%s.url is required", name)
		}
	}
	return nil
}

// defaultURLs lets a config file omit the source blocks entirely and still
// reach the public endpoints.
var defaultURLs = map[string]string{
	"tmdb":       "https://api.themoviedb.org/3",
	"kinopoisk":  "https://ma.kinopoisk.ru/ios/5.0.0",
	"imdb":       "https://www.imdb.com",
	"yts":        "https://yts.mx/api/v2",
	"tpb":        "https://apibay.org",
	"torrentino": "https://www.torrentino.me",
}

// Source returns the settings for a named source, with defaults applied so a
// missing config block degrades to a conservative crawl rate.
func (c *Config) Source(name string) SourceConfig {
	src, ok := c.Sources[name]
	if !ok {
		src = SourceConfig{}
	}
	if src.URL == "" {
		src.URL = defaultURLs[name]
	}
	if src.RPS == 0 {
		src.RPS = 0.5
	}
	if src.TTL == 0 {
		src.TTL = 5 * time.Minute
	}
	if src.Timeout == 0 {
		src.Timeout = 30 * time.Second
	}
	return src
}
