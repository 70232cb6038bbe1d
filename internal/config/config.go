// Package config loads the application configuration and the user's
// preference document.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/alexanderramin/sortir/internal/api"
	"github.com/alexanderramin/sortir/internal/collector"
	"github.com/alexanderramin/sortir/internal/embedcache"
	"github.com/alexanderramin/sortir/internal/filter"
	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/alexanderramin/sortir/internal/logging"
	"github.com/alexanderramin/sortir/internal/ranking"
	"github.com/alexanderramin/sortir/internal/service"
	"github.com/alexanderramin/sortir/internal/weather"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is returned when the loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Log             logging.Config         `koanf:"log"`
	Timezone        string                 `koanf:"timezone" validate:"required"`
	DataDir         string                 `koanf:"data_dir" validate:"required"`
	DBPath          string                 `koanf:"db_path"`
	ReportPath      string                 `koanf:"report_path" validate:"required"`
	PreferencesPath string                 `koanf:"preferences_path" validate:"required"`
	Pipeline        service.PipelineConfig `koanf:"pipeline"`
	Ranking         RankingConfig          `koanf:"ranking"`
	Filters         filter.Keywords        `koanf:"filters"`
	Collector       collector.Config       `koanf:"collector"`
	Weather         weather.Config         `koanf:"weather"`
	LLM             llm.Config             `koanf:"llm"`
	Cache           embedcache.Config      `koanf:"cache"`
	Server          api.Config             `koanf:"server"`
}

// RankingConfig holds the blend weights and the embedded description length.
type RankingConfig struct {
	EmbWeight     float64 `koanf:"emb_weight" validate:"gte=0"`
	BoroughWeight float64 `koanf:"borough_weight" validate:"gte=0"`
	DescChars     int     `koanf:"desc_chars" validate:"gte=0"`
}

// Weights converts to the blender's coefficients.
func (r RankingConfig) Weights() ranking.Weights {
	return ranking.Weights{Embedding: r.EmbWeight, Borough: r.BoroughWeight}
}

// Default returns the built-in configuration.
func Default() Config {
	w := ranking.DefaultWeights()
	return Config{
		Log:             logging.Config{Level: "info", Format: "json"},
		Timezone:        "America/Toronto",
		DataDir:         "data",
		ReportPath:      "reports/weekly.md",
		PreferencesPath: "preferences.json",
		Pipeline:        service.DefaultPipelineConfig(),
		Ranking:         RankingConfig{EmbWeight: w.Embedding, BoroughWeight: w.Borough, DescChars: 300},
		Filters:         filter.DefaultKeywords(),
		Collector:       collector.DefaultConfig(),
		Weather:         weather.DefaultConfig(),
		LLM:             llm.DefaultConfig(),
		Cache:           embedcache.DefaultConfig(),
		Server:          api.DefaultConfig(),
	}
}

// Location loads the civil timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// ResolvedDBPath returns db_path, defaulting to sortir.db under data_dir.
func (c Config) ResolvedDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "sortir.db")
}

// ResolvedCacheDir returns cache.dir, relative paths resolved under data_dir.
// An empty dir keeps the cache in memory.
func (c Config) ResolvedCacheDir() string {
	if c.Cache.Dir == "" || filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(c.DataDir, c.Cache.Dir)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Ranking.EmbWeight+c.Ranking.BoroughWeight <= 0 {
		return fmt.Errorf("%w: ranking weights must not both be zero", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
