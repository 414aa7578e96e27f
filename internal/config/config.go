package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/TimbreMatch/pkg/logger"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/equalizer"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// TIMBRE_DATABASE_PATH or TIMBRE_SIMILARITY_WORKERS.
const EnvPrefix = "TIMBRE"

// Config represents the application configuration
type Config struct {
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`
	TempDir      string `mapstructure:"temp_dir"`

	Database   DatabaseConfig   `mapstructure:"database"`
	Analysis   features.Params  `mapstructure:"analysis"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Equalizer  EqualizerConfig  `mapstructure:"equalizer"`
	Server     ServerConfig     `mapstructure:"server"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// PersistFeatures stores summary vectors next to the track table.
	PersistFeatures bool `mapstructure:"persist_features"`
}

// SimilarityConfig contains scoring settings
type SimilarityConfig struct {
	MFCCWeight   float64 `mapstructure:"mfcc_weight"`
	ChromaWeight float64 `mapstructure:"chroma_weight"`
	Alpha        float64 `mapstructure:"alpha"`
	DTWRadius    int     `mapstructure:"dtw_radius"`
	Workers      int     `mapstructure:"workers"`
}

type EqualizerConfig struct {
	Q float64 `mapstructure:"q"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
}

// Weights converts the configured weights for the similarity engine.
func (c SimilarityConfig) Weights() similarity.Weights {
	return similarity.Weights{MFCC: c.MFCCWeight, Chroma: c.ChromaWeight}
}

// ServiceOptions maps the configuration onto timbre service options.
func (c *Config) ServiceOptions() []timbre.Option {
	return []timbre.Option{
		timbre.WithDBPath(c.Database.Path),
		timbre.WithTempDir(c.TempDir),
		timbre.WithAnalysisParams(c.Analysis),
		timbre.WithSimilarity(c.Similarity.Weights(), c.Similarity.Alpha, c.Similarity.DTWRadius),
		timbre.WithWorkers(c.Similarity.Workers),
		timbre.WithEqualizerQ(c.Equalizer.Q),
		timbre.WithPersistentFeatures(c.Database.PersistFeatures),
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	p := features.DefaultParams()
	w := similarity.DefaultWeights()

	v.SetDefault("log_level", "info")
	v.SetDefault("output_format", "table")
	v.SetDefault("temp_dir", os.TempDir())

	v.SetDefault("database.path", "timbrematch.sqlite3")
	v.SetDefault("database.persist_features", true)

	v.SetDefault("analysis.fft_size", p.FFTSize)
	v.SetDefault("analysis.hop_size", p.HopSize)
	v.SetDefault("analysis.mel_bands", p.MelBands)
	v.SetDefault("analysis.top_db", p.TopDB)
	v.SetDefault("analysis.n_mfcc", p.NumMFCC)
	v.SetDefault("analysis.n_blocks", p.NumBlocks)

	v.SetDefault("similarity.mfcc_weight", w.MFCC)
	v.SetDefault("similarity.chroma_weight", w.Chroma)
	v.SetDefault("similarity.alpha", similarity.DefaultAlpha)
	v.SetDefault("similarity.dtw_radius", similarity.DefaultRadius)
	v.SetDefault("similarity.workers", 4)

	v.SetDefault("equalizer.q", equalizer.DefaultQ)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 100)
}

// New returns a viper instance with defaults, environment overrides and,
// when path is non-empty, the given config file. Without a path the usual
// locations are searched and a missing file is not an error.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("timbrematch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "timbrematch"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Unmarshal decodes and validates the configuration held by v.
func Unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is New followed by Unmarshal.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(v)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (table, json, yaml)", c.OutputFormat)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if c.Similarity.MFCCWeight < 0 || c.Similarity.ChromaWeight < 0 {
		return fmt.Errorf("similarity weights cannot be negative")
	}
	if c.Similarity.MFCCWeight == 0 && c.Similarity.ChromaWeight == 0 {
		return fmt.Errorf("at least one similarity weight must be positive")
	}
	if c.Similarity.Alpha <= 0 {
		return fmt.Errorf("similarity alpha must be positive")
	}
	if c.Similarity.DTWRadius < 0 {
		return fmt.Errorf("dtw radius cannot be negative")
	}
	if c.Similarity.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Equalizer.Q <= 0 {
		return fmt.Errorf("equalizer q must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	return nil
}
