package timbre

import (
	"os"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/equalizer"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
)

type Config struct {
	DBPath          string
	TempDir         string
	Logger          Logger
	Storage         Storage
	Decoder         audio.Decoder
	Analysis        features.Params
	Weights         similarity.Weights
	Alpha           float64
	DTWRadius       int
	Workers         int
	EqualizerQ      float64
	PersistFeatures bool
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithDecoder swaps the audio decoder, e.g. for a fake in tests.
func WithDecoder(dec audio.Decoder) Option {
	return func(c *Config) {
		c.Decoder = dec
	}
}

func WithAnalysisParams(p features.Params) Option {
	return func(c *Config) {
		c.Analysis = p
	}
}

// WithSimilarity sets the score weights, the DTW distance scale and the
// DTW band radius (0 selects exact DTW).
func WithSimilarity(w similarity.Weights, alpha float64, dtwRadius int) Option {
	return func(c *Config) {
		c.Weights = w
		c.Alpha = alpha
		c.DTWRadius = dtwRadius
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithEqualizerQ(q float64) Option {
	return func(c *Config) {
		c.EqualizerQ = q
	}
}

// WithPersistentFeatures keeps summary vectors in the database as well as
// in memory.
func WithPersistentFeatures(enabled bool) Option {
	return func(c *Config) {
		c.PersistFeatures = enabled
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:          "timbrematch.sqlite3",
		TempDir:         os.TempDir(),
		Analysis:        features.DefaultParams(),
		Weights:         similarity.DefaultWeights(),
		Alpha:           similarity.DefaultAlpha,
		DTWRadius:       similarity.DefaultRadius,
		Workers:         4,
		EqualizerQ:      equalizer.DefaultQ,
		PersistFeatures: true,
	}
}
