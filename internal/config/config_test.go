package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timbrematch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "timbrematch.sqlite3", cfg.Database.Path)
	assert.True(t, cfg.Database.PersistFeatures)
	assert.Equal(t, features.DefaultParams(), cfg.Analysis)
	assert.Equal(t, similarity.DefaultWeights(), cfg.Similarity.Weights())
	assert.Equal(t, similarity.DefaultAlpha, cfg.Similarity.Alpha)
	assert.Equal(t, similarity.DefaultRadius, cfg.Similarity.DTWRadius)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
output_format: json
database:
  path: /var/lib/timbre/library.db
  persist_features: false
analysis:
  n_blocks: 8
similarity:
  mfcc_weight: 0.5
  chroma_weight: 0.5
  dtw_radius: 0
equalizer:
  q: 1.4
server:
  port: 9090
  allowed_origins: ["http://localhost:3000"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "/var/lib/timbre/library.db", cfg.Database.Path)
	assert.False(t, cfg.Database.PersistFeatures)
	assert.Equal(t, 8, cfg.Analysis.NumBlocks)
	assert.Equal(t, features.DefaultFFTSize, cfg.Analysis.FFTSize)
	assert.Equal(t, similarity.Weights{MFCC: 0.5, Chroma: 0.5}, cfg.Similarity.Weights())
	assert.Equal(t, 0, cfg.Similarity.DTWRadius)
	assert.Equal(t, 1.4, cfg.Equalizer.Q)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Len(t, cfg.ServiceOptions(), 7)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "similarity:\n  workers: 2\n")
	t.Setenv("TIMBRE_SIMILARITY_WORKERS", "8")
	t.Setenv("TIMBRE_DATABASE_PATH", "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Similarity.Workers)
	assert.Equal(t, "env.db", cfg.Database.Path)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log_level: loud\n"},
		{"bad format", "output_format: csv\n"},
		{"bad fft", "analysis:\n  fft_size: 1\n"},
		{"negative weight", "similarity:\n  mfcc_weight: -1\n"},
		{"all zero weights", "similarity:\n  mfcc_weight: 0\n  chroma_weight: 0\n"},
		{"zero alpha", "similarity:\n  alpha: 0\n"},
		{"zero workers", "similarity:\n  workers: 0\n"},
		{"zero q", "equalizer:\n  q: 0\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
