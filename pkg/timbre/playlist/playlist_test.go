package playlist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists", "mix.json")
	records := []models.PlaylistRecord{
		{Path: "/music/a.wav", Title: "A", DurationSeconds: 12.5},
		{Path: "/music/b.mp3", Title: "B", DurationSeconds: 200},
	}

	require.NoError(t, Save(path, records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"playlist": [`)
	assert.Contains(t, string(raw), `"duration": 12.5`)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestDecodeMissingKey(t *testing.T) {
	got, err := Decode([]byte(`{"other": 1}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"playlist": []}`, string(data))
}

func TestRestoreReportsFailures(t *testing.T) {
	dec := audio.DecoderFunc(func(ctx context.Context, path string) (*audio.Buffer, error) {
		if path == "/bad.wav" {
			return nil, &audio.DecodeError{Path: path, Err: errors.New("truncated")}
		}
		return &audio.Buffer{Samples: make([]float64, 8000), SampleRate: 4000}, nil
	})

	records := []models.PlaylistRecord{
		{Path: "/a.wav", Title: "A", DurationSeconds: 99},
		{Path: "/bad.wav", Title: "Bad"},
		{Path: "/c.wav", Title: "C"},
	}
	entries, failures, err := Restore(context.Background(), records, dec)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "/a.wav", entries[0].Record.Path)
	assert.Equal(t, 2.0, entries[0].Record.DurationSeconds)
	assert.Equal(t, "/c.wav", entries[1].Record.Path)

	require.Len(t, failures, 1)
	assert.Equal(t, "/bad.wav", failures[0].Candidate)
	assert.Contains(t, failures[0].Reason, "truncated")
}

func TestRestoreStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dec := audio.DecoderFunc(func(ctx context.Context, path string) (*audio.Buffer, error) {
		t.Fatal("decoder should not be called")
		return nil, nil
	})

	_, _, err := Restore(ctx, []models.PlaylistRecord{{Path: "/a.wav"}}, dec)
	assert.ErrorIs(t, err, context.Canceled)
}
