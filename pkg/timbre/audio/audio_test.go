package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sr int, seconds float64, amp float64) Buffer {
	n := int(float64(sr) * seconds)
	s := make([]float64, n)
	for i := range s {
		s[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
	}
	return Buffer{Samples: s, SampleRate: sr}
}

func TestBufferValidate(t *testing.T) {
	assert.ErrorIs(t, Buffer{SampleRate: 44100}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Buffer{Samples: []float64{0.1}}.Validate(), ErrInvalidInput)
	assert.NoError(t, Buffer{Samples: []float64{0.1}, SampleRate: 8000}.Validate())
}

func TestBufferCloneIsIndependent(t *testing.T) {
	b := Buffer{Samples: []float64{0.1, 0.2}, SampleRate: 8000}
	c := b.Clone()
	c.Samples[0] = 0.9
	assert.Equal(t, 0.1, b.Samples[0])
}

func TestBufferSegmentClamps(t *testing.T) {
	b := Buffer{Samples: make([]float64, 100), SampleRate: 10}

	assert.Len(t, b.Segment(2, 5).Samples, 30)
	assert.Len(t, b.Segment(5, 2).Samples, 30)
	assert.Len(t, b.Segment(-3, 50).Samples, 100)
	assert.Empty(t, b.Segment(20, 30).Samples)
}

func TestNormalizedSilentBuffer(t *testing.T) {
	b := Buffer{Samples: make([]float64, 8), SampleRate: 8000}
	n := b.Normalized()
	for _, s := range n.Samples {
		assert.Equal(t, 0.0, s)
	}

	loud := Buffer{Samples: []float64{0.25, -0.5}, SampleRate: 8000}.Normalized()
	assert.InDelta(t, 0.5, loud.Samples[0], 1e-12)
	assert.InDelta(t, -1.0, loud.Samples[1], 1e-12)
}

func TestWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "tone.wav")

	src := sine(440, 22050, 0.5, 0.8)
	require.NoError(t, WriteWAVFile(path, src))

	got, err := NewFileDecoder().Decode(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 22050, got.SampleRate)
	require.Len(t, got.Samples, len(src.Samples))

	// written peak-normalised
	peak := src.Peak()
	for i := 0; i < len(src.Samples); i += 97 {
		assert.InDelta(t, src.Samples[i]/peak, got.Samples[i], 1e-3)
	}
}

func TestDecodeUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := NewFileDecoder().Decode(context.Background(), path)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, path, de.Path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := NewFileDecoder().Decode(context.Background(), "/does/not/exist.wav")
	var de *DecodeError
	assert.True(t, errors.As(err, &de))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeCorruptWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFnope"), 0o644))

	_, err := NewFileDecoder().Decode(context.Background(), path)
	var de *DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestDecodeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileDecoder().Decode(ctx, "whatever.wav")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTitleForFallsBackToBaseName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My Song.wav")
	require.NoError(t, WriteWAVFile(path, sine(220, 8000, 0.1, 0.5)))
	assert.Equal(t, "My Song", TitleFor(path))
}

func TestContentKey(t *testing.T) {
	a := sine(440, 8000, 0.1, 0.5)
	b := a.Clone()
	assert.Equal(t, ContentKey(a), ContentKey(b))

	b.Samples[3] += 1e-9
	assert.NotEqual(t, ContentKey(a), ContentKey(b))

	c := a.Clone()
	c.SampleRate = 16000
	assert.NotEqual(t, ContentKey(a), ContentKey(c))
}
