package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcm16Max = 32767

// EncodeWAV writes the buffer as mono 16-bit PCM. Samples are clipped to
// [-1, 1]; callers that want peak normalisation use Buffer.Normalized.
func EncodeWAV(w io.WriteSeeker, buf Buffer) error {
	if buf.SampleRate <= 0 {
		return Invalidf("sample rate must be positive, got %d", buf.SampleRate)
	}

	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(math.Round(s * pcm16Max))
	}

	enc := wav.NewEncoder(w, buf.SampleRate, 16, 1, 1)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav header: %w", err)
	}
	return nil
}

// WriteWAVFile peak-normalises buf and writes it to path, creating parent
// directories as needed. A silent buffer is written as zeros.
func WriteWAVFile(path string, buf Buffer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := EncodeWAV(f, buf.Normalized()); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
