package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Decoder turns a file path into a mono Buffer.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Buffer, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(ctx context.Context, path string) (*Buffer, error)

func (f DecoderFunc) Decode(ctx context.Context, path string) (*Buffer, error) {
	return f(ctx, path)
}

// FileDecoder decodes .wav and .mp3 files from disk at their native rate.
type FileDecoder struct{}

func NewFileDecoder() *FileDecoder { return &FileDecoder{} }

// Extensions lists the file extensions FileDecoder reads.
var Extensions = []string{".wav", ".wave", ".mp3"}

// SupportedExtension reports whether path has an extension FileDecoder reads.
func SupportedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (d *FileDecoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	var buf *Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		buf, err = DecodeWAV(f)
	case ".mp3":
		buf, err = DecodeMP3(ctx, f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if len(buf.Samples) == 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("no audio samples")}
	}
	return buf, nil
}

// DecodeWAV reads integer PCM WAV data and downmixes it to mono.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFormat)
	}
	// 1 = PCM, 0xFFFE = WAVE_FORMAT_EXTENSIBLE
	if dec.WavAudioFormat != 1 && dec.WavAudioFormat != 0xFFFE {
		return nil, fmt.Errorf("%w: WAV audio format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrUnsupportedFormat)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, bitDepth)
	}

	// 8-bit WAV is unsigned
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	frames := len(pcm.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(pcm.Data[i*channels+c] - offset)
		}
		samples[i] = sum / float64(channels) * scale
	}

	return &Buffer{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

// DecodeMP3 reads an MP3 stream. go-mp3 always yields 16-bit little-endian
// stereo, which is averaged to mono.
func DecodeMP3(ctx context.Context, r io.Reader) (*Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("opening mp3 stream: %w", err)
	}

	var samples []float64
	if n := dec.Length(); n > 0 {
		samples = make([]float64, 0, n/4)
	}

	chunk := make([]byte, 16*1024)
	var carry []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, rerr := dec.Read(chunk)
		data := chunk[:n]
		if len(carry) > 0 {
			data = append(carry, data...)
			carry = nil
		}
		whole := len(data) - len(data)%4
		for i := 0; i < whole; i += 4 {
			left := int16(data[i]) | int16(data[i+1])<<8
			right := int16(data[i+2]) | int16(data[i+3])<<8
			samples = append(samples, (float64(left)+float64(right))/2/32768.0)
		}
		if whole < len(data) {
			carry = append([]byte(nil), data[whole:]...)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return nil, fmt.Errorf("reading mp3 frames: %w", rerr)
		}
	}

	return &Buffer{Samples: samples, SampleRate: dec.SampleRate()}, nil
}
