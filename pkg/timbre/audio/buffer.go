package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput reports a precondition violation by the caller:
// empty audio, a non-positive sample rate, or out-of-range parameters.
var ErrInvalidInput = errors.New("invalid input")

// Invalidf wraps ErrInvalidInput with a formatted detail message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ErrUnsupportedFormat is returned for files the decoder cannot read.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeError wraps a failure to turn a file into samples.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Buffer is mono PCM audio with samples nominally in [-1, 1].
// Buffers are treated as immutable once produced; use Clone before
// modifying samples in place.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Validate checks that the buffer is usable for analysis.
func (b Buffer) Validate() error {
	if len(b.Samples) == 0 {
		return Invalidf("empty audio buffer")
	}
	if b.SampleRate <= 0 {
		return Invalidf("sample rate must be positive, got %d", b.SampleRate)
	}
	return nil
}

func (b Buffer) Clone() Buffer {
	s := make([]float64, len(b.Samples))
	copy(s, b.Samples)
	return Buffer{Samples: s, SampleRate: b.SampleRate}
}

// Duration in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Segment returns a copy of the samples between start and end seconds.
// Bounds are clamped to the buffer and swapped when given in reverse.
func (b Buffer) Segment(startSec, endSec float64) Buffer {
	if endSec < startSec {
		startSec, endSec = endSec, startSec
	}
	n := len(b.Samples)
	clamp := func(sec float64) int {
		i := int(sec * float64(b.SampleRate))
		if i < 0 {
			return 0
		}
		if i > n {
			return n
		}
		return i
	}
	lo, hi := clamp(startSec), clamp(endSec)
	out := make([]float64, hi-lo)
	copy(out, b.Samples[lo:hi])
	return Buffer{Samples: out, SampleRate: b.SampleRate}
}

// Peak returns the largest absolute sample value.
func (b Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// Normalized returns a copy scaled so that the peak is 1.
// A silent buffer is returned unchanged.
func (b Buffer) Normalized() Buffer {
	out := b.Clone()
	peak := b.Peak()
	if peak == 0 {
		return out
	}
	for i := range out.Samples {
		out.Samples[i] /= peak
	}
	return out
}
