package features

import (
	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/mjibson/go-dsp/fft"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
)

// Params controls the short-time analysis shared by every feature.
type Params struct {
	FFTSize   int     `mapstructure:"fft_size"`
	HopSize   int     `mapstructure:"hop_size"`
	MelBands  int     `mapstructure:"mel_bands"`
	TopDB     float64 `mapstructure:"top_db"`
	NumMFCC   int     `mapstructure:"n_mfcc"`
	NumBlocks int     `mapstructure:"n_blocks"`
}

const (
	DefaultFFTSize   = 2048
	DefaultHopSize   = 512
	DefaultMelBands  = 128
	DefaultTopDB     = 80.0
	DefaultNumMFCC   = 13
	DefaultNumBlocks = 6

	ChromaBins = 12
	powerFloor = 1e-10
)

func DefaultParams() Params {
	return Params{
		FFTSize:   DefaultFFTSize,
		HopSize:   DefaultHopSize,
		MelBands:  DefaultMelBands,
		TopDB:     DefaultTopDB,
		NumMFCC:   DefaultNumMFCC,
		NumBlocks: DefaultNumBlocks,
	}
}

func (p Params) Validate() error {
	if p.FFTSize < 2 {
		return audio.Invalidf("fft size must be at least 2, got %d", p.FFTSize)
	}
	if p.HopSize <= 0 {
		return audio.Invalidf("hop size must be positive, got %d", p.HopSize)
	}
	if p.MelBands <= 0 {
		return audio.Invalidf("mel band count must be positive, got %d", p.MelBands)
	}
	if p.TopDB < 0 {
		return audio.Invalidf("top_db must not be negative, got %g", p.TopDB)
	}
	return nil
}

// reflectIndex mirrors i into [0, n) without repeating the edge sample.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// FrameCount is the number of centred frames produced for n samples.
func FrameCount(n int, p Params) int {
	return 1 + n/p.HopSize
}

// PowerSpectrogram computes |STFT|^2 with centred, reflect-padded Hann frames.
// The result is indexed [frame][bin] with FFTSize/2+1 bins per frame.
func PowerSpectrogram(samples []float64, p Params) [][]float64 {
	n := len(samples)
	nfft := p.FFTSize
	pad := nfft / 2
	bins := nfft/2 + 1
	hann, _ := window.Hann(nfft, window.WithPeriodic())

	frames := FrameCount(n, p)
	spec := make([][]float64, frames)
	frame := make([]float64, nfft)

	for t := 0; t < frames; t++ {
		start := t*p.HopSize - pad
		for i := 0; i < nfft; i++ {
			frame[i] = samples[reflectIndex(start+i, n)] * hann[i]
		}
		x := fft.FFTReal(frame)
		row := make([]float64, bins)
		for k := 0; k < bins; k++ {
			re, im := real(x[k]), imag(x[k])
			row[k] = re*re + im*im
		}
		spec[t] = row
	}
	return spec
}

// BinFrequencies returns the centre frequency in Hz of each FFT bin.
func BinFrequencies(sampleRate, nfft int) []float64 {
	bins := nfft/2 + 1
	f := make([]float64, bins)
	for k := range f {
		f[k] = float64(k) * float64(sampleRate) / float64(nfft)
	}
	return f
}
