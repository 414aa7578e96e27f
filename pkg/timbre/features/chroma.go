package features

import (
	"math"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"gonum.org/v1/gonum/floats"
)

// PitchClass maps a frequency to its pitch class, 0 = C ... 11 = B,
// using equal temperament with A4 = 440 Hz.
func PitchClass(hz float64) int {
	midi := int(math.Round(12*math.Log2(hz/440) + 69))
	pc := midi % ChromaBins
	if pc < 0 {
		pc += ChromaBins
	}
	return pc
}

// ChromaFrames folds each power frame into 12 pitch classes and scales
// every frame so its largest class is 1. Silent frames stay zero.
func ChromaFrames(buf audio.Buffer, p Params) (Matrix, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	spec := PowerSpectrogram(buf.Samples, p)
	freqs := BinFrequencies(buf.SampleRate, p.FFTSize)
	classes := make([]int, len(freqs))
	for k, f := range freqs {
		classes[k] = -1
		if f > 0 {
			classes[k] = PitchClass(f)
		}
	}

	out := make(Matrix, len(spec))
	for t, frame := range spec {
		row := make([]float64, ChromaBins)
		for k, pc := range classes {
			if pc >= 0 {
				row[pc] += frame[k]
			}
		}
		if peak := floats.Max(row); peak > 0 {
			floats.Scale(1/peak, row)
		}
		out[t] = row
	}
	return out, nil
}

// MeanChroma is the per-class mean of ChromaFrames.
func MeanChroma(buf audio.Buffer, p Params) (Vector, error) {
	frames, err := ChromaFrames(buf, p)
	if err != nil {
		return nil, err
	}
	return meanOverFrames(frames, ChromaBins), nil
}
