package features

import (
	"math"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"gonum.org/v1/gonum/floats"
)

// Vector is a fixed-length summary feature (mean MFCC or mean chroma).
type Vector []float64

// Matrix is a time-ordered feature sequence indexed [frame][coefficient].
type Matrix [][]float64

// dctBasis returns the first nCoeff rows of the orthonormal DCT-II matrix
// of size n.
func dctBasis(nCoeff, n int) [][]float64 {
	basis := make([][]float64, nCoeff)
	scale0 := math.Sqrt(1 / float64(n))
	scale := math.Sqrt(2 / float64(n))
	for k := 0; k < nCoeff; k++ {
		row := make([]float64, n)
		s := scale
		if k == 0 {
			s = scale0
		}
		for i := 0; i < n; i++ {
			row[i] = s * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		basis[k] = row
	}
	return basis
}

func checkCoeffs(nCoeff int, p Params) error {
	if nCoeff <= 0 {
		return audio.Invalidf("coefficient count must be positive, got %d", nCoeff)
	}
	if nCoeff > p.MelBands {
		return audio.Invalidf("coefficient count %d exceeds mel band count %d", nCoeff, p.MelBands)
	}
	return nil
}

// mfccFrames computes per-frame MFCCs for samples at sampleRate.
// Inputs are assumed validated.
func mfccFrames(samples []float64, sampleRate, nCoeff int, p Params) Matrix {
	spec := PowerSpectrogram(samples, p)
	mel := applyFilterbank(spec, MelFilterbank(sampleRate, p.FFTSize, p.MelBands))
	powerToDB(mel, p.TopDB)

	basis := dctBasis(nCoeff, p.MelBands)
	out := make(Matrix, len(mel))
	for t, frame := range mel {
		row := make([]float64, nCoeff)
		for k, b := range basis {
			row[k] = floats.Dot(b, frame)
		}
		out[t] = row
	}
	return out
}

// MFCCFrames returns the MFCC sequence of buf, one row per analysis frame.
func MFCCFrames(buf audio.Buffer, nCoeff int, p Params) (Matrix, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkCoeffs(nCoeff, p); err != nil {
		return nil, err
	}
	return mfccFrames(buf.Samples, buf.SampleRate, nCoeff, p), nil
}

// MeanMFCC summarises buf as the per-coefficient mean of its MFCC frames.
func MeanMFCC(buf audio.Buffer, nCoeff int, p Params) (Vector, error) {
	frames, err := MFCCFrames(buf, nCoeff, p)
	if err != nil {
		return nil, err
	}
	return meanOverFrames(frames, nCoeff), nil
}

func meanOverFrames(m Matrix, width int) Vector {
	mean := make([]float64, width)
	for _, row := range m {
		floats.Add(mean, row)
	}
	if len(m) > 0 {
		floats.Scale(1/float64(len(m)), mean)
	}
	return mean
}
