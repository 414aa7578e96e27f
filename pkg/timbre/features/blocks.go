package features

import "github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"

// DeltaWidth is the regression window (in frames) for delta features.
const DeltaWidth = 9

// Delta computes first-order regression deltas along time. Frames beyond
// either end are replaced by the nearest edge frame.
func Delta(m Matrix) Matrix {
	n := len(m)
	if n == 0 {
		return Matrix{}
	}
	half := DeltaWidth / 2
	var denom float64
	for k := 1; k <= half; k++ {
		denom += float64(k * k)
	}
	denom *= 2

	clamp := func(i int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}

	width := len(m[0])
	out := make(Matrix, n)
	for t := 0; t < n; t++ {
		row := make([]float64, width)
		for k := 1; k <= half; k++ {
			next, prev := m[clamp(t+k)], m[clamp(t-k)]
			for c := 0; c < width; c++ {
				row[c] += float64(k) * (next[c] - prev[c])
			}
		}
		for c := range row {
			row[c] /= denom
		}
		out[t] = row
	}
	return out
}

// BlockBounds splits n samples into nBlocks contiguous ranges; the last
// range absorbs the remainder.
func BlockBounds(n, nBlocks int) [][2]int {
	size := n / nBlocks
	bounds := make([][2]int, nBlocks)
	for i := 0; i < nBlocks; i++ {
		start := i * size
		end := start + size
		if i == nBlocks-1 {
			end = n
		}
		bounds[i] = [2]int{start, end}
	}
	return bounds
}

// BlockMFCCDelta splits buf into nBlocks segments, computes MFCC, delta and
// delta-delta for each, and concatenates the segments along time. Each row
// holds 3*nCoeff values: MFCC, then delta, then delta-delta.
func BlockMFCCDelta(buf audio.Buffer, nBlocks, nCoeff int, p Params) (Matrix, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkCoeffs(nCoeff, p); err != nil {
		return nil, err
	}
	if nBlocks <= 0 {
		return nil, audio.Invalidf("block count must be positive, got %d", nBlocks)
	}
	if len(buf.Samples) < nBlocks {
		return nil, audio.Invalidf("%d samples cannot be split into %d blocks", len(buf.Samples), nBlocks)
	}

	var out Matrix
	for _, b := range BlockBounds(len(buf.Samples), nBlocks) {
		mfcc := mfccFrames(buf.Samples[b[0]:b[1]], buf.SampleRate, nCoeff, p)
		d1 := Delta(mfcc)
		d2 := Delta(d1)
		for t := range mfcc {
			row := make([]float64, 0, 3*nCoeff)
			row = append(row, mfcc[t]...)
			row = append(row, d1[t]...)
			row = append(row, d2[t]...)
			out = append(out, row)
		}
	}
	return out, nil
}
