package features

import "math"

// Slaney-style mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

func HzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

func MelToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// MelFilterbank builds nMels triangular, area-normalised filters spanning
// 0 Hz to Nyquist. Indexed [mel][bin].
func MelFilterbank(sampleRate, nfft, nMels int) [][]float64 {
	freqs := BinFrequencies(sampleRate, nfft)

	lo, hi := HzToMel(0), HzToMel(float64(sampleRate)/2)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = MelToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	bank := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		left, centre, right := edges[m], edges[m+1], edges[m+2]
		enorm := 2.0 / (right - left)
		row := make([]float64, len(freqs))
		for k, f := range freqs {
			up := (f - left) / (centre - left)
			down := (right - f) / (right - centre)
			w := math.Min(up, down)
			if w > 0 {
				row[k] = w * enorm
			}
		}
		bank[m] = row
	}
	return bank
}

// applyFilterbank projects each power frame onto the filterbank.
func applyFilterbank(spec [][]float64, bank [][]float64) [][]float64 {
	out := make([][]float64, len(spec))
	for t, frame := range spec {
		row := make([]float64, len(bank))
		for m, filt := range bank {
			var acc float64
			for k, w := range filt {
				if w != 0 {
					acc += w * frame[k]
				}
			}
			row[m] = acc
		}
		out[t] = row
	}
	return out
}

// powerToDB converts in place to decibels relative to 1.0 and clips
// everything more than topDB below the loudest value.
func powerToDB(m [][]float64, topDB float64) {
	maxDB := math.Inf(-1)
	for _, row := range m {
		for i, v := range row {
			db := 10 * math.Log10(math.Max(v, powerFloor))
			row[i] = db
			if db > maxDB {
				maxDB = db
			}
		}
	}
	if topDB <= 0 {
		return
	}
	floor := maxDB - topDB
	for _, row := range m {
		for i, v := range row {
			if v < floor {
				row[i] = floor
			}
		}
	}
}
