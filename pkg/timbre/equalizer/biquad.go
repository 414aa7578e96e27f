package equalizer

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
)

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DesignPeaking returns RBJ audio-EQ-cookbook peaking filter coefficients
// centred on f0 with gainDB of boost or cut and quality factor q.
func DesignPeaking(f0, gainDB, q float64, fs int) (biquad.Coefficients, error) {
	if fs <= 0 {
		return biquad.Coefficients{}, audio.Invalidf("sample rate must be positive, got %d", fs)
	}
	if !finite(f0, gainDB, q) {
		return biquad.Coefficients{}, audio.Invalidf("non-finite filter parameter (f0=%g gain=%g q=%g)", f0, gainDB, q)
	}
	nyquist := float64(fs) / 2
	if f0 <= 0 || f0 >= nyquist {
		return biquad.Coefficients{}, audio.Invalidf("center frequency %g Hz outside (0, %g)", f0, nyquist)
	}
	if q <= 0 {
		return biquad.Coefficients{}, audio.Invalidf("Q must be positive, got %g", q)
	}

	return design.Peak(f0, gainDB, q, float64(fs)), nil
}

// filter runs one section over x from zero state into a new slice.
func filter(c biquad.Coefficients, x []float64) []float64 {
	y := make([]float64, len(x))
	if len(x) == 0 {
		return y
	}
	biquad.NewSection(c).ProcessBlockTo(y, x)
	return y
}
