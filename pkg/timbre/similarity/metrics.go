package similarity

import (
	"math"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"gonum.org/v1/gonum/floats"
)

// Cosine returns dot(a,b)/(|a||b|). It is exactly 0 when either vector has
// zero norm or when the lengths differ.
func Cosine(a, b features.Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	c := floats.Dot(a, b) / (na * nb)
	// rounding can push |c| a hair past 1
	return math.Max(-1, math.Min(1, c))
}

// ExpScore maps a non-negative distance onto (0, 1], decreasing in distance.
func ExpScore(distance, alpha float64) float64 {
	return math.Exp(-alpha * distance)
}

// Weights blend the component scores into the combined score.
type Weights struct {
	MFCC   float64 `mapstructure:"mfcc_weight" json:"mfcc_weight"`
	Chroma float64 `mapstructure:"chroma_weight" json:"chroma_weight"`
}

func DefaultWeights() Weights {
	return Weights{MFCC: 0.6, Chroma: 0.4}
}

// Combine is the plain weighted sum; the result is not clamped.
func (w Weights) Combine(dtwScore, chromaScore float64) float64 {
	return w.MFCC*dtwScore + w.Chroma*chromaScore
}
