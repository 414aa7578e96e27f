package similarity

import (
	"math"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"gonum.org/v1/gonum/floats"
)

// DTW computes the minimal cumulative Euclidean alignment cost between two
// frame sequences. Implementations must return 0 for a sequence against
// itself.
type DTW interface {
	Distance(a, b features.Matrix) (float64, error)
}

// DefaultRadius is the band half-width, in frames, used when none is
// configured.
const DefaultRadius = 50

// NewDTW returns BandedDTW for a positive radius and ExactDTW otherwise.
func NewDTW(radius int) DTW {
	if radius > 0 {
		return BandedDTW{Radius: radius}
	}
	return ExactDTW{}
}

func checkMatrices(a, b features.Matrix) error {
	if len(a) == 0 || len(b) == 0 {
		return audio.Invalidf("dtw on empty sequence (%d x %d frames)", len(a), len(b))
	}
	width := len(a[0])
	for _, m := range []features.Matrix{a, b} {
		for _, row := range m {
			if len(row) != width {
				return audio.Invalidf("dtw frames of width %d and %d", width, len(row))
			}
		}
	}
	return nil
}

func frameCost(x, y []float64) float64 {
	return floats.Distance(x, y, 2)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

// ExactDTW is full O(n*m) dynamic time warping using two rolling rows.
type ExactDTW struct{}

func (ExactDTW) Distance(a, b features.Matrix) (float64, error) {
	if err := checkMatrices(a, b); err != nil {
		return 0, err
	}
	m := len(b)
	prev := make([]float64, m)
	cur := make([]float64, m)

	for i := range a {
		for j := 0; j < m; j++ {
			cost := frameCost(a[i], b[j])
			switch {
			case i == 0 && j == 0:
				cur[j] = cost
			case i == 0:
				cur[j] = cost + cur[j-1]
			case j == 0:
				cur[j] = cost + prev[j]
			default:
				cur[j] = cost + min3(prev[j], cur[j-1], prev[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[m-1], nil
}

// BandedDTW restricts the warping path to Radius frames either side of the
// diagonal scaled to the two lengths (a Sakoe-Chiba band). The band is
// widened where needed so a path from start to end always exists. The
// result is an upper bound on the exact distance.
type BandedDTW struct {
	Radius int
}

// window returns, per row of a, the inclusive column range searched in b.
func (d BandedDTW) window(n, m int) (lo, hi []int) {
	lo = make([]int, n)
	hi = make([]int, n)
	r := d.Radius
	if r < 0 {
		r = 0
	}
	for i := 0; i < n; i++ {
		c := 0
		if n > 1 {
			c = int(math.Round(float64(i) * float64(m-1) / float64(n-1)))
		}
		lo[i] = max(0, c-r)
		hi[i] = min(m-1, c+r)
	}
	if n == 1 {
		lo[0], hi[0] = 0, m-1
	}
	// every row must touch the previous one, diagonally at least
	for i := 1; i < n; i++ {
		if lo[i] > hi[i-1]+1 {
			hi[i-1] = lo[i] - 1
		}
	}
	hi[n-1] = m - 1
	return lo, hi
}

func (d BandedDTW) Distance(a, b features.Matrix) (float64, error) {
	if err := checkMatrices(a, b); err != nil {
		return 0, err
	}
	n, m := len(a), len(b)
	lo, hi := d.window(n, m)
	inf := math.Inf(1)

	// rows hold only their band, offset by lo
	at := func(row []float64, rowLo, j int) float64 {
		if j < rowLo || j-rowLo >= len(row) {
			return inf
		}
		return row[j-rowLo]
	}

	var prev []float64
	prevLo := 0
	for i := 0; i < n; i++ {
		cur := make([]float64, hi[i]-lo[i]+1)
		for j := lo[i]; j <= hi[i]; j++ {
			cost := frameCost(a[i], b[j])
			if i == 0 && j == 0 {
				cur[0] = cost
				continue
			}
			best := min3(at(prev, prevLo, j), at(prev, prevLo, j-1), at(cur, lo[i], j-1))
			cur[j-lo[i]] = cost + best
		}
		prev, prevLo = cur, lo[i]
	}
	return prev[m-1-prevLo], nil
}
