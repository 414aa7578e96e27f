package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"golang.org/x/sync/errgroup"
)

// DefaultAlpha scales DTW distance before the exponential mapping.
const DefaultAlpha = 0.0005

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// ProgressFunc is called once per finished candidate. err is nil on success.
type ProgressFunc func(done, total int, candidate string, err error)

type Options struct {
	Weights    Weights
	Alpha      float64
	DTW        DTW
	Workers    int
	OnProgress ProgressFunc
	Logger     Logger
}

func DefaultOptions() Options {
	return Options{
		Weights: DefaultWeights(),
		Alpha:   DefaultAlpha,
		DTW:     NewDTW(DefaultRadius),
		Workers: 4,
	}
}

// Engine scores tracks identified by path. Decoding goes through the
// injected Decoder; summary vectors are memoised by the Extractor's cache
// keyed on the path.
type Engine struct {
	decoder   audio.Decoder
	extractor *features.Extractor
	opts      Options
}

// NewEngine fills zero-valued options from DefaultOptions. Zero Weights
// means unset; a caller wanting a single component sets the other to zero.
func NewEngine(decoder audio.Decoder, extractor *features.Extractor, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Alpha <= 0 {
		opts.Alpha = def.Alpha
	}
	if opts.DTW == nil {
		opts.DTW = def.DTW
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = def.Weights
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Engine{decoder: decoder, extractor: extractor, opts: opts}
}

func (e *Engine) Options() Options { return e.opts }

// WithProgress returns a copy of the engine that reports ranking progress
// to fn. The copy shares the decoder and the extractor cache.
func (e *Engine) WithProgress(fn ProgressFunc) *Engine {
	c := *e
	c.opts.OnProgress = fn
	return &c
}

// trackFeatures is everything one pairwise score needs from a track.
type trackFeatures struct {
	blocks features.Matrix
	chroma features.Vector
	mfcc   features.Vector
}

func (e *Engine) decode(ctx context.Context, path string) (*audio.Buffer, error) {
	buf, err := e.decoder.Decode(ctx, path)
	if err != nil {
		var de *audio.DecodeError
		if errors.As(err, &de) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &audio.DecodeError{Path: path, Err: err}
	}
	return buf, nil
}

func (e *Engine) prepare(ctx context.Context, path string) (*trackFeatures, error) {
	buf, err := e.decode(ctx, path)
	if err != nil {
		return nil, err
	}
	blocks, err := e.extractor.BlockMFCCDelta(*buf)
	if err != nil {
		return nil, fmt.Errorf("block features for %s: %w", path, err)
	}
	chroma, err := e.extractor.MeanChroma(path, buf)
	if err != nil {
		return nil, fmt.Errorf("chroma for %s: %w", path, err)
	}
	mfcc, err := e.extractor.MeanMFCC(path, buf)
	if err != nil {
		return nil, fmt.Errorf("mfcc for %s: %w", path, err)
	}
	return &trackFeatures{blocks: blocks, chroma: chroma, mfcc: mfcc}, nil
}

// chroma skips decoding when the vector is already cached.
func (e *Engine) chroma(ctx context.Context, path string) (features.Vector, error) {
	if v, err := e.extractor.MeanChroma(path, nil); err == nil {
		return v, nil
	}
	buf, err := e.decode(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.extractor.MeanChroma(path, buf)
}

func (e *Engine) score(ref, cand *trackFeatures) (models.ScoreBreakdown, error) {
	dist, err := e.opts.DTW.Distance(ref.blocks, cand.blocks)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}
	dtwScore := ExpScore(dist, e.opts.Alpha)
	chromaScore := Cosine(ref.chroma, cand.chroma)
	return models.ScoreBreakdown{
		DTWDistance:      dist,
		DTWSimilarity:    dtwScore,
		ChromaSimilarity: chromaScore,
		MFCCCosine:       Cosine(ref.mfcc, cand.mfcc),
		Combined:         e.opts.Weights.Combine(dtwScore, chromaScore),
	}, nil
}

func (e *Engine) pair(ctx context.Context, pathA, pathB string) (*trackFeatures, *trackFeatures, error) {
	a, err := e.prepare(ctx, pathA)
	if err != nil {
		return nil, nil, err
	}
	if pathB == pathA {
		return a, a, nil
	}
	b, err := e.prepare(ctx, pathB)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// DTWDistance aligns the block MFCC+delta features of two tracks.
func (e *Engine) DTWDistance(ctx context.Context, pathA, pathB string) (float64, error) {
	a, b, err := e.pair(ctx, pathA, pathB)
	if err != nil {
		return 0, err
	}
	return e.opts.DTW.Distance(a.blocks, b.blocks)
}

// DTWSimilarity is exp(-alpha * DTWDistance).
func (e *Engine) DTWSimilarity(ctx context.Context, pathA, pathB string) (float64, error) {
	d, err := e.DTWDistance(ctx, pathA, pathB)
	if err != nil {
		return 0, err
	}
	return ExpScore(d, e.opts.Alpha), nil
}

// ChromaSimilarity is the cosine of the two mean chroma vectors.
func (e *Engine) ChromaSimilarity(ctx context.Context, pathA, pathB string) (float64, error) {
	a, err := e.chroma(ctx, pathA)
	if err != nil {
		return 0, err
	}
	b, err := e.chroma(ctx, pathB)
	if err != nil {
		return 0, err
	}
	return Cosine(a, b), nil
}

// CombinedSimilarity blends DTW and chroma similarity with the engine weights.
func (e *Engine) CombinedSimilarity(ctx context.Context, pathA, pathB string) (float64, error) {
	s, err := e.Compare(ctx, pathA, pathB)
	if err != nil {
		return 0, err
	}
	return s.Combined, nil
}

// Compare returns every score component for a pair of tracks.
func (e *Engine) Compare(ctx context.Context, pathA, pathB string) (models.ScoreBreakdown, error) {
	a, b, err := e.pair(ctx, pathA, pathB)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}
	return e.score(a, b)
}

// Rank scores every candidate against reference with CombinedSimilarity.
// The reference and duplicate candidates are dropped. A candidate that fails
// is reported in Failures and the rest still get scored; only a reference
// that cannot be analysed, or a cancelled context, fails the whole call.
func (e *Engine) Rank(ctx context.Context, reference string, candidates []string) (*models.RankResult, error) {
	ref, err := e.prepare(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", reference, err)
	}

	seen := map[string]bool{reference: true}
	todo := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		todo = append(todo, c)
	}

	result := &models.RankResult{
		Reference: reference,
		Scores:    make(map[string]float64, len(todo)),
	}

	var (
		mu   sync.Mutex
		done int
	)
	record := func(cand string, score float64, cerr error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if cerr != nil {
			result.Failures = append(result.Failures, models.CandidateFailure{Candidate: cand, Reason: cerr.Error()})
		} else {
			result.Scores[cand] = score
		}
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(done, len(todo), cand, cerr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, cand := range todo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			feats, err := e.prepare(gctx, cand)
			if err == nil {
				var s models.ScoreBreakdown
				s, err = e.score(ref, feats)
				if err == nil {
					e.opts.Logger.Debugf("scored %s: %.4f", cand, s.Combined)
					record(cand, s.Combined, nil)
					return nil
				}
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			e.opts.Logger.Warnf("skipping %s: %v", cand, err)
			record(cand, 0, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortFailures(result.Failures)
	return result, nil
}

func sortFailures(f []models.CandidateFailure) {
	sort.Slice(f, func(i, j int) bool { return f[i].Candidate < f[j].Candidate })
}
