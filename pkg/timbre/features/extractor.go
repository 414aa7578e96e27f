package features

import (
	"fmt"

	"github.com/OneOfOne/xxhash"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
)

// Extractor computes features with a fixed parameter set and memoises the
// summary vectors in its Cache. Block matrices are not cached. Cache kinds
// carry the parameter fingerprint, so a shared persistent cache never hands
// back vectors computed under other settings.
type Extractor struct {
	params Params
	tag    string
	cache  Cache
}

// Fingerprint identifies the analysis settings that shape summary vectors.
func (p Params) Fingerprint() string {
	s := fmt.Sprintf("fft=%d hop=%d mel=%d top=%g mfcc=%d", p.FFTSize, p.HopSize, p.MelBands, p.TopDB, p.NumMFCC)
	return fmt.Sprintf("%016x", xxhash.ChecksumString64(s))
}

// NewExtractor returns an Extractor. A nil cache gets a fresh MemoryCache.
func NewExtractor(cache Cache, p Params) (*Extractor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkCoeffs(p.NumMFCC, p); err != nil {
		return nil, err
	}
	if p.NumBlocks <= 0 {
		return nil, audio.Invalidf("block count must be positive, got %d", p.NumBlocks)
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Extractor{params: p, tag: p.Fingerprint(), cache: cache}, nil
}

func (e *Extractor) Params() Params { return e.params }

func (e *Extractor) Cache() Cache { return e.cache }

func (e *Extractor) kind(k Kind) Kind { return k + Kind("@"+e.tag) }

// Cached reports whether kind is already cached for key.
func (e *Extractor) Cached(kind Kind, key string) bool {
	_, ok := e.cache.Get(e.kind(kind), key)
	return ok
}

// MeanMFCC returns the cached mean MFCC for key, computing it from buf on a
// miss. buf may be nil when the caller knows the entry is cached.
func (e *Extractor) MeanMFCC(key string, buf *audio.Buffer) (Vector, error) {
	return e.cached(KindMFCCMean, key, buf, func(b audio.Buffer) (Vector, error) {
		return MeanMFCC(b, e.params.NumMFCC, e.params)
	})
}

// MeanChroma is the chroma counterpart of MeanMFCC.
func (e *Extractor) MeanChroma(key string, buf *audio.Buffer) (Vector, error) {
	return e.cached(KindChromaMean, key, buf, func(b audio.Buffer) (Vector, error) {
		return MeanChroma(b, e.params)
	})
}

func (e *Extractor) cached(kind Kind, key string, buf *audio.Buffer, compute func(audio.Buffer) (Vector, error)) (Vector, error) {
	kind = e.kind(kind)
	if v, ok := e.cache.Get(kind, key); ok {
		return v, nil
	}
	if buf == nil {
		return nil, audio.Invalidf("no cached %s for %q and no audio supplied", kind, key)
	}
	v, err := compute(*buf)
	if err != nil {
		return nil, err
	}
	return e.cache.Put(kind, key, v), nil
}

func (e *Extractor) BlockMFCCDelta(buf audio.Buffer) (Matrix, error) {
	return BlockMFCCDelta(buf, e.params.NumBlocks, e.params.NumMFCC, e.params)
}

func (e *Extractor) Invalidate(key string) { e.cache.Invalidate(key) }

func (e *Extractor) ClearCache() { e.cache.Clear() }
