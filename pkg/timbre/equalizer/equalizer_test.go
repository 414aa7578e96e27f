package equalizer

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func impulse(n, sr int) audio.Buffer {
	s := make([]float64, n)
	s[0] = 1
	return audio.Buffer{Samples: s, SampleRate: sr}
}

func noise(seed int64, n, sr int) audio.Buffer {
	r := rand.New(rand.NewSource(seed))
	s := make([]float64, n)
	for i := range s {
		s[i] = r.Float64()*2 - 1
	}
	return audio.Buffer{Samples: s, SampleRate: sr}
}

func TestDesignPeakingRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name     string
		f0, g, q float64
		fs       int
	}{
		{"zero frequency", 0, 6, 1, 44100},
		{"negative frequency", -100, 6, 1, 44100},
		{"at nyquist", 22050, 6, 1, 44100},
		{"above nyquist", 30000, 6, 1, 44100},
		{"zero q", 1000, 6, 0, 44100},
		{"negative q", 1000, 6, -1, 44100},
		{"zero rate", 1000, 6, 1, 0},
		{"nan gain", 1000, math.NaN(), 1, 44100},
		{"inf frequency", math.Inf(1), 6, 1, 44100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DesignPeaking(tc.f0, tc.g, tc.q, tc.fs)
			assert.ErrorIs(t, err, audio.ErrInvalidInput)
		})
	}
}

func TestDesignPeakingResponse(t *testing.T) {
	fs := 44100
	for _, g := range []float64{-12, -3, 6, 12} {
		c, err := DesignPeaking(1000, g, 1, fs)
		require.NoError(t, err)

		assert.InDelta(t, math.Pow(10, g/20), cmplx.Abs(c.Response(1000, float64(fs))), 1e-9, "gain %g at centre", g)
		// far from the centre the filter is nearly transparent
		assert.InDelta(t, 1.0, cmplx.Abs(c.Response(20, float64(fs))), 0.02)
	}
}

func TestZeroGainDesignIsIdentity(t *testing.T) {
	c, err := DesignPeaking(1000, 0, 1, 44100)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.B0, 1e-15)
	assert.InDelta(t, c.A1, c.B1, 1e-15)
	assert.InDelta(t, c.A2, c.B2, 1e-15)
}

func TestApplyAllZeroGainIsIdentity(t *testing.T) {
	buf := noise(1, 2048, 44100)
	cfg, err := FromGains([]int{0, 0, 0, 0, 0}, DefaultQ)
	require.NoError(t, err)
	assert.True(t, cfg.Flat())

	out, err := Apply(buf, cfg)
	require.NoError(t, err)
	assert.Equal(t, buf.Samples, out.Samples)
	assert.Equal(t, buf.SampleRate, out.SampleRate)
}

func TestApplyPreservesLengthAndInput(t *testing.T) {
	buf := noise(2, 5000, 44100)
	orig := buf.Clone()
	cfg, err := FromGains([]int{3, -6, 12, -12, 4}, DefaultQ)
	require.NoError(t, err)

	out, err := Apply(buf, cfg)
	require.NoError(t, err)
	assert.Len(t, out.Samples, len(buf.Samples))
	assert.Equal(t, orig.Samples, buf.Samples)

	again, err := Apply(buf, cfg)
	require.NoError(t, err)
	assert.Equal(t, out.Samples, again.Samples)
}

func TestApplyBoostsBandOnImpulse(t *testing.T) {
	const n, fs = 4096, 44100
	out, err := Apply(impulse(n, fs), Config{{FrequencyHz: 1000, GainDB: 6, Q: 1}})
	require.NoError(t, err)
	require.Len(t, out.Samples, n)
	assert.Equal(t, fs, out.SampleRate)

	spec := fft.FFTReal(out.Samples)
	bin := int(math.Round(1000 * n / float64(fs)))
	assert.Greater(t, cmplx.Abs(spec[bin]), 1.0)
	assert.InDelta(t, math.Pow(10, 6.0/20), cmplx.Abs(spec[bin]), 0.05)

	// a bin far below the band is left close to unity
	low := int(math.Round(20 * n / float64(fs)))
	assert.InDelta(t, 1.0, cmplx.Abs(spec[low]), 0.05)
}

func TestApplyCascadesInOrder(t *testing.T) {
	buf := noise(3, 3000, 22050)
	a := Band{FrequencyHz: 250, GainDB: 6, Q: 1}
	b := Band{FrequencyHz: 4000, GainDB: -9, Q: 2}

	both, err := Apply(buf, Config{a, b})
	require.NoError(t, err)

	step1, err := Apply(buf, Config{a})
	require.NoError(t, err)
	step2, err := Apply(step1, Config{b})
	require.NoError(t, err)

	assert.Equal(t, step2.Samples, both.Samples)
}

func TestApplyBandAboveNyquist(t *testing.T) {
	buf := noise(4, 1000, 22050)

	cfg, err := FromGains([]int{0, 0, 0, 0, 5}, DefaultQ)
	require.NoError(t, err)
	_, err = Apply(buf, cfg)
	assert.ErrorIs(t, err, audio.ErrInvalidInput)

	// a zero-gain band is skipped before design
	cfg, err = FromGains([]int{2, 0, 0, 0, 0}, DefaultQ)
	require.NoError(t, err)
	_, err = Apply(buf, cfg)
	assert.NoError(t, err)
}

func TestApplyRejectsEmptyBuffer(t *testing.T) {
	_, err := Apply(audio.Buffer{SampleRate: 44100}, Config{{1000, 3, 1}})
	assert.ErrorIs(t, err, audio.ErrInvalidInput)
}

func TestFromGains(t *testing.T) {
	cfg, err := FromGains([]int{-12, -1, 0, 1, 12}, 0)
	require.NoError(t, err)
	require.Len(t, cfg, 5)
	for i, b := range cfg {
		assert.Equal(t, StandardBands[i], b.FrequencyHz)
		assert.Equal(t, DefaultQ, b.Q)
	}
	assert.Equal(t, "60Hz:-12dB 250Hz:-1dB 1000Hz:+0dB 4000Hz:+1dB 16000Hz:+12dB", cfg.String())

	_, err = FromGains([]int{13, 0, 0, 0, 0}, 1)
	assert.ErrorIs(t, err, audio.ErrInvalidInput)
	_, err = FromGains([]int{0, 0, 0}, 1)
	assert.ErrorIs(t, err, audio.ErrInvalidInput)
}

func TestDesignPeakingMatchesCookbook(t *testing.T) {
	const f0, g, q, fs = 4000.0, -9.0, 2.0, 48000
	a := math.Pow(10, g/40)
	w0 := 2 * math.Pi * f0 / fs
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha/a

	c, err := DesignPeaking(f0, g, q, fs)
	require.NoError(t, err)
	assert.InDelta(t, (1+alpha*a)/a0, c.B0, 1e-12)
	assert.InDelta(t, -2*math.Cos(w0)/a0, c.B1, 1e-12)
	assert.InDelta(t, (1-alpha*a)/a0, c.B2, 1e-12)
	assert.InDelta(t, -2*math.Cos(w0)/a0, c.A1, 1e-12)
	assert.InDelta(t, (1-alpha/a)/a0, c.A2, 1e-12)
}
