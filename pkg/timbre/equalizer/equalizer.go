package equalizer

import (
	"fmt"
	"strings"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
)

// Band is one peaking filter of the equaliser.
type Band struct {
	FrequencyHz float64 `json:"frequency_hz" yaml:"frequency_hz"`
	GainDB      float64 `json:"gain_db" yaml:"gain_db"`
	Q           float64 `json:"q" yaml:"q"`
}

// Config is an ordered list of bands, applied first to last.
type Config []Band

const (
	DefaultQ  = 1.0
	MinGainDB = -12
	MaxGainDB = 12
)

// StandardBands are the centre frequencies exposed by the five-slider UI.
var StandardBands = []float64{60, 250, 1000, 4000, 16000}

// FromGains builds a Config over StandardBands from integer slider gains.
func FromGains(gains []int, q float64) (Config, error) {
	if len(gains) != len(StandardBands) {
		return nil, audio.Invalidf("expected %d gains, got %d", len(StandardBands), len(gains))
	}
	if q <= 0 {
		q = DefaultQ
	}
	cfg := make(Config, len(gains))
	for i, g := range gains {
		if g < MinGainDB || g > MaxGainDB {
			return nil, audio.Invalidf("gain %d dB at %g Hz outside [%d, %d]", g, StandardBands[i], MinGainDB, MaxGainDB)
		}
		cfg[i] = Band{FrequencyHz: StandardBands[i], GainDB: float64(g), Q: q}
	}
	return cfg, nil
}

// Flat reports whether every band has zero gain.
func (c Config) Flat() bool {
	for _, b := range c {
		if b.GainDB != 0 {
			return false
		}
	}
	return true
}

func (c Config) String() string {
	parts := make([]string, len(c))
	for i, b := range c {
		parts[i] = fmt.Sprintf("%gHz:%+gdB", b.FrequencyHz, b.GainDB)
	}
	return strings.Join(parts, " ")
}

// Apply filters buf through each non-zero band in order and returns a new
// buffer of the same length and rate. buf is not modified. A band whose
// design fails aborts the whole call.
func Apply(buf audio.Buffer, cfg Config) (audio.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return audio.Buffer{}, err
	}

	out := buf.Clone()
	for _, band := range cfg {
		if band.GainDB == 0 {
			continue
		}
		coeffs, err := DesignPeaking(band.FrequencyHz, band.GainDB, band.Q, buf.SampleRate)
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("band %g Hz: %w", band.FrequencyHz, err)
		}
		out.Samples = filter(coeffs, out.Samples)
	}
	return out, nil
}
