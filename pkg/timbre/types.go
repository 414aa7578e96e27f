package timbre

import (
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/equalizer"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/storage"
)

var (
	ErrInvalidInput  = audio.ErrInvalidInput
	ErrTrackNotFound = storage.ErrTrackNotFound
)

type DecodeError = audio.DecodeError

// FeatureSummary describes the features computed for one track.
type FeatureSummary struct {
	Path        string          `json:"path" yaml:"path"`
	SampleRate  int             `json:"sample_rate" yaml:"sample_rate"`
	Duration    float64         `json:"duration" yaml:"duration"`
	MFCC        features.Vector `json:"mfcc" yaml:"mfcc"`
	Chroma      features.Vector `json:"chroma" yaml:"chroma"`
	BlockFrames int             `json:"block_frames" yaml:"block_frames"`
	BlockWidth  int             `json:"block_width" yaml:"block_width"`
}

// EqualizeResult points at the written, peak-normalised WAV.
type EqualizeResult struct {
	Source     string           `json:"source" yaml:"source"`
	OutputPath string           `json:"output_path" yaml:"output_path"`
	Bands      equalizer.Config `json:"bands" yaml:"bands"`
	Samples    int              `json:"samples" yaml:"samples"`
	SampleRate int              `json:"sample_rate" yaml:"sample_rate"`
}

type Stats struct {
	Tracks         int `json:"tracks" yaml:"tracks"`
	CachedFeatures int `json:"cached_features" yaml:"cached_features"`
}
