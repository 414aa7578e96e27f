package timbre

import (
	"context"

	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
)

// Service is the library-level API used by the CLI, the HTTP server and
// embedders. Track references accept a library ID, a library path, or a
// path to an audio file that is not in the library.
type Service interface {
	AddTrack(ctx context.Context, path, title string) (*models.Track, bool, error)
	AddTracks(ctx context.Context, paths []string) ([]models.Track, []models.CandidateFailure, error)
	GetTrack(id string) (*models.Track, error)
	ListTracks() ([]models.Track, error)
	DeleteTrack(id string) error

	Compare(ctx context.Context, refA, refB string) (models.ScoreBreakdown, error)
	Rank(ctx context.Context, reference string, candidates []string, progress similarity.ProgressFunc) (*models.RankResult, error)
	RankLibrary(ctx context.Context, reference string, progress similarity.ProgressFunc) (*models.RankResult, error)
	Features(ctx context.Context, ref string) (*FeatureSummary, error)

	Equalize(ctx context.Context, ref string, gains []int, outPath string) (*EqualizeResult, error)
	EqualizeBuffer(buf audio.Buffer, gains []int) (audio.Buffer, error)

	ExportPlaylist(path string) (int, error)
	ImportPlaylist(ctx context.Context, path string) ([]models.Track, []models.CandidateFailure, error)

	InvalidateFeatures(ref string) error
	ClearCache() error
	Stats() (*Stats, error)
	Close() error
}

type Storage interface {
	AddTrack(path, title string, durationSeconds float64, sampleRate int) (models.Track, bool, error)
	GetTrackByID(id string) (*models.Track, error)
	GetTrackByPath(path string) (*models.Track, error)
	ListTracks() ([]models.Track, error)
	DeleteTrackByID(id string) error
	TrackCount() (int, error)
	// FeatureCache returns a persistent cache tier, or nil if unsupported.
	FeatureCache(log Logger) features.Cache
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
