package timbre

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/himanishpuri/TimbreMatch/pkg/logger"
	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/equalizer"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/playlist"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
	"github.com/himanishpuri/TimbreMatch/pkg/utils"
)

// timbreService is the default implementation of the Service interface.
type timbreService struct {
	storage   Storage
	decoder   audio.Decoder
	memory    *features.MemoryCache
	extractor *features.Extractor
	engine    *similarity.Engine
	log       Logger
	config    *Config

	// last equalizer output per source, removed when superseded
	eqMu      sync.Mutex
	eqOutputs map[string]string
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = audio.NewFileDecoder()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	memory := features.NewMemoryCache()
	var cache features.Cache = memory
	if cfg.PersistFeatures {
		if back := stor.FeatureCache(cfg.Logger); back != nil {
			cache = features.NewTieredCache(memory, back)
		}
	}

	extractor, err := features.NewExtractor(cache, cfg.Analysis)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis parameters: %w", err)
	}

	engine := similarity.NewEngine(cfg.Decoder, extractor, similarity.Options{
		Weights: cfg.Weights,
		Alpha:   cfg.Alpha,
		DTW:     similarity.NewDTW(cfg.DTWRadius),
		Workers: cfg.Workers,
		Logger:  cfg.Logger,
	})

	return &timbreService{
		storage:   stor,
		decoder:   cfg.Decoder,
		memory:    memory,
		extractor: extractor,
		engine:    engine,
		log:       cfg.Logger,
		config:    cfg,
		eqOutputs: make(map[string]string),
	}, nil
}

// canonicalPath is the cache and library identity of a file.
func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// resolve maps a track reference to its canonical path and display title.
func (s *timbreService) resolve(ref string) (string, string, error) {
	if t, err := s.storage.GetTrackByID(ref); err == nil {
		return t.Path, t.Title, nil
	}
	path := canonicalPath(ref)
	if t, err := s.storage.GetTrackByPath(path); err == nil {
		return t.Path, t.Title, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrTrackNotFound, ref)
	}
	return path, audio.TitleFor(path), nil
}

// AddTrack decodes the file once to learn its duration and registers it.
// An empty title falls back to the embedded tag title, then the file name.
func (s *timbreService) AddTrack(ctx context.Context, path, title string) (*models.Track, bool, error) {
	path = canonicalPath(path)
	s.log.Infof("Adding track: %s", path)

	if existing, err := s.storage.GetTrackByPath(path); err == nil {
		s.log.Infof("Already in library: %s", existing.ID)
		return existing, false, nil
	}

	buf, err := s.decoder.Decode(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if title == "" {
		title = audio.TitleFor(path)
	}

	track, created, err := s.storage.AddTrack(path, title, buf.Duration(), buf.SampleRate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to register track: %w", err)
	}
	s.log.Infof("Registered %q (%s, %s)", track.Title, track.ID, models.FormatDuration(track.DurationSeconds))
	return &track, created, nil
}

// AddTracks adds every path, skipping missing files and ones already in the
// library. Failures are collected rather than aborting the batch.
func (s *timbreService) AddTracks(ctx context.Context, paths []string) ([]models.Track, []models.CandidateFailure, error) {
	var added []models.Track
	var failures []models.CandidateFailure
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return added, failures, err
		}
		if _, err := os.Stat(p); err != nil {
			failures = append(failures, models.CandidateFailure{Candidate: p, Reason: err.Error()})
			continue
		}
		track, created, err := s.AddTrack(ctx, p, "")
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return added, failures, err
			}
			s.log.Warnf("Failed to add %s: %v", p, err)
			failures = append(failures, models.CandidateFailure{Candidate: p, Reason: err.Error()})
			continue
		}
		if created {
			added = append(added, *track)
		}
	}
	return added, failures, nil
}

func (s *timbreService) GetTrack(id string) (*models.Track, error) {
	return s.storage.GetTrackByID(id)
}

func (s *timbreService) ListTracks() ([]models.Track, error) {
	return s.storage.ListTracks()
}

// DeleteTrack removes the track and forgets its cached features.
func (s *timbreService) DeleteTrack(id string) error {
	t, err := s.storage.GetTrackByID(id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTrackByID(id); err != nil {
		return err
	}
	s.extractor.Invalidate(t.Path)
	return nil
}

func (s *timbreService) Compare(ctx context.Context, refA, refB string) (models.ScoreBreakdown, error) {
	pathA, _, err := s.resolve(refA)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}
	pathB, _, err := s.resolve(refB)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}
	return s.engine.Compare(ctx, pathA, pathB)
}

// Rank scores candidates against reference. Unresolvable candidates are
// reported as failures alongside those that fail to decode.
func (s *timbreService) Rank(ctx context.Context, reference string, candidates []string, progress similarity.ProgressFunc) (*models.RankResult, error) {
	refPath, _, err := s.resolve(reference)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string, len(candidates))
	paths := make([]string, 0, len(candidates))
	var unresolved []models.CandidateFailure
	for _, c := range candidates {
		p, title, err := s.resolve(c)
		if err != nil {
			unresolved = append(unresolved, models.CandidateFailure{Candidate: c, Reason: err.Error()})
			continue
		}
		titles[p] = title
		paths = append(paths, p)
	}

	s.log.Infof("Ranking %d candidates against %s", len(paths), refPath)
	engine := s.engine
	if progress != nil {
		engine = engine.WithProgress(progress)
	}
	res, err := engine.Rank(ctx, refPath, paths)
	if err != nil {
		return nil, err
	}

	res.Failures = append(unresolved, res.Failures...)
	res.Titles = make(map[string]string, len(res.Scores))
	for p := range res.Scores {
		res.Titles[p] = titles[p]
	}
	s.log.Infof("Ranked %d candidates, %d failed", len(res.Scores), len(res.Failures))
	return res, nil
}

// RankLibrary ranks every library track against reference.
func (s *timbreService) RankLibrary(ctx context.Context, reference string, progress similarity.ProgressFunc) (*models.RankResult, error) {
	tracks, err := s.storage.ListTracks()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return s.Rank(ctx, reference, ids, progress)
}

func (s *timbreService) Features(ctx context.Context, ref string) (*FeatureSummary, error) {
	path, _, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	buf, err := s.decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	mfcc, err := s.extractor.MeanMFCC(path, buf)
	if err != nil {
		return nil, err
	}
	chroma, err := s.extractor.MeanChroma(path, buf)
	if err != nil {
		return nil, err
	}
	blocks, err := s.extractor.BlockMFCCDelta(*buf)
	if err != nil {
		return nil, err
	}
	summary := &FeatureSummary{
		Path:        path,
		SampleRate:  buf.SampleRate,
		Duration:    buf.Duration(),
		MFCC:        mfcc,
		Chroma:      chroma,
		BlockFrames: len(blocks),
	}
	if len(blocks) > 0 {
		summary.BlockWidth = len(blocks[0])
	}
	return summary, nil
}

// Equalize filters the original decoded audio of ref, never an earlier
// equalised result, and writes it as a normalised 16-bit WAV. With an empty
// outPath a temp file is used and the previous temp output for the same
// source is removed.
func (s *timbreService) Equalize(ctx context.Context, ref string, gains []int, outPath string) (*EqualizeResult, error) {
	path, _, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	cfg, err := equalizer.FromGains(gains, s.config.EqualizerQ)
	if err != nil {
		return nil, err
	}

	buf, err := s.decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	out, err := equalizer.Apply(*buf, cfg)
	if err != nil {
		return nil, err
	}

	temp := outPath == ""
	if temp {
		if err := utils.MakeDir(s.config.TempDir); err != nil {
			return nil, fmt.Errorf("creating temp dir: %w", err)
		}
		f, err := os.CreateTemp(s.config.TempDir, "timbre-eq-*.wav")
		if err != nil {
			return nil, fmt.Errorf("creating temp output: %w", err)
		}
		outPath = f.Name()
		f.Close()
	}
	if err := audio.WriteWAVFile(outPath, out); err != nil {
		return nil, err
	}

	if temp {
		s.eqMu.Lock()
		prev := s.eqOutputs[path]
		s.eqOutputs[path] = outPath
		s.eqMu.Unlock()
		if prev != "" && prev != outPath {
			if err := utils.DeleteFile(prev); err != nil && !os.IsNotExist(err) {
				s.log.Warnf("Failed to remove previous equalizer output %s: %v", prev, err)
			}
		}
	}

	s.log.Infof("Equalized %s [%s] -> %s", path, cfg, outPath)
	return &EqualizeResult{
		Source:     path,
		OutputPath: outPath,
		Bands:      cfg,
		Samples:    len(out.Samples),
		SampleRate: out.SampleRate,
	}, nil
}

func (s *timbreService) EqualizeBuffer(buf audio.Buffer, gains []int) (audio.Buffer, error) {
	cfg, err := equalizer.FromGains(gains, s.config.EqualizerQ)
	if err != nil {
		return audio.Buffer{}, err
	}
	return equalizer.Apply(buf, cfg)
}

func (s *timbreService) ExportPlaylist(path string) (int, error) {
	tracks, err := s.storage.ListTracks()
	if err != nil {
		return 0, err
	}
	records := make([]models.PlaylistRecord, len(tracks))
	for i, t := range tracks {
		records[i] = t.Record()
	}
	if err := playlist.Save(path, records); err != nil {
		return 0, err
	}
	s.log.Infof("Saved %d playlist entries to %s", len(records), path)
	return len(records), nil
}

// ImportPlaylist loads the records, re-decodes each file and adds the ones
// that decode to the library, keeping the saved titles.
func (s *timbreService) ImportPlaylist(ctx context.Context, path string) ([]models.Track, []models.CandidateFailure, error) {
	records, err := playlist.Load(path)
	if err != nil {
		return nil, nil, err
	}
	entries, failures, err := playlist.Restore(ctx, records, s.decoder)
	if err != nil {
		return nil, failures, err
	}

	var added []models.Track
	for _, e := range entries {
		p := canonicalPath(e.Record.Path)
		title := e.Record.Title
		if title == "" {
			title = audio.TitleFor(p)
		}
		track, created, err := s.storage.AddTrack(p, title, e.Buffer.Duration(), e.Buffer.SampleRate)
		if err != nil {
			failures = append(failures, models.CandidateFailure{Candidate: e.Record.Path, Reason: err.Error()})
			continue
		}
		if created {
			added = append(added, track)
		}
	}
	s.log.Infof("Imported %d of %d playlist entries", len(added), len(records))
	return added, failures, nil
}

func (s *timbreService) InvalidateFeatures(ref string) error {
	path, _, err := s.resolve(ref)
	if err != nil {
		return err
	}
	s.extractor.Invalidate(path)
	return nil
}

func (s *timbreService) ClearCache() error {
	s.extractor.ClearCache()
	return nil
}

func (s *timbreService) Stats() (*Stats, error) {
	n, err := s.storage.TrackCount()
	if err != nil {
		return nil, err
	}
	return &Stats{Tracks: n, CachedFeatures: s.memory.Len()}, nil
}

// Close releases all resources held by the service.
func (s *timbreService) Close() error {
	return s.storage.Close()
}
