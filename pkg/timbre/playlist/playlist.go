package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
)

// file is the on-disk layout: {"playlist": [{path, title, duration}, ...]}.
type file struct {
	Playlist []models.PlaylistRecord `json:"playlist"`
}

// Encode renders records in the playlist file format.
func Encode(records []models.PlaylistRecord) ([]byte, error) {
	if records == nil {
		records = []models.PlaylistRecord{}
	}
	return json.MarshalIndent(file{Playlist: records}, "", "  ")
}

// Decode parses a playlist document. A document without a "playlist" key
// yields an empty list.
func Decode(data []byte) ([]models.PlaylistRecord, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing playlist: %w", err)
	}
	if f.Playlist == nil {
		return []models.PlaylistRecord{}, nil
	}
	return f.Playlist, nil
}

// Save writes records to path, creating parent directories.
func Save(path string, records []models.PlaylistRecord) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating playlist dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing playlist: %w", err)
	}
	return nil
}

// Load restores the lightweight records only; no audio is decoded.
func Load(path string) ([]models.PlaylistRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}
	return Decode(data)
}

// Entry is a restored record together with its decoded audio.
type Entry struct {
	Record models.PlaylistRecord
	Buffer *audio.Buffer
}

// Restore decodes audio for each record. Records that fail to decode are
// returned as failures and the rest are kept in order. Only a cancelled
// context stops the restore early.
func Restore(ctx context.Context, records []models.PlaylistRecord, dec audio.Decoder) ([]Entry, []models.CandidateFailure, error) {
	entries := make([]Entry, 0, len(records))
	var failures []models.CandidateFailure

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return entries, failures, err
		}
		buf, err := dec.Decode(ctx, rec.Path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return entries, failures, err
			}
			failures = append(failures, models.CandidateFailure{Candidate: rec.Path, Reason: err.Error()})
			continue
		}
		// the decoded signal is authoritative for duration
		rec.DurationSeconds = buf.Duration()
		entries = append(entries, Entry{Record: rec, Buffer: buf})
	}
	return entries, failures, nil
}
