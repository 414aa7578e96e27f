package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PlaylistRecord is the persisted form of one playlist entry. Audio data is
// never stored; it is re-decoded from Path on load.
type PlaylistRecord struct {
	Path            string  `json:"path" yaml:"path"`
	Title           string  `json:"title" yaml:"title"`
	DurationSeconds float64 `json:"duration" yaml:"duration"`
}

// Track represents a track entry in the library.
type Track struct {
	ID              string    `json:"id" yaml:"id"` // UUID
	Path            string    `json:"path" yaml:"path"`
	Title           string    `json:"title" yaml:"title"`
	DurationSeconds float64   `json:"duration" yaml:"duration"`
	SampleRate      int       `json:"sample_rate" yaml:"sample_rate"`
	AddedAt         time.Time `json:"added_at" yaml:"added_at"`
}

func (t Track) Record() PlaylistRecord {
	return PlaylistRecord{Path: t.Path, Title: t.Title, DurationSeconds: t.DurationSeconds}
}

// ScoreBreakdown holds every similarity component for one pair of tracks.
// MFCCCosine compares mean MFCC vectors; it is informational and not part
// of Combined.
type ScoreBreakdown struct {
	DTWDistance      float64 `json:"dtw_distance" yaml:"dtw_distance"`
	DTWSimilarity    float64 `json:"dtw_similarity" yaml:"dtw_similarity"`
	ChromaSimilarity float64 `json:"chroma_similarity" yaml:"chroma_similarity"`
	MFCCCosine       float64 `json:"mfcc_cosine" yaml:"mfcc_cosine"`
	Combined         float64 `json:"combined" yaml:"combined"`
}

// CandidateFailure records why a candidate could not be scored.
type CandidateFailure struct {
	Candidate string `json:"candidate" yaml:"candidate"`
	Reason    string `json:"reason" yaml:"reason"`
}

// RankResult is the outcome of ranking a reference against candidates.
// Candidates that failed appear in Failures and not in Scores.
type RankResult struct {
	Reference string             `json:"reference" yaml:"reference"`
	Scores    map[string]float64 `json:"scores" yaml:"scores"`
	Failures  []CandidateFailure `json:"failures,omitempty" yaml:"failures,omitempty"`

	// Titles optionally maps candidates to display titles.
	Titles map[string]string `json:"titles,omitempty" yaml:"titles,omitempty"`
}

// RankedScore is one row of a sorted ranking.
type RankedScore struct {
	Candidate string  `json:"candidate" yaml:"candidate"`
	Title     string  `json:"title,omitempty" yaml:"title,omitempty"`
	Score     float64 `json:"score" yaml:"score"`
}

// Percent renders the score as shown in listings, one decimal place.
func (r RankedScore) Percent() string {
	return fmt.Sprintf("%.1f%%", r.Score*100)
}

// Sorted returns the scores ordered by descending score, ties broken by
// candidate identity so the order is stable.
func (r *RankResult) Sorted() []RankedScore {
	out := make([]RankedScore, 0, len(r.Scores))
	for c, s := range r.Scores {
		out = append(out, RankedScore{Candidate: c, Title: r.Titles[c], Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Candidate < out[j].Candidate
	})
	return out
}

// FilterByTitle keeps rows whose title contains query, case-insensitively.
// An empty query keeps everything.
func FilterByTitle(rows []RankedScore, query string) []RankedScore {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rows
	}
	out := make([]RankedScore, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Title), q) {
			out = append(out, r)
		}
	}
	return out
}

// FormatDuration renders seconds as MM:SS.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
