package main

import (
	"fmt"

	"github.com/himanishpuri/TimbreMatch/pkg/models"
)

// MaxRankCandidates bounds one ranking request.
const MaxRankCandidates = 1000

// AddTracksRequest is the request body for POST /api/tracks
type AddTracksRequest struct {
	// Paths are files or directories on the server host
	Paths []string `json:"paths"`

	// Title is optional and only allowed with a single file
	Title string `json:"title,omitempty"`
}

// Validate checks if the request is valid
func (r *AddTracksRequest) Validate() error {
	if len(r.Paths) == 0 {
		return fmt.Errorf("paths cannot be empty")
	}
	if r.Title != "" && len(r.Paths) != 1 {
		return fmt.Errorf("title requires exactly one path")
	}
	return nil
}

// AddTracksResponse is the response for POST /api/tracks
type AddTracksResponse struct {
	Added    []models.Track            `json:"added"`
	Failures []models.CandidateFailure `json:"failures,omitempty"`
	Count    int                       `json:"count"`
}

// ListTracksResponse is the response for GET /api/tracks
type ListTracksResponse struct {
	Tracks []models.Track `json:"tracks"`
	Count  int            `json:"count"`
}

// DeleteTrackResponse is the response for DELETE /api/tracks/{id}
type DeleteTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// CompareRequest is the request body for POST /api/similarity/compare
type CompareRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (r *CompareRequest) Validate() error {
	if r.A == "" || r.B == "" {
		return fmt.Errorf("a and b are required")
	}
	return nil
}

// RankRequest is the request body for POST /api/similarity/rank. An empty
// candidate list ranks the whole library.
type RankRequest struct {
	Reference  string   `json:"reference"`
	Candidates []string `json:"candidates,omitempty"`
	Filter     string   `json:"filter,omitempty"`
	Top        int      `json:"top,omitempty"`
}

// Validate checks if the request is valid
func (r *RankRequest) Validate() error {
	if r.Reference == "" {
		return fmt.Errorf("reference is required")
	}
	if len(r.Candidates) > MaxRankCandidates {
		return fmt.Errorf("too many candidates: %d (maximum: %d)", len(r.Candidates), MaxRankCandidates)
	}
	if r.Top < 0 {
		return fmt.Errorf("top cannot be negative")
	}
	return nil
}

// RankResponse is the response for POST /api/similarity/rank
type RankResponse struct {
	Reference string                    `json:"reference"`
	Results   []RankedDTO               `json:"results"`
	Failures  []models.CandidateFailure `json:"failures,omitempty"`
	Count     int                       `json:"count"`
}

// RankedDTO is one ranked candidate
type RankedDTO struct {
	Candidate string  `json:"candidate"`
	Title     string  `json:"title,omitempty"`
	Score     float64 `json:"score"`
	Percent   string  `json:"percent"`
}

// FeaturesRequest is the request body for POST /api/features
type FeaturesRequest struct {
	Ref string `json:"ref"`
}

// EqualizeRequest is the JSON request body for POST /api/equalize. Uploads
// use multipart fields "audio" and "gains" instead.
type EqualizeRequest struct {
	Ref    string `json:"ref"`
	Gains  []int  `json:"gains"`
	Output string `json:"output,omitempty"`
}

func (r *EqualizeRequest) Validate() error {
	if r.Ref == "" {
		return fmt.Errorf("ref is required")
	}
	return nil
}

// ImportPlaylistRequest is the request body for POST /api/playlist
type ImportPlaylistRequest struct {
	Path string `json:"path"`
}

// MetricsResponse provides server health and library metrics
type MetricsResponse struct {
	Status         string `json:"status"`
	DatabasePath   string `json:"database_path"`
	TrackCount     int    `json:"track_count"`
	CachedFeatures int    `json:"cached_features"`
	EqualizerCache int    `json:"equalizer_cache"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
