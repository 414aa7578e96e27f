package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/TimbreMatch/pkg/logger"
	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service timbre.Service
	config  *ServerConfig
	log     timbre.Logger
	decoder audio.Decoder
	renders *renderCache
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewServer creates a new server instance
func NewServer(service timbre.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().WithPrefix("http"),
		decoder: audio.NewFileDecoder(),
		renders: newRenderCache(16),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var de *audio.DecodeError
	switch {
	case errors.Is(err, timbre.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, timbre.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, action string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Errorf("Failed to %s: %v", action, err)
	} else {
		s.log.Warnf("Failed to %s: %v", action, err)
	}
	s.respondError(w, code, fmt.Sprintf("Failed to %s: %v", action, err))
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.log.Warnf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "TimbreMatch API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":         "GET /health",
			"metrics":        "GET /api/health/metrics",
			"tracks":         "GET /api/tracks",
			"addTracks":      "POST /api/tracks",
			"getTrack":       "GET /api/tracks/{id}",
			"deleteTrack":    "DELETE /api/tracks/{id}",
			"compare":        "POST /api/similarity/compare",
			"rank":           "POST /api/similarity/rank",
			"features":       "POST /api/features",
			"equalize":       "POST /api/equalize",
			"exportPlaylist": "GET /api/playlist",
			"importPlaylist": "POST /api/playlist",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		s.log.Errorf("Failed to get stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:         "healthy",
		DatabasePath:   s.config.DBPath,
		TrackCount:     stats.Tracks,
		CachedFeatures: stats.CachedFeatures,
		EqualizerCache: s.renders.len(),
	})
}

// handleListTracks handles GET /api/tracks?filter=
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks()
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("filter"))); q != "" {
		kept := tracks[:0]
		for _, t := range tracks {
			if strings.Contains(strings.ToLower(t.Title), q) {
				kept = append(kept, t)
			}
		}
		tracks = kept
	}
	if tracks == nil {
		tracks = []models.Track{}
	}

	s.respondJSON(w, http.StatusOK, ListTracksResponse{
		Tracks: tracks,
		Count:  len(tracks),
	})
}

// handleAddTracks handles POST /api/tracks
func (s *Server) handleAddTracks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req AddTracksRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := AddTracksResponse{Added: []models.Track{}}
	if req.Title != "" {
		track, created, err := s.service.AddTrack(ctx, req.Paths[0], req.Title)
		if err != nil {
			s.respondServiceError(w, "add track", err)
			return
		}
		if created {
			resp.Added = append(resp.Added, *track)
		}
	} else {
		paths, err := utils.ExpandAudioPaths(req.Paths, audio.Extensions...)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		added, failures, err := s.service.AddTracks(ctx, paths)
		if err != nil {
			s.respondServiceError(w, "add tracks", err)
			return
		}
		resp.Added = append(resp.Added, added...)
		resp.Failures = failures
	}
	resp.Count = len(resp.Added)

	s.log.Infof("Added %d track(s), %d failure(s)", resp.Count, len(resp.Failures))
	s.respondJSON(w, http.StatusCreated, resp)
}

// handleGetTrack handles GET /api/tracks/{id}
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request, id string) {
	track, err := s.service.GetTrack(id)
	if err != nil {
		s.log.Warnf("Track not found: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", id))
		return
	}
	s.respondJSON(w, http.StatusOK, track)
}

// handleDeleteTrack handles DELETE /api/tracks/{id}
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request, id string) {
	track, err := s.service.GetTrack(id)
	if err != nil {
		s.log.Warnf("Track not found for deletion: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", id))
		return
	}

	if err := s.service.DeleteTrack(id); err != nil {
		s.log.Errorf("Failed to delete track %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	s.log.Infof("Deleted track: %s (ID: %s)", track.Title, id)
	s.respondJSON(w, http.StatusOK, DeleteTrackResponse{
		Message: "Track deleted successfully",
		ID:      id,
	})
}

// handleCompare handles POST /api/similarity/compare
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req CompareRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	scores, err := s.service.Compare(ctx, req.A, req.B)
	if err != nil {
		s.respondServiceError(w, "compare tracks", err)
		return
	}
	s.respondJSON(w, http.StatusOK, scores)
}

// handleRank handles POST /api/similarity/rank
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req RankRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		res *models.RankResult
		err error
	)
	if len(req.Candidates) == 0 {
		res, err = s.service.RankLibrary(ctx, req.Reference, nil)
	} else {
		res, err = s.service.Rank(ctx, req.Reference, req.Candidates, nil)
	}
	if err != nil {
		s.respondServiceError(w, "rank tracks", err)
		return
	}

	rows := models.FilterByTitle(res.Sorted(), req.Filter)
	if req.Top > 0 && len(rows) > req.Top {
		rows = rows[:req.Top]
	}
	dtos := make([]RankedDTO, len(rows))
	for i, row := range rows {
		dtos[i] = RankedDTO{
			Candidate: row.Candidate,
			Title:     row.Title,
			Score:     row.Score,
			Percent:   row.Percent(),
		}
	}

	s.log.Infof("Rank complete: %d results, %d failures", len(dtos), len(res.Failures))
	s.respondJSON(w, http.StatusOK, RankResponse{
		Reference: res.Reference,
		Results:   dtos,
		Failures:  res.Failures,
		Count:     len(dtos),
	})
}

// handleFeatures handles POST /api/features
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req FeaturesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Ref == "" {
		s.respondError(w, http.StatusBadRequest, "ref is required")
		return
	}

	summary, err := s.service.Features(ctx, req.Ref)
	if err != nil {
		s.respondServiceError(w, "extract features", err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

// handleEqualize handles POST /api/equalize. A JSON body equalizes a track
// known to the server; a multipart upload is equalized and returned as WAV.
func (s *Server) handleEqualize(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		s.handleEqualizeUpload(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req EqualizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.Equalize(ctx, req.Ref, req.Gains, req.Output)
	if err != nil {
		s.respondServiceError(w, "equalize", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleEqualizeUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.log.Warnf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	gains, err := parseGains(r.FormValue("gains"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !audio.SupportedExtension(header.Filename) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported audio format %q", ext))
		return
	}
	tempFile, err := utils.SaveTemp(s.config.TempDir, "upload-*"+ext, file)
	if err != nil {
		s.log.Errorf("Failed to save upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	defer os.Remove(tempFile)

	buf, err := s.decoder.Decode(ctx, tempFile)
	if err != nil {
		s.respondServiceError(w, "decode upload", err)
		return
	}

	key := audio.ContentKey(*buf) + "|" + formatGains(gains)
	if data, ok := s.renders.get(key); ok {
		s.log.Debugf("Equalizer cache hit for %s", header.Filename)
		s.respondWAV(w, data, "hit")
		return
	}

	out, err := s.service.EqualizeBuffer(*buf, gains)
	if err != nil {
		s.respondServiceError(w, "equalize", err)
		return
	}

	outFile, err := utils.SaveTemp(s.config.TempDir, "render-*.wav", bytes.NewReader(nil))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to render output")
		return
	}
	defer os.Remove(outFile)
	if err := audio.WriteWAVFile(outFile, out); err != nil {
		s.log.Errorf("Failed to write WAV: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to render output")
		return
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to render output")
		return
	}

	s.renders.put(key, data)
	s.log.Infof("Equalized upload %s (%d samples)", header.Filename, len(out.Samples))
	s.respondWAV(w, data, "miss")
}

func (s *Server) respondWAV(w http.ResponseWriter, data []byte, cache string) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Render-Cache", cache)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warnf("Failed to write WAV response: %v", err)
	}
}

// parseGains reads "0,3,-2,0,1". An empty value means all bands flat.
func parseGains(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return make([]int, 5), nil
	}
	parts := strings.Split(v, ",")
	gains := make([]int, len(parts))
	for i, p := range parts {
		g, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid gain %q", p)
		}
		gains[i] = g
	}
	return gains, nil
}

func formatGains(gains []int) string {
	parts := make([]string, len(gains))
	for i, g := range gains {
		parts[i] = strconv.Itoa(g)
	}
	return strings.Join(parts, ",")
}

// handleExportPlaylist handles GET /api/playlist
func (s *Server) handleExportPlaylist(w http.ResponseWriter, r *http.Request) {
	tempFile, err := utils.SaveTemp(s.config.TempDir, "playlist-*.json", bytes.NewReader(nil))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to export playlist")
		return
	}
	defer os.Remove(tempFile)

	n, err := s.service.ExportPlaylist(tempFile)
	if err != nil {
		s.respondServiceError(w, "export playlist", err)
		return
	}
	data, err := os.ReadFile(tempFile)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to export playlist")
		return
	}

	s.log.Infof("Exported playlist with %d entries", n)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="playlist.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleImportPlaylist handles POST /api/playlist
func (s *Server) handleImportPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req ImportPlaylistRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	added, failures, err := s.service.ImportPlaylist(ctx, req.Path)
	if err != nil {
		s.respondServiceError(w, "import playlist", err)
		return
	}
	if added == nil {
		added = []models.Track{}
	}
	s.respondJSON(w, http.StatusOK, AddTracksResponse{
		Added:    added,
		Failures: failures,
		Count:    len(added),
	})
}

// handleTracks routes requests to /api/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleAddTracks(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTrack routes requests to /api/tracks/{id}
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(r.URL.Path[len("/api/tracks/"):], "/")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Track ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetTrack(w, r, id)
	case http.MethodDelete:
		s.handleDeleteTrack(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handlePlaylist routes requests to /api/playlist
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleExportPlaylist(w, r)
	case http.MethodPost:
		s.handleImportPlaylist(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// postOnly rejects anything but POST
func (s *Server) postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
