package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/TimbreMatch/pkg/logger"
	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/audio"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/equalizer"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/playlist"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService serves a fixed library; anything else is not found.
type fakeService struct {
	tracks    map[string]models.Track
	rank      *models.RankResult
	eqCalls   int
	lastRefs  []string
	lastGains []int
}

func newFakeService() *fakeService {
	return &fakeService{
		tracks: map[string]models.Track{
			"id-a": {ID: "id-a", Path: "/music/a.wav", Title: "Autumn", DurationSeconds: 61},
			"id-b": {ID: "id-b", Path: "/music/b.wav", Title: "Blue", DurationSeconds: 90},
		},
		rank: &models.RankResult{
			Reference: "/music/a.wav",
			Scores:    map[string]float64{"/music/b.wav": 0.42, "/music/c.wav": 0.9},
			Titles:    map[string]string{"/music/b.wav": "Blue", "/music/c.wav": "Cold"},
			Failures:  []models.CandidateFailure{{Candidate: "/music/d.wav", Reason: "decoding failed"}},
		},
	}
}

func (f *fakeService) AddTrack(ctx context.Context, path, title string) (*models.Track, bool, error) {
	t := models.Track{ID: "id-new", Path: path, Title: title}
	return &t, true, nil
}

func (f *fakeService) AddTracks(ctx context.Context, paths []string) ([]models.Track, []models.CandidateFailure, error) {
	var added []models.Track
	var failures []models.CandidateFailure
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			failures = append(failures, models.CandidateFailure{Candidate: p, Reason: err.Error()})
			continue
		}
		added = append(added, models.Track{ID: "id-" + filepath.Base(p), Path: p, Title: filepath.Base(p)})
	}
	return added, failures, nil
}

func (f *fakeService) GetTrack(id string) (*models.Track, error) {
	t, ok := f.tracks[id]
	if !ok {
		return nil, timbre.ErrTrackNotFound
	}
	return &t, nil
}

func (f *fakeService) ListTracks() ([]models.Track, error) {
	return []models.Track{f.tracks["id-a"], f.tracks["id-b"]}, nil
}

func (f *fakeService) DeleteTrack(id string) error {
	if _, ok := f.tracks[id]; !ok {
		return timbre.ErrTrackNotFound
	}
	delete(f.tracks, id)
	return nil
}

func (f *fakeService) Compare(ctx context.Context, refA, refB string) (models.ScoreBreakdown, error) {
	if refA == "missing" || refB == "missing" {
		return models.ScoreBreakdown{}, fmt.Errorf("%w: missing", timbre.ErrTrackNotFound)
	}
	if refA == "corrupt" {
		return models.ScoreBreakdown{}, &audio.DecodeError{Path: refA, Err: fmt.Errorf("bad header")}
	}
	return models.ScoreBreakdown{DTWSimilarity: 0.5, ChromaSimilarity: 1, Combined: 0.7}, nil
}

func (f *fakeService) Rank(ctx context.Context, reference string, candidates []string, progress similarity.ProgressFunc) (*models.RankResult, error) {
	f.lastRefs = candidates
	return f.rank, nil
}

func (f *fakeService) RankLibrary(ctx context.Context, reference string, progress similarity.ProgressFunc) (*models.RankResult, error) {
	f.lastRefs = nil
	return f.rank, nil
}

func (f *fakeService) Features(ctx context.Context, ref string) (*timbre.FeatureSummary, error) {
	return &timbre.FeatureSummary{Path: ref, SampleRate: 22050, MFCC: make([]float64, 13), Chroma: make([]float64, 12)}, nil
}

func (f *fakeService) Equalize(ctx context.Context, ref string, gains []int, outPath string) (*timbre.EqualizeResult, error) {
	cfg, err := equalizer.FromGains(gains, equalizer.DefaultQ)
	if err != nil {
		return nil, err
	}
	return &timbre.EqualizeResult{Source: ref, OutputPath: "/tmp/out.wav", Bands: cfg}, nil
}

func (f *fakeService) EqualizeBuffer(buf audio.Buffer, gains []int) (audio.Buffer, error) {
	f.eqCalls++
	f.lastGains = gains
	cfg, err := equalizer.FromGains(gains, equalizer.DefaultQ)
	if err != nil {
		return audio.Buffer{}, err
	}
	return equalizer.Apply(buf, cfg)
}

func (f *fakeService) ExportPlaylist(path string) (int, error) {
	tracks, _ := f.ListTracks()
	records := make([]models.PlaylistRecord, len(tracks))
	for i, t := range tracks {
		records[i] = t.Record()
	}
	return len(records), playlist.Save(path, records)
}

func (f *fakeService) ImportPlaylist(ctx context.Context, path string) ([]models.Track, []models.CandidateFailure, error) {
	records, err := playlist.Load(path)
	if err != nil {
		return nil, nil, err
	}
	var added []models.Track
	for _, r := range records {
		added = append(added, models.Track{Path: r.Path, Title: r.Title})
	}
	return added, nil, nil
}

func (f *fakeService) InvalidateFeatures(ref string) error { return nil }
func (f *fakeService) ClearCache() error                   { return nil }
func (f *fakeService) Stats() (*timbre.Stats, error) {
	return &timbre.Stats{Tracks: len(f.tracks), CachedFeatures: 4}, nil
}
func (f *fakeService) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *fakeService, http.Handler) {
	t.Helper()
	svc := newFakeService()
	s := NewServer(svc, &ServerConfig{
		Port:           8080,
		DBPath:         "test.sqlite3",
		TempDir:        t.TempDir(),
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 10 << 20,
	})
	s.log = logger.Discard()
	return s, svc, s.setupRoutes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = doJSON(t, h, http.MethodGet, "/api/health/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 2, m.TrackCount)
	assert.Equal(t, 4, m.CachedFeatures)
	assert.Equal(t, "test.sqlite3", m.DatabasePath)

	rec = doJSON(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackEndpoints(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/tracks?filter=blu", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListTracksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Blue", list.Tracks[0].Title)

	rec = doJSON(t, h, http.MethodGet, "/api/tracks/id-a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Autumn")

	rec = doJSON(t, h, http.MethodGet, "/api/tracks/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/tracks/id-b", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/api/tracks/id-b", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/tracks", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAddTracks(t *testing.T) {
	_, _, h := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.wav"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "y.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), nil, 0o644))

	rec := doJSON(t, h, http.MethodPost, "/api/tracks", AddTracksRequest{Paths: []string{dir, "/nowhere.wav"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp AddTracksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "/nowhere.wav", resp.Failures[0].Candidate)

	rec = doJSON(t, h, http.MethodPost, "/api/tracks", AddTracksRequest{Paths: []string{"/a.wav"}, Title: "Named"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Named")

	rec = doJSON(t, h, http.MethodPost, "/api/tracks", AddTracksRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/tracks", AddTracksRequest{Paths: []string{"/a", "/b"}, Title: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareErrors(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/similarity/compare", CompareRequest{A: "id-a", B: "id-b"})
	require.Equal(t, http.StatusOK, rec.Code)
	var s models.ScoreBreakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 0.7, s.Combined)

	rec = doJSON(t, h, http.MethodPost, "/api/similarity/compare", CompareRequest{A: "missing", B: "id-b"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/similarity/compare", CompareRequest{A: "corrupt", B: "id-b"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/similarity/compare", CompareRequest{A: "id-a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/similarity/compare", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRankEndpoint(t *testing.T) {
	_, svc, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/similarity/rank", RankRequest{Reference: "id-a"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "Cold", resp.Results[0].Title)
	assert.Equal(t, "90.0%", resp.Results[0].Percent)
	assert.Equal(t, "Blue", resp.Results[1].Title)
	assert.Len(t, resp.Failures, 1)
	assert.Nil(t, svc.lastRefs)

	rec = doJSON(t, h, http.MethodPost, "/api/similarity/rank",
		RankRequest{Reference: "id-a", Candidates: []string{"id-b"}, Filter: "BLU"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Blue", resp.Results[0].Title)
	assert.Equal(t, []string{"id-b"}, svc.lastRefs)

	rec = doJSON(t, h, http.MethodPost, "/api/similarity/rank", RankRequest{Reference: "id-a", Top: 1})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = doJSON(t, h, http.MethodPost, "/api/similarity/rank", RankRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func wavUpload(t *testing.T, gains string) (*bytes.Buffer, string) {
	t.Helper()
	sr := 8000
	s := make([]float64, sr/4)
	for i := range s {
		s[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sr))
	}
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, audio.WriteWAVFile(path, audio.Buffer{Samples: s, SampleRate: sr}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("gains", gains))
	fw, err := mw.CreateFormFile("audio", "clip.wav")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestEqualizeUploadUsesRenderCache(t *testing.T) {
	_, svc, h := newTestServer(t)

	post := func(gains string) *httptest.ResponseRecorder {
		body, ct := wavUpload(t, gains)
		req := httptest.NewRequest(http.MethodPost, "/api/equalize", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post("0, 3, 0, 0, 0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "miss", rec.Header().Get("X-Render-Cache"))
	assert.Equal(t, "RIFF", rec.Body.String()[:4])
	assert.Equal(t, []int{0, 3, 0, 0, 0}, svc.lastGains)

	rec = post("0,3,0,0,0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Render-Cache"))
	assert.Equal(t, 1, svc.eqCalls)

	rec = post("0,0,0,0,0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get("X-Render-Cache"))

	rec = post("0,99,0,0,0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("a,b")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEqualizeJSON(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/equalize", EqualizeRequest{Ref: "id-a", Gains: []int{1, 2, 3, 4, 5}})
	require.Equal(t, http.StatusOK, rec.Code)
	var res timbre.EqualizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Bands, 5)
	assert.Equal(t, 3.0, res.Bands[2].GainDB)

	rec = doJSON(t, h, http.MethodPost, "/api/equalize", EqualizeRequest{Ref: "id-a", Gains: []int{1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaylistEndpoints(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/playlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records, err := playlist.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/music/a.wav", records[0].Path)

	path := filepath.Join(t.TempDir(), "mix.json")
	require.NoError(t, playlist.Save(path, records[:1]))
	rec = doJSON(t, h, http.MethodPost, "/api/playlist", ImportPlaylistRequest{Path: path})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AddTracksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = doJSON(t, h, http.MethodPost, "/api/playlist", ImportPlaylistRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, _, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tracks", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRenderCacheEvictsOldest(t *testing.T) {
	c := newRenderCache(2)
	c.put("a", []byte("1"))
	c.put("b", []byte("2"))
	c.put("c", []byte("3"))

	_, ok := c.get("a")
	assert.False(t, ok)
	got, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), got)
	assert.Equal(t, 2, c.len())
}
