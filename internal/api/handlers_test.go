package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ergoscan/internal/calibration"
	"github.com/banshee-data/ergoscan/internal/config"
	"github.com/banshee-data/ergoscan/internal/db"
	"github.com/banshee-data/ergoscan/internal/fsutil"
	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/pose"
	"github.com/banshee-data/ergoscan/internal/record"
	"github.com/banshee-data/ergoscan/internal/scan"
	"github.com/banshee-data/ergoscan/internal/testutil"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

func synthetic(n int) []measure.MeasurementPoint {
	return testutil.SyntheticMeasurements(testutil.NewRand(3), n)
}

func TestProcess_WithoutDB(t *testing.T) {
	s := newTestServer(t, false)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/process", processRequest{
		UserID:       "test_user",
		Measurements: synthetic(60),
	})
	rec := serve(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp processResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, "test_user", resp.Profile.UserID)
	assert.Empty(t, resp.ProfileID)
	assert.Equal(t, 60, resp.Report.InitialCount)
	assert.Greater(t, resp.Profile.Height, 0.0)
	assert.Greater(t, resp.Report.QualityScore, 0.0)
}

func TestProcess_RejectsInvalidPoints(t *testing.T) {
	s := newTestServer(t, false)
	points := synthetic(12)
	points[3].Confidence = 1.5
	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/process", processRequest{Measurements: points}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, s, httptest.NewRequest(http.MethodPost, "/api/process", bytes.NewBufferString(`{"bogus": 1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcess_StoresAndServesProfiles(t *testing.T) {
	s := newTestServer(t, true)
	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/process", processRequest{
		UserID:       "u42",
		Measurements: synthetic(60),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp processResponse
	testutil.DecodeJSON(t, rec, &resp)
	require.NotEmpty(t, resp.ProfileID)

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/api/profiles/"+resp.ProfileID+"?units=m", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got profileResponse
	testutil.DecodeJSON(t, rec, &got)
	assert.Equal(t, "m", got.Units)
	assert.Equal(t, resp.ProfileID, got.ID)
	assert.InDelta(t, resp.Profile.Height/100, got.Profile.Height, 1e-9)
	assert.InDelta(t, resp.Profile.HipWidth/100, got.Profile.HipWidth, 1e-9)
	assert.Equal(t, resp.Profile.MeasurementCount, got.Profile.MeasurementCount)

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/api/profiles?user_id=u42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Profiles []db.StoredProfile `json:"profiles"`
	}
	testutil.DecodeJSON(t, rec, &list)
	require.Len(t, list.Profiles, 1)
	assert.Equal(t, resp.ProfileID, list.Profiles[0].ID)

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/api/profiles?user_id=nobody", nil))
	testutil.DecodeJSON(t, rec, &list)
	assert.Empty(t, list.Profiles)
}

func TestGetProfile_Errors(t *testing.T) {
	withDB := newTestServer(t, true)
	noDB := newTestServer(t, false)

	tests := []struct {
		name string
		s    *Server
		path string
		want int
	}{
		{"invalid units", withDB, "/api/profiles/abc?units=furlong", http.StatusBadRequest},
		{"unknown id", withDB, "/api/profiles/abc", http.StatusNotFound},
		{"no database", noDB, "/api/profiles/abc", http.StatusServiceUnavailable},
		{"no database list", noDB, "/api/profiles", http.StatusServiceUnavailable},
		{"bad limit", withDB, "/api/profiles?limit=-1", http.StatusBadRequest},
		{"unknown landmark set", withDB, "/api/landmarks/abc", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.s, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestNormalize(t *testing.T) {
	s := newTestServer(t, false)
	target := 1.75
	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/normalize", normalizeRequest{
		Landmarks:    standingLandmarks(),
		PoseType:     pose.PoseTPose,
		TargetHeight: &target,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp normalizeResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, pose.PoseTPose, resp.Pose)
	require.Len(t, resp.Normalized, pose.SchemaSize)
	assert.Empty(t, resp.SetID)

	points := pose.Positions(resp.Normalized)
	assert.InDelta(t, target, pose.BodyHeight(points, nil), 1e-3)
}

func TestNormalize_StoreLandmarkSet(t *testing.T) {
	s := newTestServer(t, true)
	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/normalize", normalizeRequest{
		Landmarks: standingLandmarks(),
		UserID:    "u1",
		Store:     true,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp normalizeResponse
	testutil.DecodeJSON(t, rec, &resp)
	require.NotEmpty(t, resp.SetID)

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, "/api/landmarks/"+resp.SetID, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var set db.LandmarkSet
	testutil.DecodeJSON(t, rec, &set)
	assert.Equal(t, "u1", set.UserID)
	assert.True(t, set.Normalized)
	assert.Len(t, set.Landmarks, pose.SchemaSize)
}

func TestNormalize_Errors(t *testing.T) {
	s := newTestServer(t, false)
	zero := 0.0
	dup := standingLandmarks()
	dup[1].Name = dup[0].Name

	tests := []struct {
		name string
		body normalizeRequest
		want int
	}{
		{"no landmarks", normalizeRequest{}, http.StatusBadRequest},
		{"zero height", normalizeRequest{Landmarks: standingLandmarks(), TargetHeight: &zero}, http.StatusBadRequest},
		{"duplicate names", normalizeRequest{Landmarks: dup}, http.StatusBadRequest},
		{"store without db", normalizeRequest{Landmarks: standingLandmarks(), Store: true}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/normalize", tt.body))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func startSession(t *testing.T, s *Server, user string) scan.Info {
	t.Helper()
	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/sessions", startSessionRequest{UserID: user}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var info scan.Info
	testutil.DecodeJSON(t, rec, &info)
	require.NotEmpty(t, info.ID)
	return info
}

func heightFrame(frame int64, value float64) []measure.MeasurementPoint {
	return []measure.MeasurementPoint{{
		Timestamp: float64(frame) / 30, Type: measure.Height, Value: value,
		Confidence: 0.9, Depth: 2, FrameID: frame, LandmarksQuality: 0.9,
	}}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, true)
	info := startSession(t, s, "u7")
	assert.True(t, info.Active)
	assert.Equal(t, "u7", info.UserID)
	base := "/api/sessions/" + info.ID

	for f := int64(0); f < 6; f++ {
		rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, base+"/batches", batchRequest{Measurements: heightFrame(f, 170)}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := serve(t, s, httptest.NewRequest(http.MethodGet, base+"/averages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var avg averagesMessage
	testutil.DecodeJSON(t, rec, &avg)
	assert.InDelta(t, 170.0, avg.Averages[measure.Height], 1e-9)
	assert.Equal(t, int64(6), avg.Info.Frames)

	rec = serve(t, s, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, httptest.NewRequest(http.MethodPost, base+"/end", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var end endSessionResponse
	testutil.DecodeJSON(t, rec, &end)
	assert.NotEmpty(t, end.ProfileID)
	assert.Equal(t, "u7", end.Profile.UserID)
	assert.False(t, end.Info.Active)
	assert.Equal(t, 6, end.Info.Collected)

	rec = serve(t, s, httptest.NewRequest(http.MethodPost, base+"/end", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(t, s, httptest.NewRequest(http.MethodGet, base+"/averages", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSession_Errors(t *testing.T) {
	s := newTestServer(t, false)
	info := startSession(t, s, "")
	base := "/api/sessions/" + info.ID

	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, base+"/batches", batchRequest{Measurements: heightFrame(5, 170)}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, base+"/batches", batchRequest{Measurements: heightFrame(2, 170)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/sessions/missing/batches", batchRequest{Measurements: heightFrame(1, 170)}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	empty := startSession(t, s, "")
	rec = serve(t, s, httptest.NewRequest(http.MethodPost, "/api/sessions/"+empty.ID+"/end", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBatchStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, batchStatus(scan.ErrSessionEnded))
	assert.Equal(t, http.StatusConflict, batchStatus(fmt.Errorf("wrapped: %w", scan.ErrSessionEnded)))
	assert.Equal(t, http.StatusBadRequest, batchStatus(scan.ErrFrameOrder))
}

func TestMeasurementChart(t *testing.T) {
	s := newTestServer(t, false)
	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/charts/measurements", chartRequest{
		Title:        "Scan",
		Measurements: synthetic(60),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "echarts")
	assert.Contains(t, rec.Body.String(), string(measure.Height))
}

func TestPosePlot(t *testing.T) {
	s := newTestServer(t, false)
	rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/plots/pose", plotRequest{
		normalizeRequest: normalizeRequest{Landmarks: standingLandmarks()},
		Title:            "standing",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))

	rec = serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, "/api/plots/pose", plotRequest{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertProfile(t *testing.T) {
	p := measure.BodyProfile{Height: 254, HipWidth: 0, MeasurementCount: 3}
	got := convertProfile(p, "in")
	assert.InDelta(t, 100.0, got.Height, 1e-9)
	assert.Equal(t, 0.0, got.HipWidth)
	assert.Equal(t, 3, got.MeasurementCount)
}

func TestEndSession_SavesToSessionDir(t *testing.T) {
	clock := timeutil.NewMockClock(apiTestTime)
	p, err := measure.NewPipeline(config.DefaultRefinementConfig(), calibration.Empty(), clock)
	require.NoError(t, err)
	memfs := fsutil.NewMemoryFileSystem()
	s, err := NewServer(Options{Pipeline: p, Clock: clock, FS: memfs, SessionDir: "/sessions"})
	require.NoError(t, err)

	info := startSession(t, s, "u9")
	base := "/api/sessions/" + info.ID
	for f := int64(0); f < 5; f++ {
		rec := serve(t, s, testutil.NewJSONRequest(t, http.MethodPost, base+"/batches", batchRequest{Measurements: heightFrame(f, 171)}))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(t, s, httptest.NewRequest(http.MethodPost, base+"/end", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var end endSessionResponse
	testutil.DecodeJSON(t, rec, &end)
	want := "/sessions/" + record.SessionFilename("u9", apiTestTime)
	assert.Equal(t, want, end.SavedTo)

	data, err := memfs.ReadFile(want)
	require.NoError(t, err)
	var saved scan.Result
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "u9", saved.Profile.UserID)
	assert.Equal(t, 5, saved.Info.Collected)
}
