package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/monitoring"
	"github.com/banshee-data/ergoscan/internal/pose"
	"github.com/banshee-data/ergoscan/internal/record"
	"github.com/banshee-data/ergoscan/internal/testutil"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	log.SetOutput(io.Discard)
	clock = timeutil.NewMockClock(time.Date(2025, 4, 2, 8, 15, 0, 0, time.UTC))
	os.Exit(m.Run())
}

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func standingLandmarks() []pose.Landmark {
	points := testutil.StandingPose()
	out := make([]pose.Landmark, len(points))
	for i, p := range points {
		out[i] = pose.Landmark{Name: pose.SchemaNames[i], X: p.X, Y: p.Y, Z: p.Z, Visibility: 0.9}
	}
	return out
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, errors.Is(run(nil, &out), errUsage))
	assert.True(t, errors.Is(run([]string{"frobnicate"}, &out), errUsage))
	assert.True(t, errors.Is(run([]string{"process", "-bogus"}, &out), errUsage))
	assert.True(t, errors.Is(run([]string{"process"}, &out), errUsage))
	assert.True(t, errors.Is(run([]string{"plot", "-in", "x.json"}, &out), errUsage))

	out.Reset()
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "Usage: ergoscan <command>")
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Contains(t, out.String(), "ergoscan version")
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "measurements.json")
	writeJSON(t, in, testutil.SyntheticMeasurements(testutil.NewRand(5), 100))
	outPath := filepath.Join(dir, "out", "profile.json")
	profileDir := filepath.Join(dir, "profiles")

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(io.Discard)

	var stdout bytes.Buffer
	err := run([]string{
		"process",
		"-in", in,
		"-user", "test_user",
		"-calibration", filepath.Join(dir, "missing_calibration.json"),
		"-db", filepath.Join(dir, "profiles.db"),
		"-out", outPath,
		"-profile-dir", profileDir,
	}, &stdout)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var got processOutput
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "test_user", got.Profile.UserID)
	assert.NotEmpty(t, got.ProfileID)
	assert.LessOrEqual(t, got.Profile.MeasurementCount, 100)
	assert.Greater(t, got.Profile.CalibrationQuality, 0.0)
	for typ, v := range got.Profile.Measurements() {
		assert.Greater(t, v, 0.0, typ)
		assert.Contains(t, logs.String(), string(typ), "no summary line for %s", typ)
	}

	entries, err := os.ReadDir(profileDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, record.ProfileFilename(got.Profile), entries[0].Name())
}

func TestProcess_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "measurements.json")
	points := testutil.SyntheticMeasurements(testutil.NewRand(5), 12)
	points[4].Depth = -1
	writeJSON(t, in, points)

	err := run([]string{"process", "-in", in, "-calibration", filepath.Join(dir, "none.json")}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid measurements")

	err = run([]string{"process", "-in", filepath.Join(dir, "absent.json")}, io.Discard)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "capture.json")
	writeJSON(t, in, pose.Capture{
		pose.PoseTPose: standingLandmarks(),
		"empty":        nil,
	})
	recordDir := filepath.Join(dir, "records")

	var stdout bytes.Buffer
	err := run([]string{
		"normalize",
		"-in", in,
		"-target-height", "1.8",
		"-record-dir", recordDir,
		"-user", "u1",
		"-width", "640",
		"-height", "480",
	}, &stdout)
	require.NoError(t, err)

	var got normalizeOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	require.Len(t, got.Results, 2)
	assert.Equal(t, pose.PoseTPose, got.Results[0].Pose)
	assert.True(t, got.Results[0].Success)
	assert.False(t, got.Results[1].Success)
	assert.InDelta(t, 1.8, pose.BodyHeight(pose.Positions(got.Results[0].Normalized), nil), 1e-3)

	require.Len(t, got.Records, 1)
	rec, err := record.Load(fsys, got.Records[0])
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, 640, rec.CameraMeta.Width)
	assert.InDelta(t, 350.0, rec.Measurements[string(measure.Height)], 1e-9)
	assert.Len(t, rec.Normalized.Landmarks, pose.SchemaSize)
}

func TestNormalize_RejectsZeroHeight(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "capture.json")
	writeJSON(t, in, pose.Capture{pose.PoseTPose: standingLandmarks()})
	err := run([]string{"normalize", "-in", in, "-target-height", "0"}, io.Discard)
	assert.True(t, errors.Is(err, errUsage))
}

func TestPlot(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "landmarks.json")
	writeJSON(t, in, standingLandmarks())
	out := filepath.Join(dir, "pose.png")

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"plot", "-in", in, "-out", out, "-normalize"}, &stdout))
	assert.Contains(t, stdout.String(), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")

	var out bytes.Buffer
	require.NoError(t, run([]string{"migrate", "-db", path, "status"}, &out))
	assert.Contains(t, out.String(), "Current version: 0")
	assert.Contains(t, out.String(), "Latest version: 2")

	out.Reset()
	require.NoError(t, run([]string{"migrate", "-db", path, "up"}, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	assert.Error(t, run([]string{"migrate", "-db", path}, io.Discard))
}
