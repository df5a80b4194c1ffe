package measure

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/banshee-data/ergoscan/internal/calibration"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

func TestProfileBuilder_Build(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	table, err := calibration.Parse([]byte(`{"global_scale_factor": 1.25}`))
	if err != nil {
		t.Fatal(err)
	}
	points := []MeasurementPoint{
		point(0, Height, 170, 1),
		point(1, Height, 180, 1),
		point(0, ShoulderWidth, 40, 1),
	}
	points[1].Confidence = 0.5 // weight 0.45 against 0.9

	profile := NewProfileBuilder(table, clock).Build(points, "alice")

	wantHeight := (170*0.9 + 180*0.45) / (0.9 + 0.45)
	if math.Abs(profile.Height-wantHeight) > 1e-9 {
		t.Errorf("Height = %v, want %v", profile.Height, wantHeight)
	}
	if profile.ShoulderWidth != 40 {
		t.Errorf("ShoulderWidth = %v, want 40", profile.ShoulderWidth)
	}
	if profile.HipWidth != 0 {
		t.Errorf("HipWidth = %v, want 0 when not measured", profile.HipWidth)
	}
	if profile.ScaleFactor != 1.25 {
		t.Errorf("ScaleFactor = %v, want 1.25", profile.ScaleFactor)
	}
	if profile.MeasurementCount != 3 {
		t.Errorf("MeasurementCount = %d, want 3", profile.MeasurementCount)
	}
	if profile.UserID != "alice" {
		t.Errorf("UserID = %q", profile.UserID)
	}
	if want := timeutil.UnixSeconds(clock.Now()); profile.Timestamp != want {
		t.Errorf("Timestamp = %v, want %v", profile.Timestamp, want)
	}
	if profile.CalibrationQuality != QualityScore(points) {
		t.Errorf("CalibrationQuality = %v, want QualityScore", profile.CalibrationQuality)
	}
}

func TestProfileBuilder_Defaults(t *testing.T) {
	profile := NewProfileBuilder(nil, nil).Build(nil, "nobody")
	if profile.ScaleFactor != 1.0 {
		t.Errorf("ScaleFactor = %v, want 1.0 without a table", profile.ScaleFactor)
	}
	if profile.CalibrationQuality != 0 || profile.MeasurementCount != 0 {
		t.Errorf("empty profile = %+v", profile)
	}
	for typ, v := range profile.Measurements() {
		if v != 0 {
			t.Errorf("%s = %v, want 0", typ, v)
		}
	}
}

func TestProfileBuilder_UnknownTypesIgnored(t *testing.T) {
	points := []MeasurementPoint{point(0, "neck_length", 12, 1)}
	profile := NewProfileBuilder(nil, nil).Build(points, "u")
	for typ, v := range profile.Measurements() {
		if v != 0 {
			t.Errorf("%s = %v, want 0", typ, v)
		}
	}
	if profile.MeasurementCount != 1 {
		t.Errorf("MeasurementCount = %d, want 1", profile.MeasurementCount)
	}
}

func TestQualityScore_Composite(t *testing.T) {
	// 50 identical, fully confident height points: sample 10, consistency 10,
	// detection 10, completeness 1/6*10.
	points := make([]MeasurementPoint, 50)
	for i := range points {
		points[i] = point(float64(i), Height, 170, 1)
		points[i].LandmarksQuality = 1
	}
	want := 0.2*10 + 0.3*10 + 0.3*10 + 0.2*(10.0/6)
	if got := QualityScore(points); math.Abs(got-want) > 1e-9 {
		t.Errorf("QualityScore() = %v, want %v", got, want)
	}
}

func TestQualityScore_DefaultConsistency(t *testing.T) {
	// One point per type: no type qualifies for a CV, so consistency is 5.
	var points []MeasurementPoint
	for _, typ := range KnownTypes {
		p := point(0, typ, typicalCM[typ], 1)
		p.LandmarksQuality = 1
		points = append(points, p)
	}
	want := 0.2*(6.0/50*10) + 0.3*5 + 0.3*10 + 0.2*10
	if got := QualityScore(points); math.Abs(got-want) > 1e-9 {
		t.Errorf("QualityScore() = %v, want %v", got, want)
	}
}

func TestQualityScore_Bounds(t *testing.T) {
	if got := QualityScore(nil); got != 0 {
		t.Errorf("QualityScore(nil) = %v, want 0", got)
	}
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(150)
		points := make([]MeasurementPoint, n)
		for i := range points {
			points[i] = MeasurementPoint{
				Timestamp:        float64(i),
				Type:             KnownTypes[rng.Intn(len(KnownTypes))],
				Value:            rng.Float64() * 500,
				Confidence:       rng.Float64(),
				Depth:            0.5 + rng.Float64()*3,
				FrameID:          int64(i),
				LandmarksQuality: rng.Float64(),
			}
		}
		if q := QualityScore(points); q < 0 || q > 10 || math.IsNaN(q) {
			t.Fatalf("trial %d: QualityScore() = %v out of [0,10]", trial, q)
		}
	}
}
