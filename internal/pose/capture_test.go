package pose

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/ergoscan/internal/testutil"
)

func schemaLandmarks(points []r3.Vec) []Landmark {
	out := make([]Landmark, len(points))
	for i, p := range points {
		out[i] = Landmark{Name: SchemaNames[i], X: p.X, Y: p.Y, Z: p.Z, Visibility: 0.9}
	}
	return out
}

func TestSchema(t *testing.T) {
	if len(SchemaNames) != 33 {
		t.Fatalf("schema has %d names", len(SchemaNames))
	}
	for name, idx := range DefaultReferencePoints() {
		if SchemaNames[idx] != name {
			t.Errorf("default index %d for %s names %s", idx, name, SchemaNames[idx])
		}
	}
	if idx, ok := SchemaIndex("left_foot_index"); !ok || idx != 31 {
		t.Errorf("SchemaIndex(left_foot_index) = %d, %v", idx, ok)
	}
	refs := ReferencePoints{Nose: 5}
	if refs.Index(Nose) != 5 || refs.Index(RightAnkle) != 28 || refs.Index("tail") != -1 {
		t.Errorf("Index fallbacks wrong: %d %d %d", refs.Index(Nose), refs.Index(RightAnkle), refs.Index("tail"))
	}
}

func TestValidateLandmarks(t *testing.T) {
	good := schemaLandmarks(testutil.StandingPose())
	if err := ValidateLandmarks(good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := schemaLandmarks(testutil.StandingPose())
	dup[5].Name = dup[4].Name
	if err := ValidateLandmarks(dup); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got %v", err)
	}

	vis := schemaLandmarks(testutil.StandingPose())
	vis[0].Visibility = 1.5
	if err := ValidateLandmarks(vis); err == nil || !strings.Contains(err.Error(), "visibility") {
		t.Errorf("expected visibility error, got %v", err)
	}

	unnamed := schemaLandmarks(testutil.StandingPose())
	unnamed[3].Name = ""
	if err := ValidateLandmarks(unnamed); err == nil {
		t.Error("expected error for unnamed landmark")
	}
}

func TestComputeStatistics(t *testing.T) {
	pts := []r3.Vec{{X: -1, Y: 0, Z: 2}, {X: 1, Y: 4, Z: 0}}
	s := ComputeStatistics(pts)
	if s.LandmarkCount != 2 {
		t.Errorf("LandmarkCount = %d", s.LandmarkCount)
	}
	if s.XRange != [2]float64{-1, 1} || s.YRange != [2]float64{0, 4} || s.ZRange != [2]float64{0, 2} {
		t.Errorf("ranges = %v %v %v", s.XRange, s.YRange, s.ZRange)
	}
	if s.CenterOfMass != [3]float64{0, 2, 1} {
		t.Errorf("CenterOfMass = %v", s.CenterOfMass)
	}
	if (ComputeStatistics(nil) != Statistics{}) {
		t.Error("empty statistics should be zero")
	}
}

func TestNormalizeCapture(t *testing.T) {
	standing := schemaLandmarks(testutil.StandingPose())
	tpose := schemaLandmarks(testutil.RotateZ(testutil.StandingPose(), 12, r3.Vec{X: 0.5, Y: 0.5}))
	capture := Capture{
		"Warm Up":           standing,
		PoseNeutralStanding: standing,
		PoseTPose:           tpose,
		PoseSeatedNeutral:   nil,
	}

	results := NormalizeCapture(capture, Options{TargetHeight: 1.7, Center: CenterHip})

	order := []string{PoseTPose, PoseNeutralStanding, PoseSeatedNeutral, "Warm Up"}
	if len(results) != len(order) {
		t.Fatalf("got %d results", len(results))
	}
	for i, want := range order {
		if results[i].Pose != want {
			t.Errorf("result %d is %q, want %q", i, results[i].Pose, want)
		}
	}

	seated := results[2]
	if seated.Success || seated.Error != "no landmarks" {
		t.Errorf("seated = %+v", seated)
	}

	for _, r := range []PoseResult{results[0], results[1], results[3]} {
		if !r.Success {
			t.Fatalf("%s failed: %s", r.Pose, r.Error)
		}
		if len(r.Normalized) != 33 || r.Normalized[0].Name != Nose || r.Normalized[0].Visibility != 0.9 {
			t.Errorf("%s normalized landmarks malformed", r.Pose)
		}
		if r.Statistics.LandmarkCount != 33 {
			t.Errorf("%s LandmarkCount = %d", r.Pose, r.Statistics.LandmarkCount)
		}
		h := BodyHeight(Positions(r.Normalized), nil)
		if math.Abs(h-1.7) > 1e-9 {
			t.Errorf("%s height = %v, want 1.7", r.Pose, h)
		}
		hip := r3.Scale(0.5, r3.Add(r.Normalized[23].Vec(), r.Normalized[24].Vec()))
		if r3.Norm(hip) > 1e-9 {
			t.Errorf("%s hip center = %+v, want origin", r.Pose, hip)
		}
		if !strings.HasPrefix(r.Summary(), r.Pose+": 33 landmarks") {
			t.Errorf("Summary() = %q", r.Summary())
		}
	}
	if !strings.Contains(seated.Summary(), "failed") {
		t.Errorf("Summary() = %q", seated.Summary())
	}
}

func TestNormalizeCapture_OutOfOrderNames(t *testing.T) {
	standing := schemaLandmarks(testutil.StandingPose())
	// Swap nose and left hip; explicit names must still resolve.
	shuffled := append([]Landmark(nil), standing...)
	shuffled[0], shuffled[23] = shuffled[23], shuffled[0]

	results := NormalizeCapture(Capture{PoseTPose: shuffled}, DefaultOptions())
	if !results[0].Success {
		t.Fatalf("failed: %s", results[0].Error)
	}
	refs := ReferencePointsFor(results[0].Normalized)
	if h := BodyHeight(Positions(results[0].Normalized), refs); math.Abs(h-1.0) > 1e-9 {
		t.Errorf("height = %v, want 1.0", h)
	}
}

func TestNormalizeLandmarks_DefaultTargetHeight(t *testing.T) {
	res := NormalizeLandmarks("single", schemaLandmarks(testutil.StandingPose()), Options{})
	if !res.Success {
		t.Fatalf("failed: %s", res.Error)
	}
	if h := BodyHeight(Positions(res.Normalized), DefaultReferencePoints()); math.Abs(h-1.0) > 1e-9 {
		t.Errorf("height = %v, want 1.0", h)
	}
	if res.Pose != "single" {
		t.Errorf("pose = %q", res.Pose)
	}
}
