package pose

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Statistics summarizes one normalized pose.
type Statistics struct {
	LandmarkCount int        `json:"landmark_count"`
	XRange        [2]float64 `json:"x_range"`
	YRange        [2]float64 `json:"y_range"`
	ZRange        [2]float64 `json:"z_range"`
	CenterOfMass  [3]float64 `json:"center_of_mass"`
}

// ComputeStatistics returns the coordinate ranges and center of mass of
// points. An empty slice yields the zero value.
func ComputeStatistics(points []r3.Vec) Statistics {
	if len(points) == 0 {
		return Statistics{}
	}
	s := Statistics{
		LandmarkCount: len(points),
		XRange:        [2]float64{math.Inf(1), math.Inf(-1)},
		YRange:        [2]float64{math.Inf(1), math.Inf(-1)},
		ZRange:        [2]float64{math.Inf(1), math.Inf(-1)},
	}
	for _, p := range points {
		s.XRange = extend(s.XRange, p.X)
		s.YRange = extend(s.YRange, p.Y)
		s.ZRange = extend(s.ZRange, p.Z)
	}
	c := Centroid(points)
	s.CenterOfMass = [3]float64{c.X, c.Y, c.Z}
	return s
}

func extend(r [2]float64, v float64) [2]float64 {
	return [2]float64{math.Min(r[0], v), math.Max(r[1], v)}
}

// Options parameterizes a capture normalization.
type Options struct {
	References   ReferencePoints
	TargetHeight float64
	Center       CenterPoint
}

// DefaultOptions returns unit target height, centroid centering and default
// reference points.
func DefaultOptions() Options {
	return Options{TargetHeight: 1.0}
}

// Capture maps a pose name to the landmarks captured for it.
type Capture map[string][]Landmark

// PoseResult is the normalization outcome of one captured pose.
type PoseResult struct {
	Pose       string     `json:"pose"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	Original   []Landmark `json:"original,omitempty"`
	Normalized []Landmark `json:"normalized,omitempty"`
	Statistics Statistics `json:"statistics"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// NormalizeCapture normalizes every pose of a capture. Results come in
// calibration order first, followed by any other poses sorted by name. A pose
// with no landmarks or invalid landmarks fails on its own without affecting the
// others.
func NormalizeCapture(capture Capture, opts Options) []PoseResult {
	results := make([]PoseResult, 0, len(capture))
	for _, name := range captureOrder(capture) {
		results = append(results, NormalizeLandmarks(name, capture[name], opts))
	}
	return results
}

// NormalizeLandmarks validates and normalizes the landmarks of one pose.
// Nil opts.References select the defaults for the landmark order, and a
// non-positive target height means 1.0.
func NormalizeLandmarks(name string, landmarks []Landmark, opts Options) PoseResult {
	if opts.TargetHeight <= 0 {
		opts.TargetHeight = 1.0
	}
	res := PoseResult{Pose: name}
	if len(landmarks) == 0 {
		res.Error = "no landmarks"
		return res
	}
	if err := ValidateLandmarks(landmarks); err != nil {
		res.Error = err.Error()
		return res
	}

	refs := opts.References
	if refs == nil {
		refs = defaultsFor(landmarks)
	}
	norm := Normalize(Positions(landmarks), refs, opts.TargetHeight, opts.Center)

	res.Success = true
	res.Original = landmarks
	res.Normalized = WithPositions(landmarks, norm.Points)
	res.Statistics = ComputeStatistics(norm.Points)
	res.Warnings = norm.Warnings
	return res
}

// defaultsFor returns the default reference points unless the landmarks are
// out of schema order, in which case their names are used. Default names the
// frame lacks resolve to -1 so they count as absent.
func defaultsFor(landmarks []Landmark) ReferencePoints {
	inOrder := len(landmarks) <= SchemaSize
	for i := 0; inOrder && i < len(landmarks); i++ {
		inOrder = SchemaNames[i] == landmarks[i].Name
	}
	if inOrder {
		return DefaultReferencePoints()
	}
	refs := ReferencePointsFor(landmarks)
	for name := range DefaultReferencePoints() {
		if _, ok := refs[name]; !ok {
			refs[name] = -1
		}
	}
	return refs
}

func captureOrder(capture Capture) []string {
	order := make([]string, 0, len(capture))
	known := make(map[string]bool, len(CalibrationPoses))
	for _, name := range CalibrationPoses {
		known[name] = true
		if _, ok := capture[name]; ok {
			order = append(order, name)
		}
	}
	var rest []string
	for name := range capture {
		if !known[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Summary returns a one-line description of a pose result for logs.
func (r PoseResult) Summary() string {
	if !r.Success {
		return fmt.Sprintf("%s: failed (%s)", r.Pose, r.Error)
	}
	s := r.Statistics
	return fmt.Sprintf("%s: %d landmarks, x [%.3f, %.3f], y [%.3f, %.3f], z [%.3f, %.3f]",
		r.Pose, s.LandmarkCount, s.XRange[0], s.XRange[1], s.YRange[0], s.YRange[1], s.ZRange[0], s.ZRange[1])
}
