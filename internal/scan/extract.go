package scan

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/ergoscan/internal/measure"
	"github.com/banshee-data/ergoscan/internal/pose"
)

// DefaultDepth is the subject distance in metres assumed when no depth
// sample covers the shoulder centre.
const DefaultDepth = 2.0

// defaultPresence is the landmark quality used when the detector reports no
// presence score.
const defaultPresence = 0.8

// ErrMissingLandmarks is returned when a frame lacks a landmark needed for
// extraction.
var ErrMissingLandmarks = errors.New("missing required landmarks")

// DepthSampler returns the depth in metres at a pixel, or false when no
// sample exists there.
type DepthSampler interface {
	DepthAt(x, y int) (float64, bool)
}

// DepthFunc adapts a function to DepthSampler.
type DepthFunc func(x, y int) (float64, bool)

// DepthAt implements DepthSampler.
func (f DepthFunc) DepthAt(x, y int) (float64, bool) { return f(x, y) }

// Frame describes the image a landmark set was detected in.
type Frame struct {
	Width     int
	Height    int
	ID        int64
	Timestamp float64
	// Depth is optional.
	Depth DepthSampler
}

var requiredLandmarks = []string{
	pose.Nose,
	pose.LeftShoulder, pose.RightShoulder,
	pose.LeftElbow, pose.RightElbow,
	pose.LeftWrist, pose.RightWrist,
	pose.LeftHip, pose.RightHip,
	pose.LeftKnee, pose.RightKnee,
	pose.LeftAnkle, pose.RightAnkle,
}

// confidenceLandmarks contribute to the per-frame confidence.
var confidenceLandmarks = []string{
	pose.Nose,
	pose.LeftShoulder, pose.RightShoulder,
	pose.LeftHip, pose.RightHip,
	pose.LeftAnkle, pose.RightAnkle,
}

// qualityLandmarks contribute to the per-frame landmark quality.
var qualityLandmarks = []string{
	pose.Nose,
	pose.LeftShoulder, pose.RightShoulder,
	pose.LeftElbow, pose.RightElbow,
	pose.LeftWrist, pose.RightWrist,
	pose.LeftHip, pose.RightHip,
	pose.LeftAnkle, pose.RightAnkle,
}

type pixel struct{ x, y float64 }

func dist(a, b pixel) float64 { return math.Hypot(a.x-b.x, a.y-b.y) }

func mid(a, b pixel) pixel { return pixel{(a.x + b.x) / 2, (a.y + b.y) / 2} }

// lookup indexes landmarks by name. Unnamed landmarks fall back to their
// schema position.
func lookup(landmarks []pose.Landmark) map[string]pose.Landmark {
	out := make(map[string]pose.Landmark, len(landmarks))
	for i, lm := range landmarks {
		name := lm.Name
		if name == "" && i < pose.SchemaSize {
			name = pose.SchemaNames[i]
		}
		if name != "" {
			out[name] = lm
		}
	}
	return out
}

// ExtractMeasurements derives one raw pixel-space measurement per type from a
// single frame of landmarks. Types whose value is not positive are omitted.
func ExtractMeasurements(landmarks []pose.Landmark, frame Frame) ([]measure.MeasurementPoint, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", frame.Width, frame.Height)
	}
	byName := lookup(landmarks)
	var missing []string
	for _, name := range requiredLandmarks {
		if _, ok := byName[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingLandmarks, missing)
	}

	// Pixel coordinates truncate like the detector's image indexing.
	px := func(name string) pixel {
		lm := byName[name]
		return pixel{
			x: math.Trunc(lm.X * float64(frame.Width)),
			y: math.Trunc(lm.Y * float64(frame.Height)),
		}
	}
	nose := px(pose.Nose)
	ls, rs := px(pose.LeftShoulder), px(pose.RightShoulder)
	le, re := px(pose.LeftElbow), px(pose.RightElbow)
	lw, rw := px(pose.LeftWrist), px(pose.RightWrist)
	lh, rh := px(pose.LeftHip), px(pose.RightHip)
	lk, rk := px(pose.LeftKnee), px(pose.RightKnee)
	la, ra := px(pose.LeftAnkle), px(pose.RightAnkle)

	shoulderCenter := mid(ls, rs)
	hipCenter := mid(lh, rh)

	values := []struct {
		typ   measure.MeasurementType
		value float64
	}{
		{measure.Height, math.Abs(nose.y - (la.y+ra.y)/2)},
		{measure.ShoulderWidth, dist(ls, rs)},
		{measure.TorsoLength, math.Abs(shoulderCenter.y - hipCenter.y)},
		{measure.ArmLength, (dist(ls, le) + dist(le, lw) + dist(rs, re) + dist(re, rw)) / 2},
		{measure.LegLength, (dist(lh, lk) + dist(lk, la) + dist(rh, rk) + dist(rk, ra)) / 2},
		{measure.HipWidth, dist(lh, rh)},
	}

	confidence := 0.0
	for _, name := range confidenceLandmarks {
		confidence += byName[name].Visibility
	}
	confidence /= float64(len(confidenceLandmarks))

	quality := 0.0
	for _, name := range qualityLandmarks {
		if p := byName[name].Presence; p != nil {
			quality += *p
		} else {
			quality += defaultPresence
		}
	}
	quality /= float64(len(qualityLandmarks))

	depth := sampleDepth(frame, shoulderCenter)

	out := make([]measure.MeasurementPoint, 0, len(values))
	for _, v := range values {
		if v.value <= 0 {
			continue
		}
		p, err := measure.NewMeasurementPoint(frame.Timestamp, v.typ, v.value, confidence, depth, frame.ID, quality)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s measurement: %w", v.typ, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func sampleDepth(frame Frame, at pixel) float64 {
	if frame.Depth == nil {
		return DefaultDepth
	}
	x, y := int(at.x), int(at.y)
	if x < 0 || y < 0 || x >= frame.Width || y >= frame.Height {
		return DefaultDepth
	}
	d, ok := frame.Depth.DepthAt(x, y)
	if !ok || d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return DefaultDepth
	}
	return d
}
