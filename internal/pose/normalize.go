package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Result is the output of Normalize.
type Result struct {
	// Points has the same length and order as the input.
	Points []r3.Vec

	Centered bool
	Rotated  bool
	Scaled   bool

	// Center is the point subtracted during centering.
	Center r3.Vec
	// Angle is the shoulder-line angle in radians that rotation removed.
	Angle float64
	// Scale is the uniform factor applied, 1 when scaling was skipped.
	Scale float64

	// ReducedConfidence is set when height had to be estimated from the
	// vertical extent of the whole set because the nose was unavailable.
	ReducedConfidence bool
	Warnings          []string
}

// Normalize centers, rotation-aligns and height-scales one frame of
// landmarks. refs resolves body-part names to indices; a nil map uses
// DefaultReferencePoints and missing names use their schema index.
// Fewer than two points are returned unchanged with a warning.
func Normalize(points []r3.Vec, refs ReferencePoints, targetHeight float64, center CenterPoint) Result {
	if refs == nil {
		refs = DefaultReferencePoints()
	}
	res := Result{
		Points: append([]r3.Vec(nil), points...),
		Scale:  1,
	}
	n := len(points)
	if n < 2 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("malformed landmark set: %d points, normalization skipped", n))
		return res
	}

	// 1. Centering
	var warn string
	res.Center, warn = resolveCenter(res.Points, refs, center)
	if warn != "" {
		res.Warnings = append(res.Warnings, warn)
	}
	for i := range res.Points {
		res.Points[i] = r3.Sub(res.Points[i], res.Center)
	}
	res.Centered = true

	// 2. Rotation about the viewing axis so the shoulder line is horizontal
	ls, okL := refs.indexIn(LeftShoulder, n)
	rs, okR := refs.indexIn(RightShoulder, n)
	if okL && okR {
		d := r3.Sub(res.Points[rs], res.Points[ls])
		res.Angle = math.Atan2(d.Y, d.X)
		rot := r3.NewRotation(-res.Angle, r3.Vec{Z: 1})
		for i, p := range res.Points {
			q := rot.Rotate(p)
			// Rotation about Z leaves depth untouched.
			res.Points[i] = r3.Vec{X: q.X, Y: q.Y, Z: p.Z}
		}
		res.Rotated = true
	} else {
		res.Warnings = append(res.Warnings, "shoulders unavailable, rotation skipped")
	}

	// 3. Uniform scaling to the target height
	height, reduced := currentHeight(res.Points, refs)
	if reduced {
		res.ReducedConfidence = true
		res.Warnings = append(res.Warnings, "nose unavailable, height estimated from vertical extent (reduced confidence)")
	}
	if height > 0 {
		res.Scale = targetHeight / height
		for i := range res.Points {
			res.Points[i] = r3.Scale(res.Scale, res.Points[i])
		}
		res.Scaled = true
	} else {
		res.Warnings = append(res.Warnings, "degenerate body height, scaling skipped")
	}

	return res
}

func resolveCenter(points []r3.Vec, refs ReferencePoints, center CenterPoint) (r3.Vec, string) {
	n := len(points)
	if center == CenterCentroid {
		return Centroid(points), ""
	}
	if idx, ok := refs[string(center)]; ok {
		if idx >= 0 && idx < n {
			return points[idx], ""
		}
		return Centroid(points), fmt.Sprintf("center point %q out of range, using centroid", center)
	}
	switch center {
	case CenterChest:
		return midpoint(points, refs, LeftShoulder, RightShoulder)
	case CenterHip:
		return midpoint(points, refs, LeftHip, RightHip)
	}
	return Centroid(points), fmt.Sprintf("unknown center point %q, using centroid", center)
}

func midpoint(points []r3.Vec, refs ReferencePoints, a, b string) (r3.Vec, string) {
	n := len(points)
	ia, okA := refs.indexIn(a, n)
	ib, okB := refs.indexIn(b, n)
	if !okA || !okB {
		return Centroid(points), fmt.Sprintf("%s/%s unavailable, using centroid", a, b)
	}
	return r3.Scale(0.5, r3.Add(points[ia], points[ib])), ""
}

// currentHeight returns the head-to-foot distance along y. The second result
// is true when the nose was unavailable and the y-extent of the set was used.
func currentHeight(points []r3.Vec, refs ReferencePoints) (float64, bool) {
	n := len(points)
	nose, ok := refs.indexIn(Nose, n)
	if !ok {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range points {
			lo = math.Min(lo, p.Y)
			hi = math.Max(hi, p.Y)
		}
		return hi - lo, true
	}

	head := points[nose]
	la, okL := refs.indexIn(LeftAnkle, n)
	ra, okR := refs.indexIn(RightAnkle, n)
	var foot r3.Vec
	switch {
	case okL && okR:
		// Larger y is lower in image coordinates.
		foot = points[ra]
		if points[la].Y > points[ra].Y {
			foot = points[la]
		}
	case okL:
		foot = points[la]
	case okR:
		foot = points[ra]
	default:
		best := -1.0
		for _, p := range points {
			if d := math.Abs(p.Y - head.Y); d > best {
				best = d
				foot = p
			}
		}
	}
	return math.Abs(head.Y - foot.Y), false
}

// Centroid returns the arithmetic mean of points, the zero vector for an
// empty slice.
func Centroid(points []r3.Vec) r3.Vec {
	if len(points) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum)
}

// ShoulderAngle returns the angle of the left to right shoulder line in the
// (x,y) plane, in degrees within (-180,180]. ok is false when either shoulder
// index is out of range.
func ShoulderAngle(points []r3.Vec, refs ReferencePoints) (deg float64, ok bool) {
	if refs == nil {
		refs = DefaultReferencePoints()
	}
	n := len(points)
	ls, okL := refs.indexIn(LeftShoulder, n)
	rs, okR := refs.indexIn(RightShoulder, n)
	if !okL || !okR {
		return 0, false
	}
	d := r3.Sub(points[rs], points[ls])
	return math.Atan2(d.Y, d.X) * 180 / math.Pi, true
}

// BodyHeight returns the head-to-foot distance Normalize would scale by.
func BodyHeight(points []r3.Vec, refs ReferencePoints) float64 {
	if refs == nil {
		refs = DefaultReferencePoints()
	}
	h, _ := currentHeight(points, refs)
	return h
}
