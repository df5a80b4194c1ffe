package pose

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Landmark is one named 3D point from the pose detector.
type Landmark struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
	// Presence is the detector's presence score when it reports one.
	Presence *float64 `json:"presence,omitempty"`
}

// Vec returns the landmark position.
func (l Landmark) Vec() r3.Vec {
	return r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
}

// ValidateLandmarks checks that names are non-empty and unique within the
// frame and that visibility lies in [0,1].
func ValidateLandmarks(landmarks []Landmark) error {
	seen := make(map[string]int, len(landmarks))
	for i, lm := range landmarks {
		if lm.Name == "" {
			return fmt.Errorf("landmark %d has no name", i)
		}
		if prev, ok := seen[lm.Name]; ok {
			return fmt.Errorf("duplicate landmark name %q at %d and %d", lm.Name, prev, i)
		}
		seen[lm.Name] = i
		if lm.Visibility < 0 || lm.Visibility > 1 {
			return fmt.Errorf("landmark %q visibility out of range [0,1]: %v", lm.Name, lm.Visibility)
		}
		if lm.Presence != nil && (*lm.Presence < 0 || *lm.Presence > 1) {
			return fmt.Errorf("landmark %q presence out of range [0,1]: %v", lm.Name, *lm.Presence)
		}
	}
	return nil
}

// Positions returns the landmark positions in order.
func Positions(landmarks []Landmark) []r3.Vec {
	out := make([]r3.Vec, len(landmarks))
	for i, lm := range landmarks {
		out[i] = lm.Vec()
	}
	return out
}

// WithPositions returns a copy of landmarks with positions replaced by
// points. Names and visibility are kept. Landmarks past len(points) are
// dropped.
func WithPositions(landmarks []Landmark, points []r3.Vec) []Landmark {
	n := min(len(landmarks), len(points))
	out := make([]Landmark, n)
	for i := 0; i < n; i++ {
		out[i] = landmarks[i]
		out[i].X, out[i].Y, out[i].Z = points[i].X, points[i].Y, points[i].Z
	}
	return out
}

// ReferencePointsFor builds reference points from the names of a landmark
// sequence, so sequences that deviate from the schema order still resolve.
func ReferencePointsFor(landmarks []Landmark) ReferencePoints {
	refs := make(ReferencePoints, len(landmarks))
	for i, lm := range landmarks {
		refs[lm.Name] = i
	}
	return refs
}
