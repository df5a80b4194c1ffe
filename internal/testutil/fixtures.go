package testutil

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/ergoscan/internal/measure"
)

// NewRand returns a deterministic random source for fixtures.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// standingPose is an upright figure in normalized image coordinates (x to the
// right, y down) in the 33-point schema order. The subject's left side has
// the smaller x, as in a mirrored webcam preview.
var standingPose = []r3.Vec{
	{X: 0.500, Y: 0.150, Z: -0.30}, // nose
	{X: 0.490, Y: 0.135, Z: -0.28}, {X: 0.480, Y: 0.135, Z: -0.28}, {X: 0.470, Y: 0.135, Z: -0.27},
	{X: 0.510, Y: 0.135, Z: -0.28}, {X: 0.520, Y: 0.135, Z: -0.28}, {X: 0.530, Y: 0.135, Z: -0.27},
	{X: 0.460, Y: 0.140, Z: -0.20}, {X: 0.540, Y: 0.140, Z: -0.20},
	{X: 0.490, Y: 0.170, Z: -0.27}, {X: 0.510, Y: 0.170, Z: -0.27},
	{X: 0.400, Y: 0.250, Z: -0.10}, {X: 0.600, Y: 0.250, Z: -0.10}, // shoulders
	{X: 0.370, Y: 0.400, Z: -0.08}, {X: 0.630, Y: 0.400, Z: -0.08}, // elbows
	{X: 0.350, Y: 0.530, Z: -0.10}, {X: 0.650, Y: 0.530, Z: -0.10}, // wrists
	{X: 0.345, Y: 0.560, Z: -0.11}, {X: 0.655, Y: 0.560, Z: -0.11},
	{X: 0.350, Y: 0.570, Z: -0.11}, {X: 0.650, Y: 0.570, Z: -0.11},
	{X: 0.360, Y: 0.550, Z: -0.10}, {X: 0.640, Y: 0.550, Z: -0.10},
	{X: 0.440, Y: 0.550, Z: 0.00}, {X: 0.560, Y: 0.550, Z: 0.00}, // hips
	{X: 0.440, Y: 0.720, Z: 0.02}, {X: 0.560, Y: 0.720, Z: 0.02}, // knees
	{X: 0.440, Y: 0.880, Z: 0.05}, {X: 0.560, Y: 0.880, Z: 0.05}, // ankles
	{X: 0.440, Y: 0.900, Z: 0.06}, {X: 0.560, Y: 0.900, Z: 0.06},
	{X: 0.430, Y: 0.910, Z: 0.00}, {X: 0.570, Y: 0.910, Z: 0.00},
}

// StandingPose returns a copy of the upright reference figure.
func StandingPose() []r3.Vec {
	return append([]r3.Vec(nil), standingPose...)
}

// RotateZ returns points rotated by deg degrees about the axis through about
// parallel to z.
func RotateZ(points []r3.Vec, deg float64, about r3.Vec) []r3.Vec {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		d := r3.Sub(p, about)
		out[i] = r3.Vec{
			X: about.X + d.X*cos - d.Y*sin,
			Y: about.Y + d.X*sin + d.Y*cos,
			Z: p.Z,
		}
	}
	return out
}

// Jitter returns points with N(0, sigma) noise added to every axis.
func Jitter(rng *rand.Rand, points []r3.Vec, sigma float64) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = r3.Vec{
			X: p.X + rng.NormFloat64()*sigma,
			Y: p.Y + rng.NormFloat64()*sigma,
			Z: p.Z + rng.NormFloat64()*sigma,
		}
	}
	return out
}

// TypicalCM holds plausible adult measurements used by SyntheticMeasurements.
var TypicalCM = map[measure.MeasurementType]float64{
	measure.Height:        172,
	measure.ShoulderWidth: 42,
	measure.TorsoLength:   55,
	measure.ArmLength:     68,
	measure.LegLength:     88,
	measure.HipWidth:      36,
}

// SyntheticMeasurements returns n points cycling through the known types with
// values within 1% of TypicalCM and confidences in [0.7, 0.95]. Six points
// share a frame.
func SyntheticMeasurements(rng *rand.Rand, n int) []measure.MeasurementPoint {
	out := make([]measure.MeasurementPoint, n)
	types := measure.KnownTypes
	for i := range out {
		typ := types[i%len(types)]
		base := TypicalCM[typ]
		frame := int64(i / len(types))
		out[i] = measure.MeasurementPoint{
			Timestamp:        float64(frame) / 30,
			Type:             typ,
			Value:            base + rng.NormFloat64()*base*0.01,
			Confidence:       0.7 + rng.Float64()*0.25,
			Depth:            1.8 + rng.Float64()*0.4,
			FrameID:          frame,
			LandmarksQuality: 0.7 + rng.Float64()*0.25,
		}
	}
	return out
}
