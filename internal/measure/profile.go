package measure

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ergoscan/internal/calibration"
	"github.com/banshee-data/ergoscan/internal/timeutil"
)

// Quality score weights.
const (
	sampleWeight       = 0.2
	consistencyWeight  = 0.3
	detectionWeight    = 0.3
	completenessWeight = 0.2

	// sampleSaturation is the point count at which the sample score reaches 10.
	sampleSaturation = 50
	// defaultConsistency is used when no type has enough points for a CV.
	defaultConsistency = 5.0
)

// ProfileBuilder consolidates corrected points into a BodyProfile.
type ProfileBuilder struct {
	table *calibration.Table
	clock timeutil.Clock
}

// NewProfileBuilder returns a builder. A nil table uses the default global
// scale factor; a nil clock uses the real clock.
func NewProfileBuilder(table *calibration.Table, clock timeutil.Clock) *ProfileBuilder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ProfileBuilder{table: table, clock: clock}
}

// Build aggregates each known type by confidence-weighted mean. Types with no
// points stay 0.
func (b *ProfileBuilder) Build(points []MeasurementPoint, userID string) BodyProfile {
	profile := BodyProfile{
		UserID:             userID,
		ScaleFactor:        b.table.GetGlobalScaleFactor(),
		CalibrationQuality: QualityScore(points),
		MeasurementCount:   len(points),
		Timestamp:          timeutil.UnixSeconds(b.clock.Now()),
	}
	_, groups := groupByType(points)
	for _, t := range KnownTypes {
		if g, ok := groups[t]; ok {
			profile.set(t, confidenceWeightedMean(g))
		}
	}
	return profile
}

// QualityScore returns the composite [0,10] quality of a point set: sample
// size, per-type consistency, detection quality and completeness. An empty
// set scores 0.
func QualityScore(points []MeasurementPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	scores := []float64{
		sampleScore(len(points)),
		consistencyScore(points),
		detectionScore(points),
		completenessScore(points),
	}
	weights := []float64{sampleWeight, consistencyWeight, detectionWeight, completenessWeight}
	return math.Max(0, math.Min(10, stat.Mean(scores, weights)))
}

func sampleScore(n int) float64 {
	return math.Min(10, float64(n)/sampleSaturation*10)
}

func consistencyScore(points []MeasurementPoint) float64 {
	var per []float64
	for _, s := range Statistics(points) {
		if s.Count > 1 && s.Mean > 0 {
			per = append(per, math.Max(0, 10-s.CV*100))
		}
	}
	if len(per) == 0 {
		return defaultConsistency
	}
	return stat.Mean(per, nil)
}

func detectionScore(points []MeasurementPoint) float64 {
	conf := make([]float64, len(points))
	qual := make([]float64, len(points))
	for i, p := range points {
		conf[i] = p.Confidence
		qual[i] = p.LandmarksQuality
	}
	return (stat.Mean(conf, nil) + stat.Mean(qual, nil)) / 2 * 10
}

func completenessScore(points []MeasurementPoint) float64 {
	present := make(map[MeasurementType]bool)
	for _, p := range points {
		if p.Type.IsKnown() {
			present[p.Type] = true
		}
	}
	return float64(len(present)) / float64(len(KnownTypes)) * 10
}
